package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	attachmentdomain "github.com/smallbiznis/encore/internal/attachment/domain"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	"github.com/smallbiznis/encore/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) GetRecord(ctx context.Context, recordType financedomain.RecordType, id snowflake.ID) (financedomain.Record, error) {
	const op = "get_record"

	record, err := s.loadRecord(ctx, s.db, recordType, id)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if record == nil {
		return nil, financedomain.NotFound(op, string(recordType)+" not found", financedomain.ErrRecordNotFound)
	}
	if payment, ok := record.(*financedomain.Payment); ok {
		if owner, err := s.repo.FindOwner(ctx, s.db, payment.OwnerID); err == nil {
			payment.Owner = owner
		}
	}
	return record, nil
}

// DeleteRecord removes the record and, for payments, its expense. Ledger rows are kept.
// The attachment is deleted afterwards on a best-effort basis.
func (s *Service) DeleteRecord(ctx context.Context, recordType financedomain.RecordType, id snowflake.ID) error {
	const op = "delete_record"

	var record financedomain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.loadRecord(ctx, tx, recordType, id)
		if err != nil {
			return err
		}
		if found == nil {
			return financedomain.NotFound(op, string(recordType)+" not found", financedomain.ErrRecordNotFound)
		}
		record = found

		switch r := found.(type) {
		case *financedomain.Payment:
			if _, err := s.repo.DeleteExpenseByPayment(ctx, tx, r.ID); err != nil {
				return err
			}
		case *financedomain.Refund:
			if r.PaymentID != nil {
				if err := s.repo.SetPaymentRefund(ctx, tx, *r.PaymentID, nil, nil, s.clock.Now()); err != nil {
					return err
				}
				if err := s.repo.SetExpenseRefundStatus(ctx, tx, *r.PaymentID, nil); err != nil {
					return err
				}
			}
		}
		_, err = s.repo.Delete(ctx, tx, recordType, id)
		return err
	})
	if err != nil {
		return s.fail(ctx, op, err)
	}

	if url, provider, ok := financedomain.AttachmentOf(record); ok && s.attachments != nil {
		if err := s.attachments.Delete(ctx, attachmentdomain.Stored{URL: url, Provider: provider}); err != nil {
			logger.WithContext(ctx, s.log).Warn("attachment cleanup failed",
				zap.String("record_type", string(recordType)),
				zap.String("provider", provider),
				zap.Error(err),
			)
		}
	}
	s.recordAudit(ctx, string(recordType)+".deleted", recordType, id, nil)
	return nil
}

func (s *Service) loadRecord(ctx context.Context, db *gorm.DB, recordType financedomain.RecordType, id snowflake.ID) (financedomain.Record, error) {
	switch recordType {
	case financedomain.RecordTypeInvoice:
		r, err := s.repo.FindInvoice(ctx, db, id)
		if r == nil || err != nil {
			return nil, err
		}
		return r, nil
	case financedomain.RecordTypePayment:
		r, err := s.repo.FindPayment(ctx, db, id)
		if r == nil || err != nil {
			return nil, err
		}
		return r, nil
	case financedomain.RecordTypeBudget:
		r, err := s.repo.FindBudget(ctx, db, id)
		if r == nil || err != nil {
			return nil, err
		}
		return r, nil
	case financedomain.RecordTypeRefund:
		r, err := s.repo.FindRefund(ctx, db, id)
		if r == nil || err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, financedomain.Validation("load_record", "unknown record type", financedomain.ErrInvalidRecordType)
}
