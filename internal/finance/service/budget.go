package service

import (
	"context"
	"fmt"
	"strings"

	attachmentdomain "github.com/smallbiznis/encore/internal/attachment/domain"
	financedomain "github.com/smallbiznis/encore/internal/finance/domain"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	notificationdomain "github.com/smallbiznis/encore/internal/notification/domain"
	"gorm.io/gorm"
)

// CreateBudget records a budget against a confirmed event together with its ledger row.
func (s *Service) CreateBudget(ctx context.Context, req financedomain.BudgetRequest) (*financedomain.BudgetResult, error) {
	const op = "create_budget"

	user, err := s.actor(ctx, op)
	if err != nil {
		return nil, err
	}
	if !req.AllocatedBudget.IsPositive() {
		return nil, financedomain.Validation(op, "allocatedBudget must be greater than zero", financedomain.ErrInvalidAmount)
	}
	remaining := req.AllocatedBudget
	if req.RemainingBudget != nil {
		if req.RemainingBudget.IsNegative() {
			return nil, financedomain.Validation(op, "remainingBudget cannot be negative", financedomain.ErrInvalidAmount)
		}
		remaining = *req.RemainingBudget
	}
	status := financedomain.BudgetStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if status == "" {
		status = financedomain.BudgetStatusPending
	}
	if !status.Valid() {
		return nil, financedomain.Validation(op, "status must be one of pending, approved, declined", financedomain.ErrInvalidStatus)
	}
	if req.EventID == 0 {
		return nil, financedomain.Validation(op, "eventId is required", financedomain.ErrEventNotFound)
	}

	event, err := s.events.FindByID(ctx, s.db, req.EventID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if event == nil {
		return nil, financedomain.NotFound(op, "event not found", financedomain.ErrEventNotFound)
	}
	if !event.Confirmed() {
		return nil, financedomain.InvalidState(op, fmt.Sprintf("budget requires a confirmed event, event is %s", event.Status), financedomain.ErrEventNotConfirmed)
	}

	stored, err := s.storeAttachment(ctx, op, req.Attachment, attachmentdomain.FolderBudgetInfo)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	budget := &financedomain.Budget{
		ID:              s.genID.Generate(),
		EventID:         event.ID,
		OwnerID:         user.ID,
		AllocatedBudget: req.AllocatedBudget,
		RemainingBudget: remaining,
		Status:          status,
		Reason:          strings.TrimSpace(req.Reason),
		LastUpdated:     now,
		CreatedAt:       now,
	}
	if stored != nil {
		budget.AttachmentURL = strPtr(stored.URL)
		budget.AttachmentProvider = strPtr(stored.Provider)
	}

	var transaction *ledgerdomain.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertBudget(ctx, tx, budget); err != nil {
			return err
		}
		recorded, err := s.ledger.Record(ctx, tx, ledgerdomain.RecordInput{
			Type:     ledgerdomain.TransactionTypeBudget,
			Amount:   budget.AllocatedBudget,
			Details:  fmt.Sprintf("Budget for %s", event.Title),
			UserID:   idPtr(user.ID),
			SourceID: idPtr(budget.ID),
			Date:     now,
		})
		if err != nil {
			return err
		}
		transaction = recorded
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	s.recordAudit(ctx, "budget.created", financedomain.RecordTypeBudget, budget.ID, map[string]any{
		"eventId":         event.ID.String(),
		"allocatedBudget": budget.AllocatedBudget.StringFixed(2),
		"status":          string(budget.Status),
	})
	s.notifyFinance(ctx, fmt.Sprintf("Budget of %s requested for %s by %s",
		budget.AllocatedBudget.StringFixed(2), event.Title, user.FullName), notificationdomain.Notice{})

	return &financedomain.BudgetResult{Budget: budget, Transaction: transaction}, nil
}
