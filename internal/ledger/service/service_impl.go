package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/encore/internal/clock"
	ledgerdomain "github.com/smallbiznis/encore/internal/ledger/domain"
	"github.com/smallbiznis/encore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  ledgerdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  ledgerdomain.Repository
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, in ledgerdomain.RecordInput) (*ledgerdomain.Transaction, error) {
	if !in.Type.Valid() {
		return nil, ledgerdomain.ErrInvalidTransactionType
	}
	if in.Amount.IsNegative() {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	row := &ledgerdomain.Transaction{
		ID:              s.genID.Generate(),
		TransactionType: in.Type,
		TotalAmount:     in.Amount,
		Details:         strings.TrimSpace(in.Details),
		Date:            date,
		InvoiceID:       in.InvoiceID,
		UserID:          in.UserID,
		SourceID:        in.SourceID,
		CreatedAt:       now,
	}
	if err := s.repo.Insert(ctx, tx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) List(ctx context.Context, req ledgerdomain.ListRequest) (ledgerdomain.ListResponse, error) {
	if req.Type != "" && !req.Type.Valid() {
		return ledgerdomain.ListResponse{}, ledgerdomain.ErrInvalidTransactionType
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return ledgerdomain.ListResponse{}, err
	}

	limit := req.Pagination.Limit()
	rows, err := s.repo.List(ctx, s.db, ledgerdomain.ListFilter{
		Type:   req.Type,
		UserID: req.UserID,
		After:  cursor,
		Limit:  limit + 1,
	})
	if err != nil {
		return ledgerdomain.ListResponse{}, err
	}

	rows, info, err := pagination.Trim(rows, limit, func(t ledgerdomain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: t.ID.String(), At: t.Date}
	})
	if err != nil {
		return ledgerdomain.ListResponse{}, err
	}
	if rows == nil {
		rows = []ledgerdomain.Transaction{}
	}
	return ledgerdomain.ListResponse{PageInfo: info, Transactions: rows}, nil
}

func (s *Service) Entries(ctx context.Context) ([]ledgerdomain.Entry, error) {
	return s.repo.ListEntries(ctx, s.db)
}
