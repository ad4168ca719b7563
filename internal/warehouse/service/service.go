package service

import (
	"context"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/medflow/medflow-warehouse/pkg/logger"
)

// EventPublisher announces committed stock changes. Implementations log
// delivery failures instead of returning them; the ledger is already committed.
type EventPublisher interface {
	ReceiptApproved(ctx context.Context, doc *domain.ReceiptDocument, movements []*domain.StockMovement)
	ReceiptUnapproved(ctx context.Context, doc *domain.ReceiptDocument, reason string, movements []*domain.StockMovement)
	IssuanceApproved(ctx context.Context, doc *domain.IssuanceDocument, movements []*domain.StockMovement)
	IssuanceUnapproved(ctx context.Context, doc *domain.IssuanceDocument, reason string, movements []*domain.StockMovement)
	StockAdjusted(ctx context.Context, movement *domain.StockMovement)
	LowStock(ctx context.Context, item *domain.Item)
}

type noopPublisher struct{}

func (noopPublisher) ReceiptApproved(context.Context, *domain.ReceiptDocument, []*domain.StockMovement) {
}
func (noopPublisher) ReceiptUnapproved(context.Context, *domain.ReceiptDocument, string, []*domain.StockMovement) {
}
func (noopPublisher) IssuanceApproved(context.Context, *domain.IssuanceDocument, []*domain.StockMovement) {
}
func (noopPublisher) IssuanceUnapproved(context.Context, *domain.IssuanceDocument, string, []*domain.StockMovement) {
}
func (noopPublisher) StockAdjusted(context.Context, *domain.StockMovement) {}
func (noopPublisher) LowStock(context.Context, *domain.Item)               {}

// Options tunes stock handling.
type Options struct {
	// NearExpiryWindow is how far ahead a lot counts as near expiry.
	NearExpiryWindow time.Duration
	// MaxRetries bounds re-runs of a unit of work after an integrity conflict.
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between re-runs.
	RetryDelay time.Duration
	// AllowReceiptUnapprove enables the receipt compensation.
	AllowReceiptUnapprove bool
}

// WarehouseService applies stock documents to the ledger and its projections.
type WarehouseService struct {
	scope     domain.TransactionScope
	sequencer domain.Sequencer
	clock     domain.Clock
	events    EventPublisher
	opts      Options
	logger    *logger.Logger
}

// NewWarehouseService creates a new warehouse service
func NewWarehouseService(
	scope domain.TransactionScope,
	sequencer domain.Sequencer,
	clock domain.Clock,
	events EventPublisher,
	opts Options,
	log *logger.Logger,
) *WarehouseService {
	if events == nil {
		events = noopPublisher{}
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &WarehouseService{
		scope:     scope,
		sequencer: sequencer,
		clock:     clock,
		events:    events,
		opts:      opts,
		logger:    log,
	}
}

// ApprovalResult is returned by approve and unapprove operations.
type ApprovalResult struct {
	DocumentType domain.DocumentType     `json:"document_type"`
	DocumentID   string                  `json:"document_id"`
	DocumentCode string                  `json:"document_code"`
	Status       domain.DocumentStatus   `json:"status"`
	Movements    []*domain.StockMovement `json:"movements"`
}

// inTx runs fn in a transaction, re-running it after integrity conflicts.
// fn must not keep state across attempts.
func (s *WarehouseService) inTx(ctx context.Context, op string, fn func(repos domain.Repositories) error) error {
	for attempt := 0; ; attempt++ {
		err := s.scope.Execute(ctx, fn)
		if err == nil || !errors.Is(err, errors.ErrIntegrityConflict) || attempt >= s.opts.MaxRetries {
			return err
		}

		s.logger.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt+1).
			Msg("integrity conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.RetryDelay * time.Duration(attempt+1)):
		}
	}
}

func (s *WarehouseService) note(ctx context.Context, repos domain.Repositories, t domain.DocumentType, id string, action domain.NoteAction, reason string, by *actor.Actor, at time.Time) error {
	return repos.Notes().Append(ctx, &domain.DocumentNote{
		ID:           newID(),
		DocumentType: t,
		DocumentID:   id,
		Action:       action,
		Reason:       reason,
		ActorID:      by.ID,
		CreatedAt:    at,
	})
}

func (s *WarehouseService) nextCode(ctx context.Context, t domain.DocumentType, now time.Time) (string, error) {
	n, err := s.sequencer.Next(ctx, t.Prefix(), now)
	if err != nil {
		return "", err
	}
	return domain.FormatDocumentCode(t, now, n), nil
}
