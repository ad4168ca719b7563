package service

import (
	"context"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/logger"
)

// RefreshLotStatuses reclassifies lots that still hold stock against the
// current date. Quantities are not touched and no ledger rows are written.
// Returns the number of lots whose status changed.
func (s *WarehouseService) RefreshLotStatuses(ctx context.Context) (int, error) {
	lots, err := s.scope.Read().Lots().ListInStock(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, candidate := range lots {
		id := candidate.ID
		var updated bool
		err := s.inTx(ctx, "refresh_lot_status", func(repos domain.Repositories) error {
			updated = false
			lot, err := repos.Lots().GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			if !lot.Reclassify(now, s.opts.NearExpiryWindow) {
				return nil
			}
			lot.UpdatedAt = now
			updated = true
			return repos.Lots().Update(ctx, lot)
		})
		if err != nil {
			return changed, err
		}
		if updated {
			changed++
		}
	}
	return changed, nil
}

// LotStatusScheduler refreshes lot statuses periodically.
type LotStatusScheduler struct {
	service  *WarehouseService
	interval time.Duration
	logger   *logger.Logger
	cancel   context.CancelFunc
}

// NewLotStatusScheduler creates a new lot status scheduler
func NewLotStatusScheduler(service *WarehouseService, interval time.Duration, log *logger.Logger) *LotStatusScheduler {
	return &LotStatusScheduler{
		service:  service,
		interval: interval,
		logger:   log,
	}
}

// Start runs a refresh immediately and then on every tick until Stop.
func (s *LotStatusScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(actor.WithActor(ctx, actor.SystemActor()))

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("lot status scheduler started")

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("lot status scheduler stopped")
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop stops the scheduler goroutine
func (s *LotStatusScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *LotStatusScheduler) runCycle(ctx context.Context) {
	start := time.Now()
	changed, err := s.service.RefreshLotStatuses(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("lot status refresh failed")
		}
		return
	}
	s.logger.Info().
		Int("changed", changed).
		Dur("duration", time.Since(start)).
		Msg("lot status refresh completed")
}
