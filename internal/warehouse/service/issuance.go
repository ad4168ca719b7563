package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/medflow/medflow-warehouse/pkg/permissions"
	"github.com/medflow/medflow-warehouse/pkg/validation"
	"github.com/shopspring/decimal"
)

// CreateIssuance validates an issuance and stores it as DRAFT.
func (s *WarehouseService) CreateIssuance(ctx context.Context, req CreateIssuanceRequest) (*domain.IssuanceDocument, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	by := actor.OrSystem(ctx)
	now := s.clock.Now()
	code, err := s.nextCode(ctx, domain.DocumentIssuance, now)
	if err != nil {
		return nil, err
	}

	var doc *domain.IssuanceDocument
	err = s.inTx(ctx, "create_issuance", func(repos domain.Repositories) error {
		doc = &domain.IssuanceDocument{
			ID:           newID(),
			Code:         code,
			DepartmentID: req.DepartmentID,
			WarehouseID:  req.WarehouseID,
			Status:       domain.StatusDraft,
			Note:         optional(req.Note),
			CreatedBy:    by.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		problems := domain.FieldErrors{}
		for i, in := range req.Lines {
			line := domain.IssuanceLine{
				ID:           newID(),
				IssuanceID:   doc.ID,
				LineNo:       i + 1,
				ItemID:       in.ItemID,
				RequestedQty: in.RequestedQty,
				IssuedQty:    in.IssuedQty,
				LotID:        optional(in.LotID),
				LocationID:   optional(in.LocationID),
				UnitCost:     decimal.Zero,
			}
			if err := checkIssuanceLine(ctx, repos, doc, &line, fmt.Sprintf("lines[%d]", i), problems); err != nil {
				return err
			}
			doc.Lines = append(doc.Lines, line)
		}
		if err := problems.Err(); err != nil {
			return err
		}

		return repos.Issuances().Create(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentIssuance), doc.Code).WithActor(by.ID).Info().
		Int("lines", len(doc.Lines)).
		Msg("issuance created")
	return doc, nil
}

func checkIssuanceLine(ctx context.Context, repos domain.Repositories, doc *domain.IssuanceDocument, line *domain.IssuanceLine, path string, problems domain.FieldErrors) error {
	item, err := repos.Items().Get(ctx, line.ItemID)
	if errors.Is(err, errors.ErrNotFound) {
		problems.Add(path+".item_id", "item not found")
		return nil
	}
	if err != nil {
		return err
	}

	if !item.TracksLots {
		if line.LotID != nil {
			problems.Add(path+".lot_id", "item "+item.Code+" does not track lots")
		}
		if line.LocationID != nil {
			problems.Add(path+".location_id", "item "+item.Code+" is not stocked by location")
		}
		return nil
	}

	if line.LotID != nil {
		lot, err := repos.Lots().Get(ctx, *line.LotID)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			problems.Add(path+".lot_id", "lot not found")
		case err != nil:
			return err
		case lot.ItemID != item.ID:
			problems.Add(path+".lot_id", "lot "+lot.LotNumber+" belongs to another item")
		}
	}
	if line.LocationID != nil {
		return checkLocation(ctx, repos, *line.LocationID, doc.WarehouseID, path+".location_id", problems)
	}
	return nil
}

// GetIssuance returns an issuance with its lines and allocations.
func (s *WarehouseService) GetIssuance(ctx context.Context, id string) (*domain.IssuanceDocument, error) {
	return s.scope.Read().Issuances().Get(ctx, id)
}

// SubmitIssuance moves a draft issuance to PENDING.
func (s *WarehouseService) SubmitIssuance(ctx context.Context, id string) (*domain.IssuanceDocument, error) {
	by := actor.OrSystem(ctx)

	var doc *domain.IssuanceDocument
	err := s.inTx(ctx, "submit_issuance", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Issuances().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != domain.StatusDraft {
			return domain.InvalidTransition(domain.DocumentIssuance, doc.Code, doc.Status, domain.StatusPending)
		}

		now := s.clock.Now()
		doc.Status = domain.StatusPending
		doc.SubmittedAt = &now
		doc.UpdatedAt = now
		if err := repos.Issuances().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentIssuance, doc.ID, domain.NoteSubmit, "", by, now)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ApproveIssuance allocates stock for every line and posts the issue.
// Either every line is issued or none is.
func (s *WarehouseService) ApproveIssuance(ctx context.Context, id string) (*ApprovalResult, error) {
	by := actor.OrSystem(ctx)

	var (
		doc  *domain.IssuanceDocument
		book *stockBook
	)
	err := s.inTx(ctx, "approve_issuance", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Issuances().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(domain.DocumentIssuance, doc.Code, doc.Status, domain.StatusApproved); err != nil {
			return err
		}

		now := s.clock.Now()
		book = s.newBook(ctx, repos, now, by.ID).forDocument(domain.DocumentIssuance, doc.ID, doc.Code)

		// availability is judged against what was requested, even when a
		// smaller issued quantity is what actually leaves stock
		needed := make(map[string]int64)
		itemIDs := make([]string, 0, len(doc.Lines))
		for _, line := range doc.Lines {
			needed[line.ItemID] += line.RequestedQty
			itemIDs = append(itemIDs, line.ItemID)
		}
		if err := book.lockItems(itemIDs); err != nil {
			return err
		}

		sort.Strings(itemIDs)
		for _, itemID := range itemIDs {
			item := book.items[itemID]
			if item.IssuableQuantity < needed[itemID] {
				return domain.InsufficientStock(item, needed[itemID], item.IssuableQuantity, nil)
			}
		}

		doc.Allocations = nil
		for i := range doc.Lines {
			if err := s.issueLine(book, doc, i); err != nil {
				return err
			}
		}

		doc.Status = domain.StatusApproved
		doc.ApprovedBy = &by.ID
		doc.ApprovedAt = &now
		doc.UpdatedAt = now
		if err := repos.Issuances().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentIssuance, doc.ID, domain.NoteApprove, "", by, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentIssuance), doc.Code).WithActor(by.ID).Info().
		Int("movements", len(book.movements)).
		Msg("issuance approved")
	s.events.IssuanceApproved(ctx, doc, book.movements)
	for _, item := range book.lowStockItems() {
		s.events.LowStock(ctx, item)
	}

	return &ApprovalResult{
		DocumentType: domain.DocumentIssuance,
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		Status:       doc.Status,
		Movements:    book.movements,
	}, nil
}

func (s *WarehouseService) issueLine(book *stockBook, doc *domain.IssuanceDocument, i int) error {
	line := &doc.Lines[i]
	item := book.items[line.ItemID]
	qty := line.QuantityToIssue()

	if !item.TracksLots {
		line.UnitCost = item.AvgReceiptCost
		line.IssuedQty = qty
		_, err := book.post(posting{
			Type:     domain.MovementIssuance,
			Item:     item,
			Delta:    -qty,
			UnitCost: item.AvgReceiptCost,
		})
		return err
	}

	rows, err := book.repos.Locations().ListStockByItemForUpdate(book.ctx, item.ID)
	if err != nil {
		return err
	}

	scope := domain.Scope{WarehouseID: doc.WarehouseID}
	if line.LocationID != nil {
		scope.LocationID = *line.LocationID
	}
	if line.LotID != nil {
		scope.LotID = *line.LotID
	}

	byLot := make(map[string][]*domain.LocationStock)
	var lotIDs []string
	var outside []*domain.LocationStock
	for _, row := range rows {
		if !scope.Contains(row) {
			outside = append(outside, row)
			continue
		}
		if _, ok := byLot[row.LotID]; !ok {
			lotIDs = append(lotIDs, row.LotID)
		}
		byLot[row.LotID] = append(byLot[row.LotID], row)
	}
	sort.Strings(lotIDs)

	candidates := make([]domain.LotCandidate, 0, len(lotIDs))
	for _, lotID := range lotIDs {
		lot, err := book.lot(lotID)
		if err != nil {
			return err
		}
		var available int64
		for _, row := range byLot[lotID] {
			available += row.Quantity
		}
		candidates = append(candidates, domain.LotCandidate{
			LotID:      lot.ID,
			LotNumber:  lot.LotNumber,
			ExpiryDate: lot.ExpiryDate,
			Seq:        lot.Seq,
			Available:  min(available, lot.CurrentQuantity),
		})
	}

	draws, available, ok := domain.AllocateFEFO(qty, candidates)
	if !ok {
		holdings, err := describeHoldings(book, outside)
		if err != nil {
			return err
		}
		return domain.InsufficientStock(item, qty, available, holdings)
	}

	var costs []domain.CostedQuantity
	for _, draw := range draws {
		lot := book.lots[draw.LotID]
		for _, ld := range domain.DrawFromLocations(byLot[draw.LotID], draw.Quantity) {
			if _, err := book.post(posting{
				Type:       domain.MovementIssuance,
				Item:       item,
				Lot:        lot,
				LocationID: ld.LocationID,
				Delta:      -ld.Quantity,
				UnitCost:   lot.ReceiptCost,
			}); err != nil {
				return err
			}
			doc.Allocations = append(doc.Allocations, domain.IssuanceAllocation{
				ID:         newID(),
				IssuanceID: doc.ID,
				LineID:     line.ID,
				LotID:      lot.ID,
				LocationID: ld.LocationID,
				Quantity:   ld.Quantity,
				UnitCost:   lot.ReceiptCost,
				Seq:        len(doc.Allocations) + 1,
			})
		}
		costs = append(costs, domain.CostedQuantity{Quantity: draw.Quantity, UnitCost: lot.ReceiptCost})
	}

	line.UnitCost = domain.BlendedCost(costs)
	line.IssuedQty = qty
	return nil
}

// describeHoldings names the lots and locations holding stock outside the
// allocation scope, for the shortfall message.
func describeHoldings(book *stockBook, rows []*domain.LocationStock) ([]domain.Holding, error) {
	holdings := make([]domain.Holding, 0, len(rows))
	for _, row := range rows {
		lot, err := book.repos.Lots().Get(book.ctx, row.LotID)
		if err != nil {
			return nil, err
		}
		loc, err := book.repos.Locations().Get(book.ctx, row.LocationID)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, domain.Holding{
			LotID:        lot.ID,
			LotNumber:    lot.LotNumber,
			LocationID:   loc.ID,
			LocationCode: loc.Code,
			Quantity:     row.Quantity,
		})
	}
	return holdings, nil
}

// UnapproveIssuance reverses an approved issuance from its recorded
// allocations, putting stock back on the same lots and locations, and
// returns the document to PENDING.
func (s *WarehouseService) UnapproveIssuance(ctx context.Context, id string, req ReasonRequest) (*ApprovalResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	by := actor.OrSystem(ctx)
	if !by.Can(permissions.IssuanceUnapprove) {
		return nil, errors.Forbidden("missing permission " + permissions.IssuanceUnapprove)
	}

	var (
		doc  *domain.IssuanceDocument
		book *stockBook
	)
	err := s.inTx(ctx, "unapprove_issuance", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Issuances().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != domain.StatusApproved {
			return domain.InvalidTransition(domain.DocumentIssuance, doc.Code, doc.Status, domain.StatusPending)
		}

		now := s.clock.Now()
		book = s.newBook(ctx, repos, now, by.ID).forDocument(domain.DocumentIssuance, doc.ID, doc.Code)

		itemIDs := make([]string, len(doc.Lines))
		for i, line := range doc.Lines {
			itemIDs[i] = line.ItemID
		}
		if err := book.lockItems(itemIDs); err != nil {
			return err
		}

		for i := len(doc.Lines) - 1; i >= 0; i-- {
			if err := s.restoreLine(book, doc, i, req.Reason); err != nil {
				return err
			}
		}

		doc.Status = domain.StatusPending
		doc.ApprovedBy = nil
		doc.ApprovedAt = nil
		doc.Allocations = nil
		doc.UpdatedAt = now
		for i := range doc.Lines {
			doc.Lines[i].UnitCost = decimal.Zero
		}
		if err := repos.Issuances().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentIssuance, doc.ID, domain.NoteUnapprove, req.Reason, by, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentIssuance), doc.Code).WithActor(by.ID).Info().
		Str("reason", req.Reason).
		Int("movements", len(book.movements)).
		Msg("issuance unapproved")
	s.events.IssuanceUnapproved(ctx, doc, req.Reason, book.movements)

	return &ApprovalResult{
		DocumentType: domain.DocumentIssuance,
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		Status:       doc.Status,
		Movements:    book.movements,
	}, nil
}

func (s *WarehouseService) restoreLine(book *stockBook, doc *domain.IssuanceDocument, i int, reason string) error {
	line := &doc.Lines[i]
	item := book.items[line.ItemID]

	if !item.TracksLots {
		_, err := book.post(posting{
			Type:     domain.MovementUnapproveIssuance,
			Item:     item,
			Delta:    line.QuantityToIssue(),
			UnitCost: line.UnitCost,
			Reason:   reason,
		})
		return err
	}

	allocations := doc.AllocationsFor(line.ID)
	if len(allocations) == 0 {
		return errors.Internal(fmt.Sprintf("issuance %s line %d has no allocation record", doc.Code, line.LineNo))
	}
	for j := len(allocations) - 1; j >= 0; j-- {
		a := allocations[j]
		lot, err := book.lot(a.LotID)
		if err != nil {
			return err
		}
		if _, err := book.post(posting{
			Type:       domain.MovementUnapproveIssuance,
			Item:       item,
			Lot:        lot,
			LocationID: a.LocationID,
			Delta:      a.Quantity,
			UnitCost:   a.UnitCost,
			Reason:     reason,
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeliverIssuance marks an approved issuance as handed over. Stock is not touched.
func (s *WarehouseService) DeliverIssuance(ctx context.Context, id string) (*domain.IssuanceDocument, error) {
	by := actor.OrSystem(ctx)

	var doc *domain.IssuanceDocument
	err := s.inTx(ctx, "deliver_issuance", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Issuances().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(domain.DocumentIssuance, doc.Code, doc.Status, domain.StatusDelivered); err != nil {
			return err
		}

		now := s.clock.Now()
		doc.Status = domain.StatusDelivered
		doc.DeliveredBy = &by.ID
		doc.DeliveredAt = &now
		doc.UpdatedAt = now
		if err := repos.Issuances().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentIssuance, doc.ID, domain.NoteDeliver, "", by, now)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CancelIssuance cancels an issuance that has not been approved.
func (s *WarehouseService) CancelIssuance(ctx context.Context, id string, req ReasonRequest) (*domain.IssuanceDocument, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	by := actor.OrSystem(ctx)

	var doc *domain.IssuanceDocument
	err := s.inTx(ctx, "cancel_issuance", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Issuances().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(domain.DocumentIssuance, doc.Code, doc.Status, domain.StatusCancelled); err != nil {
			return err
		}

		now := s.clock.Now()
		doc.Status = domain.StatusCancelled
		doc.CancelledBy = &by.ID
		doc.CancelledAt = &now
		doc.CancelReason = &req.Reason
		doc.UpdatedAt = now
		if err := repos.Issuances().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentIssuance, doc.ID, domain.NoteCancel, req.Reason, by, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentIssuance), doc.Code).WithActor(by.ID).Info().
		Str("reason", req.Reason).
		Msg("issuance cancelled")
	return doc, nil
}

// CancelDocument cancels a receipt or an issuance.
func (s *WarehouseService) CancelDocument(ctx context.Context, t domain.DocumentType, id string, req ReasonRequest) error {
	var err error
	switch t {
	case domain.DocumentReceipt:
		_, err = s.CancelReceipt(ctx, id, req)
	case domain.DocumentIssuance:
		_, err = s.CancelIssuance(ctx, id, req)
	default:
		err = errors.BadRequest("unknown document type " + string(t))
	}
	return err
}
