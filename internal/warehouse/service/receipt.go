package service

import (
	"context"
	"fmt"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/medflow/medflow-warehouse/pkg/permissions"
	"github.com/medflow/medflow-warehouse/pkg/validation"
)

// CreateReceipt validates a receipt and stores it as DRAFT.
func (s *WarehouseService) CreateReceipt(ctx context.Context, req CreateReceiptRequest) (*domain.ReceiptDocument, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	by := actor.OrSystem(ctx)
	now := s.clock.Now()
	code, err := s.nextCode(ctx, domain.DocumentReceipt, now)
	if err != nil {
		return nil, err
	}

	var doc *domain.ReceiptDocument
	err = s.inTx(ctx, "create_receipt", func(repos domain.Repositories) error {
		doc = &domain.ReceiptDocument{
			ID:          newID(),
			Code:        code,
			SupplierID:  optional(req.SupplierID),
			WarehouseID: req.WarehouseID,
			LocationID:  optional(req.LocationID),
			Status:      domain.StatusDraft,
			Note:        optional(req.Note),
			CreatedBy:   by.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		problems := domain.FieldErrors{}
		if doc.LocationID != nil {
			if err := checkLocation(ctx, repos, *doc.LocationID, doc.WarehouseID, "location_id", problems); err != nil {
				return err
			}
		}

		for i, in := range req.Lines {
			line := domain.ReceiptLine{
				ID:              newID(),
				ReceiptID:       doc.ID,
				LineNo:          i + 1,
				ItemID:          in.ItemID,
				LotNumber:       optional(in.LotNumber),
				LocationID:      optional(in.LocationID),
				Quantity:        in.Quantity,
				UnitCost:        in.UnitCost.Round(domain.CostPlaces),
				ManufactureDate: in.ManufactureDate.timePtr(),
				ExpiryDate:      in.ExpiryDate.timePtr(),
			}
			if err := s.checkReceiptLine(ctx, repos, doc, &line, fmt.Sprintf("lines[%d]", i), problems); err != nil {
				return err
			}
			doc.Lines = append(doc.Lines, line)
		}
		if err := problems.Err(); err != nil {
			return err
		}

		return repos.Receipts().Create(ctx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentReceipt), doc.Code).WithActor(by.ID).Info().
		Int("lines", len(doc.Lines)).
		Msg("receipt created")
	return doc, nil
}

func (s *WarehouseService) checkReceiptLine(ctx context.Context, repos domain.Repositories, doc *domain.ReceiptDocument, line *domain.ReceiptLine, path string, problems domain.FieldErrors) error {
	if !line.UnitCost.IsPositive() {
		problems.Add(path+".unit_cost", "must be greater than 0")
	}
	if line.ExpiryDate != nil && line.ManufactureDate != nil && line.ExpiryDate.Before(*line.ManufactureDate) {
		problems.Add(path+".expiry_date", "must not be before the manufacture date")
	}

	item, err := repos.Items().Get(ctx, line.ItemID)
	if errors.Is(err, errors.ErrNotFound) {
		problems.Add(path+".item_id", "item not found")
		return nil
	}
	if err != nil {
		return err
	}

	if !item.TracksLots {
		if line.LotNumber != nil {
			problems.Add(path+".lot_number", "item "+item.Code+" does not track lots")
		}
		if line.LocationID != nil {
			problems.Add(path+".location_id", "item "+item.Code+" is not stocked by location")
		}
		return nil
	}

	if line.LotNumber == nil {
		problems.Add(path+".lot_number", "required for lot-tracked item "+item.Code)
	}
	if item.HasExpiry && line.ExpiryDate == nil {
		problems.Add(path+".expiry_date", "required for expiry-tracked item "+item.Code)
	}

	target := doc.TargetLocation(line)
	if target == nil {
		problems.Add(path+".location_id", "required for lot-tracked item "+item.Code)
		return nil
	}
	if line.LocationID != nil {
		return checkLocation(ctx, repos, *line.LocationID, doc.WarehouseID, path+".location_id", problems)
	}
	return nil
}

func checkLocation(ctx context.Context, repos domain.Repositories, id, warehouseID, field string, problems domain.FieldErrors) error {
	loc, err := repos.Locations().Get(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		problems.Add(field, "location not found")
		return nil
	}
	if err != nil {
		return err
	}
	if loc.WarehouseID != warehouseID {
		problems.Add(field, "location "+loc.Code+" belongs to another warehouse")
	}
	return nil
}

// GetReceipt returns a receipt with its lines.
func (s *WarehouseService) GetReceipt(ctx context.Context, id string) (*domain.ReceiptDocument, error) {
	return s.scope.Read().Receipts().Get(ctx, id)
}

// SubmitReceipt moves a draft receipt to PENDING.
func (s *WarehouseService) SubmitReceipt(ctx context.Context, id string) (*domain.ReceiptDocument, error) {
	by := actor.OrSystem(ctx)

	var doc *domain.ReceiptDocument
	err := s.inTx(ctx, "submit_receipt", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Receipts().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != domain.StatusDraft {
			return domain.InvalidTransition(domain.DocumentReceipt, doc.Code, doc.Status, domain.StatusPending)
		}

		now := s.clock.Now()
		doc.Status = domain.StatusPending
		doc.SubmittedAt = &now
		doc.UpdatedAt = now
		if err := repos.Receipts().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentReceipt, doc.ID, domain.NoteSubmit, "", by, now)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ApproveReceipt posts every line to the ledger and marks the receipt APPROVED.
func (s *WarehouseService) ApproveReceipt(ctx context.Context, id string) (*ApprovalResult, error) {
	by := actor.OrSystem(ctx)

	var (
		doc  *domain.ReceiptDocument
		book *stockBook
	)
	err := s.inTx(ctx, "approve_receipt", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Receipts().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(domain.DocumentReceipt, doc.Code, doc.Status, domain.StatusApproved); err != nil {
			return err
		}

		now := s.clock.Now()
		book = s.newBook(ctx, repos, now, by.ID).forDocument(domain.DocumentReceipt, doc.ID, doc.Code)

		itemIDs := make([]string, len(doc.Lines))
		for i, line := range doc.Lines {
			itemIDs[i] = line.ItemID
		}
		if err := book.lockItems(itemIDs); err != nil {
			return err
		}

		for i := range doc.Lines {
			if err := s.receiveLine(book, doc, i); err != nil {
				return err
			}
		}

		doc.Status = domain.StatusApproved
		doc.ApprovedBy = &by.ID
		doc.ApprovedAt = &now
		doc.UpdatedAt = now
		if err := repos.Receipts().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentReceipt, doc.ID, domain.NoteApprove, "", by, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentReceipt), doc.Code).WithActor(by.ID).Info().
		Int("movements", len(book.movements)).
		Msg("receipt approved")
	s.events.ReceiptApproved(ctx, doc, book.movements)

	return &ApprovalResult{
		DocumentType: domain.DocumentReceipt,
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		Status:       doc.Status,
		Movements:    book.movements,
	}, nil
}

func (s *WarehouseService) receiveLine(book *stockBook, doc *domain.ReceiptDocument, i int) error {
	line := &doc.Lines[i]
	item, err := book.item(line.ItemID)
	if err != nil {
		return err
	}

	p := posting{
		Type:     domain.MovementReceipt,
		Item:     item,
		Delta:    line.Quantity,
		UnitCost: line.UnitCost,
	}

	if item.TracksLots {
		target := doc.TargetLocation(line)
		if line.LotNumber == nil || target == nil {
			return errors.Validation(map[string]string{
				fmt.Sprintf("lines[%d]", i): "lot number and location are required for lot-tracked item " + item.Code,
			})
		}
		lot, err := s.receivingLot(book, item, line, i)
		if err != nil {
			return err
		}
		p.Lot = lot
		p.LocationID = *target
		line.LotID = &lot.ID
	}

	item.AvgReceiptCost = domain.WeightedAverageCost(item.AvgReceiptCost, item.TotalQuantity, line.UnitCost, line.Quantity)
	_, err = book.post(p)
	return err
}

// receivingLot finds the lot named by the line or creates it. Receiving into
// an existing lot blends its receipt cost.
func (s *WarehouseService) receivingLot(book *stockBook, item *domain.Item, line *domain.ReceiptLine, i int) (*domain.Lot, error) {
	lots := book.repos.Lots()
	lot, err := lots.FindByNumberForUpdate(book.ctx, item.ID, *line.LotNumber)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		lot = &domain.Lot{
			ID:              newID(),
			ItemID:          item.ID,
			LotNumber:       *line.LotNumber,
			ManufactureDate: line.ManufactureDate,
			ExpiryDate:      line.ExpiryDate,
			ReceiptCost:     line.UnitCost,
			Status:          domain.LotNew,
			CreatedAt:       book.now,
			UpdatedAt:       book.now,
		}
		if err := lots.Create(book.ctx, lot); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if line.ExpiryDate != nil && lot.ExpiryDate != nil && !line.ExpiryDate.Equal(*lot.ExpiryDate) {
			return nil, errors.Validation(map[string]string{
				fmt.Sprintf("lines[%d].expiry_date", i): fmt.Sprintf("lot %s already exists with expiry %s",
					lot.LotNumber, lot.ExpiryDate.Format("2006-01-02")),
			})
		}
		if lot.ExpiryDate == nil {
			lot.ExpiryDate = line.ExpiryDate
		}
		if lot.ManufactureDate == nil {
			lot.ManufactureDate = line.ManufactureDate
		}
		lot.ReceiptCost = domain.WeightedAverageCost(lot.ReceiptCost, lot.CurrentQuantity, line.UnitCost, line.Quantity)
	}

	book.trackLot(lot)
	return lot, nil
}

// CancelReceipt cancels a receipt that has not been approved.
func (s *WarehouseService) CancelReceipt(ctx context.Context, id string, req ReasonRequest) (*domain.ReceiptDocument, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	by := actor.OrSystem(ctx)

	var doc *domain.ReceiptDocument
	err := s.inTx(ctx, "cancel_receipt", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Receipts().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(domain.DocumentReceipt, doc.Code, doc.Status, domain.StatusCancelled); err != nil {
			return err
		}

		now := s.clock.Now()
		doc.Status = domain.StatusCancelled
		doc.CancelledBy = &by.ID
		doc.CancelledAt = &now
		doc.CancelReason = &req.Reason
		doc.UpdatedAt = now
		if err := repos.Receipts().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentReceipt, doc.ID, domain.NoteCancel, req.Reason, by, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentReceipt), doc.Code).WithActor(by.ID).Info().
		Str("reason", req.Reason).
		Msg("receipt cancelled")
	return doc, nil
}

// UnapproveReceipt reverses an approved receipt and returns it to PENDING.
// It fails when part of the received stock has already left the warehouse.
func (s *WarehouseService) UnapproveReceipt(ctx context.Context, id string, req ReasonRequest) (*ApprovalResult, error) {
	if !s.opts.AllowReceiptUnapprove {
		return nil, errors.InvalidStateTransition("receipt unapprove is disabled", map[string]string{
			"document_type": string(domain.DocumentReceipt),
		})
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	by := actor.OrSystem(ctx)
	if !by.Can(permissions.ReceiptUnapprove) {
		return nil, errors.Forbidden("missing permission " + permissions.ReceiptUnapprove)
	}

	var (
		doc  *domain.ReceiptDocument
		book *stockBook
	)
	err := s.inTx(ctx, "unapprove_receipt", func(repos domain.Repositories) error {
		var err error
		doc, err = repos.Receipts().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != domain.StatusApproved {
			return domain.InvalidTransition(domain.DocumentReceipt, doc.Code, doc.Status, domain.StatusPending)
		}

		now := s.clock.Now()
		book = s.newBook(ctx, repos, now, by.ID).forDocument(domain.DocumentReceipt, doc.ID, doc.Code)

		itemIDs := make([]string, len(doc.Lines))
		for i, line := range doc.Lines {
			itemIDs[i] = line.ItemID
		}
		if err := book.lockItems(itemIDs); err != nil {
			return err
		}

		for i := len(doc.Lines) - 1; i >= 0; i-- {
			if err := s.reverseLine(book, doc, i, req.Reason); err != nil {
				return err
			}
		}

		doc.Status = domain.StatusPending
		doc.ApprovedBy = nil
		doc.ApprovedAt = nil
		doc.UpdatedAt = now
		if err := repos.Receipts().Update(ctx, doc); err != nil {
			return err
		}
		return s.note(ctx, repos, domain.DocumentReceipt, doc.ID, domain.NoteUnapprove, req.Reason, by, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithDocument(string(domain.DocumentReceipt), doc.Code).WithActor(by.ID).Info().
		Str("reason", req.Reason).
		Int("movements", len(book.movements)).
		Msg("receipt unapproved")
	s.events.ReceiptUnapproved(ctx, doc, req.Reason, book.movements)

	return &ApprovalResult{
		DocumentType: domain.DocumentReceipt,
		DocumentID:   doc.ID,
		DocumentCode: doc.Code,
		Status:       doc.Status,
		Movements:    book.movements,
	}, nil
}

func (s *WarehouseService) reverseLine(book *stockBook, doc *domain.ReceiptDocument, i int, reason string) error {
	line := &doc.Lines[i]
	item, err := book.item(line.ItemID)
	if err != nil {
		return err
	}

	p := posting{
		Type:     domain.MovementUnapproveReceipt,
		Item:     item,
		Delta:    -line.Quantity,
		UnitCost: line.UnitCost,
		Reason:   reason,
	}

	if item.TracksLots && line.LotID != nil {
		target := doc.TargetLocation(line)
		if target == nil {
			return errors.Internal("approved receipt line has no location")
		}
		lot, err := book.lot(*line.LotID)
		if err != nil {
			return err
		}
		lot.ReceiptCost = domain.ReverseWeightedAverageCost(lot.ReceiptCost, lot.CurrentQuantity, line.UnitCost, line.Quantity)
		p.Lot = lot
		p.LocationID = *target
	}

	item.AvgReceiptCost = domain.ReverseWeightedAverageCost(item.AvgReceiptCost, item.TotalQuantity, line.UnitCost, line.Quantity)
	if _, err := book.post(p); err != nil {
		return err
	}
	line.LotID = nil
	return nil
}
