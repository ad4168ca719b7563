package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/errors"
)

// ---------------------------------------------------------------- receipts

type receiptRepo struct{ v *view }

func (r *receiptRepo) Create(ctx context.Context, doc *domain.ReceiptDocument) error {
	return r.v.write(func(st *state) error {
		if err := codeTaken(st, doc.ID, doc.Code); err != nil {
			return err
		}
		st.receipts[doc.ID] = copyReceipt(*doc)
		return nil
	})
}

func (r *receiptRepo) Get(ctx context.Context, id string) (*domain.ReceiptDocument, error) {
	var out *domain.ReceiptDocument
	err := r.v.read(func(st *state) error {
		doc, ok := st.receipts[id]
		if !ok {
			return errors.NotFound("receipt")
		}
		doc = copyReceipt(doc)
		out = &doc
		return nil
	})
	return out, err
}

func (r *receiptRepo) GetForUpdate(ctx context.Context, id string) (*domain.ReceiptDocument, error) {
	return r.Get(ctx, id)
}

func (r *receiptRepo) Update(ctx context.Context, doc *domain.ReceiptDocument) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.receipts[doc.ID]; !ok {
			return errors.NotFound("receipt")
		}
		st.receipts[doc.ID] = copyReceipt(*doc)
		return nil
	})
}

// ---------------------------------------------------------------- issuances

type issuanceRepo struct{ v *view }

func (r *issuanceRepo) Create(ctx context.Context, doc *domain.IssuanceDocument) error {
	return r.v.write(func(st *state) error {
		if err := codeTaken(st, doc.ID, doc.Code); err != nil {
			return err
		}
		st.issuances[doc.ID] = copyIssuance(*doc)
		return nil
	})
}

func (r *issuanceRepo) Get(ctx context.Context, id string) (*domain.IssuanceDocument, error) {
	var out *domain.IssuanceDocument
	err := r.v.read(func(st *state) error {
		doc, ok := st.issuances[id]
		if !ok {
			return errors.NotFound("issuance")
		}
		doc = copyIssuance(doc)
		out = &doc
		return nil
	})
	return out, err
}

func (r *issuanceRepo) GetForUpdate(ctx context.Context, id string) (*domain.IssuanceDocument, error) {
	return r.Get(ctx, id)
}

func (r *issuanceRepo) Update(ctx context.Context, doc *domain.IssuanceDocument) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.issuances[doc.ID]; !ok {
			return errors.NotFound("issuance")
		}
		st.issuances[doc.ID] = copyIssuance(*doc)
		return nil
	})
}

func codeTaken(st *state, id, code string) error {
	if _, ok := st.receipts[id]; ok {
		return errors.Conflict("a document with this id already exists")
	}
	if _, ok := st.issuances[id]; ok {
		return errors.Conflict("a document with this id already exists")
	}
	for _, d := range st.receipts {
		if d.Code == code {
			return errors.Conflict("a document with this code already exists")
		}
	}
	for _, d := range st.issuances {
		if d.Code == code {
			return errors.Conflict("a document with this code already exists")
		}
	}
	return nil
}

// ---------------------------------------------------------------- ledger

type movementRepo struct{ v *view }

func (r *movementRepo) Append(ctx context.Context, m *domain.StockMovement) error {
	return r.v.write(func(st *state) error {
		if m.QuantityAfter != m.QuantityBefore+m.QuantityDelta || m.QuantityAfter < 0 {
			return errors.IntegrityConflict("stock movement does not balance")
		}
		st.movementSeq++
		m.Seq = st.movementSeq
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (r *movementRepo) ListByItem(ctx context.Context, itemID string, from, to *time.Time) ([]*domain.StockMovement, error) {
	return r.filter(func(m *domain.StockMovement) bool {
		if m.ItemID != itemID {
			return false
		}
		if from != nil && m.CreatedAt.Before(*from) {
			return false
		}
		if to != nil && m.CreatedAt.After(*to) {
			return false
		}
		return true
	})
}

func (r *movementRepo) ListByDocument(ctx context.Context, documentID string) ([]*domain.StockMovement, error) {
	return r.filter(func(m *domain.StockMovement) bool {
		return m.DocumentID != nil && *m.DocumentID == documentID
	})
}

func (r *movementRepo) filter(keep func(*domain.StockMovement) bool) ([]*domain.StockMovement, error) {
	var out []*domain.StockMovement
	err := r.v.read(func(st *state) error {
		for _, m := range st.movements {
			m := m
			if keep(&m) {
				out = append(out, &m)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, err
}

// ---------------------------------------------------------------- notes

type noteRepo struct{ v *view }

func (r *noteRepo) Append(ctx context.Context, n *domain.DocumentNote) error {
	return r.v.write(func(st *state) error {
		st.noteSeq++
		n.Seq = st.noteSeq
		st.notes = append(st.notes, *n)
		return nil
	})
}

func (r *noteRepo) ListByDocument(ctx context.Context, documentID string) ([]*domain.DocumentNote, error) {
	var out []*domain.DocumentNote
	err := r.v.read(func(st *state) error {
		for _, n := range st.notes {
			n := n
			if n.DocumentID == documentID {
				out = append(out, &n)
			}
		}
		return nil
	})
	return out, err
}
