// Package memstore is an in-memory implementation of the warehouse
// repositories. A transaction works on a private copy of the state that
// replaces the committed state only when the callback succeeds, and
// transactions are serialized by a single writer lock.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
)

type stockKey struct {
	itemID, lotID, locationID string
}

type state struct {
	items     map[string]domain.Item
	lots      map[string]domain.Lot
	locations map[string]domain.Location
	stock     map[stockKey]domain.LocationStock
	receipts  map[string]domain.ReceiptDocument
	issuances map[string]domain.IssuanceDocument
	movements []domain.StockMovement
	notes     []domain.DocumentNote

	lotSeq      int64
	movementSeq int64
	noteSeq     int64
}

func newState() *state {
	return &state{
		items:     make(map[string]domain.Item),
		lots:      make(map[string]domain.Lot),
		locations: make(map[string]domain.Location),
		stock:     make(map[stockKey]domain.LocationStock),
		receipts:  make(map[string]domain.ReceiptDocument),
		issuances: make(map[string]domain.IssuanceDocument),
	}
}

func (s *state) clone() *state {
	c := &state{
		items:       maps.Clone(s.items),
		lots:        maps.Clone(s.lots),
		locations:   maps.Clone(s.locations),
		stock:       maps.Clone(s.stock),
		receipts:    make(map[string]domain.ReceiptDocument, len(s.receipts)),
		issuances:   make(map[string]domain.IssuanceDocument, len(s.issuances)),
		movements:   slices.Clone(s.movements),
		notes:       slices.Clone(s.notes),
		lotSeq:      s.lotSeq,
		movementSeq: s.movementSeq,
		noteSeq:     s.noteSeq,
	}
	for id, doc := range s.receipts {
		c.receipts[id] = copyReceipt(doc)
	}
	for id, doc := range s.issuances {
		c.issuances[id] = copyIssuance(doc)
	}
	return c
}

func copyReceipt(doc domain.ReceiptDocument) domain.ReceiptDocument {
	doc.Lines = slices.Clone(doc.Lines)
	return doc
}

func copyIssuance(doc domain.IssuanceDocument) domain.IssuanceDocument {
	doc.Lines = slices.Clone(doc.Lines)
	doc.Allocations = slices.Clone(doc.Allocations)
	return doc
}

// Store is the in-memory transaction scope.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// New creates an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// Execute runs fn against a private copy and commits it when fn succeeds.
func (s *Store) Execute(ctx context.Context, fn func(repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&repositories{v: &view{store: s, tx: work}}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Read returns repositories that see committed state only.
func (s *Store) Read() domain.Repositories {
	return &repositories{v: &view{store: s}}
}

type view struct {
	store *Store
	tx    *state
}

func (v *view) read(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.state)
}

func (v *view) write(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

type repositories struct {
	v *view
}

func (r *repositories) Items() domain.ItemRepository         { return &itemRepo{r.v} }
func (r *repositories) Lots() domain.LotRepository           { return &lotRepo{r.v} }
func (r *repositories) Locations() domain.LocationRepository { return &locationRepo{r.v} }
func (r *repositories) Receipts() domain.ReceiptRepository   { return &receiptRepo{r.v} }
func (r *repositories) Issuances() domain.IssuanceRepository { return &issuanceRepo{r.v} }
func (r *repositories) Movements() domain.MovementRepository { return &movementRepo{r.v} }
func (r *repositories) Notes() domain.NoteRepository         { return &noteRepo{r.v} }

var _ domain.TransactionScope = (*Store)(nil)
