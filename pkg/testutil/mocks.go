package testutil

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/pkg/database"
	"github.com/medflow/medflow-warehouse/pkg/logger"
)

// MockDB is a sqlmock-backed database whose query expectations match the
// SQL literally instead of as a regular expression.
//
//	mockDB := testutil.NewMockDB(t)
//	mockDB.ExpectQuery("FROM items WHERE id = $1").WillReturnRows(...)
//	store := repository.NewStore(mockDB.Wrapped())
//	...
//	mockDB.Verify(t)
type MockDB struct {
	sqlmock.Sqlmock
	DB *sqlx.DB
}

// NewMockDB creates a mock database that is closed when the test ends.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	m := &MockDB{Sqlmock: mock, DB: sqlx.NewDb(db, "postgres")}
	t.Cleanup(func() { _ = m.DB.Close() })
	return m
}

// Wrapped returns the mock as a *database.DB
func (m *MockDB) Wrapped() *database.DB {
	return database.Wrap(m.DB, logger.Nop())
}

func (m *MockDB) ExpectQuery(query string) *sqlmock.ExpectedQuery {
	return m.Sqlmock.ExpectQuery(regexp.QuoteMeta(query))
}

func (m *MockDB) ExpectExec(query string) *sqlmock.ExpectedExec {
	return m.Sqlmock.ExpectExec(regexp.QuoteMeta(query))
}

// Verify fails the test when an expectation was not consumed.
func (m *MockDB) Verify(t *testing.T) {
	t.Helper()
	if err := m.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func MockRows(columns ...string) *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

// AnyTime matches any time.Time argument.
type AnyTime struct{}

func (AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// MockPublisher records published events as JSON.
type MockPublisher struct {
	mu              sync.Mutex
	PublishedEvents []PublishedEvent
	Err             error
}

type PublishedEvent struct {
	Type string
	Data []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the event and returns Err.
func (m *MockPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	data, _ := json.Marshal(payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Type: eventType, Data: data})
	return m.Err
}

func (m *MockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.PublishedEvents))
	for i, e := range m.PublishedEvents {
		out[i] = e.Type
	}
	return out
}

func (m *MockPublisher) AssertEventPublished(t *testing.T, eventType string) {
	t.Helper()
	types := m.types()
	for _, typ := range types {
		if typ == eventType {
			return
		}
	}
	t.Errorf("event %q not published, got %v", eventType, types)
}

func (m *MockPublisher) AssertNoEventsPublished(t *testing.T) {
	t.Helper()
	if types := m.types(); len(types) > 0 {
		t.Errorf("expected no events, got %v", types)
	}
}

func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = nil
}
