// Package mock provides in-memory implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/visionid/visionid/internal/database"
)

// MockIdentityRepo is an in-memory implementation of database.IdentityWriter.
type MockIdentityRepo struct {
	mu         sync.RWMutex
	identities map[string]*database.Identity
	order      []string // insertion order, mirrors the stable gallery order

	// Error injection
	GetError    error
	ListError   error
	SaveError   error
	DeleteError error
}

// NewMockIdentityRepo creates a new mock identity repository.
func NewMockIdentityRepo() *MockIdentityRepo {
	return &MockIdentityRepo{
		identities: make(map[string]*database.Identity),
	}
}

// AddIdentity adds an identity directly to the mock store.
func (m *MockIdentityRepo) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identity.ID]; !ok {
		m.order = append(m.order, identity.ID)
	}
	m.identities[identity.ID] = &identity
}

// Get retrieves an identity by ID.
func (m *MockIdentityRepo) Get(ctx context.Context, id string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, nil
	}
	copied := *identity
	return &copied, nil
}

// GetByName retrieves an identity by name.
func (m *MockIdentityRepo) GetByName(ctx context.Context, name string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if m.identities[id].Name == name {
			copied := *m.identities[id]
			return &copied, nil
		}
	}
	return nil, nil
}

// List returns identities with pagination.
func (m *MockIdentityRepo) List(ctx context.Context, limit, offset int) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var identities []database.Identity
	for i := offset; i < len(m.order) && len(identities) < limit; i++ {
		identities = append(identities, *m.identities[m.order[i]])
	}
	return identities, nil
}

// Count returns the number of identities.
func (m *MockIdentityRepo) Count(ctx context.Context) (int, error) {
	if m.ListError != nil {
		return 0, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// ListGalleryEntries returns all entries in insertion order.
func (m *MockIdentityRepo) ListGalleryEntries(ctx context.Context) ([]database.GalleryEntry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]database.GalleryEntry, 0, len(m.order))
	for _, id := range m.order {
		identity := m.identities[id]
		entries = append(entries, database.GalleryEntry{
			IdentityID: identity.ID,
			Name:       identity.Name,
			Embedding:  identity.Embedding,
		})
	}
	return entries, nil
}

// Save inserts or replaces an identity.
func (m *MockIdentityRepo) Save(ctx context.Context, identity *database.Identity) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identity.ID]; !ok {
		m.order = append(m.order, identity.ID)
		identity.CreatedAt = time.Now()
	}
	identity.UpdatedAt = time.Now()
	copied := *identity
	m.identities[identity.ID] = &copied
	return nil
}

// Delete removes an identity.
func (m *MockIdentityRepo) Delete(ctx context.Context, id string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return false, nil
	}
	delete(m.identities, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// MockAttendanceRepo is an in-memory implementation of database.AttendanceWriter.
type MockAttendanceRepo struct {
	mu     sync.RWMutex
	logs   []database.AttendanceLog
	nextID int64

	// Error injection
	MarkError error
	ReadError error
}

// NewMockAttendanceRepo creates a new mock attendance repository.
func NewMockAttendanceRepo() *MockAttendanceRepo {
	return &MockAttendanceRepo{nextID: 1}
}

// Mark appends one attendance record.
func (m *MockAttendanceRepo) Mark(ctx context.Context, log *database.AttendanceLog) error {
	if m.MarkError != nil {
		return m.MarkError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = m.nextID
	m.nextID++
	if log.Status == "" {
		log.Status = database.StatusPresent
	}
	if log.MarkedAt.IsZero() {
		log.MarkedAt = time.Now()
	}
	m.logs = append(m.logs, *log)
	return nil
}

// Logs returns a copy of all recorded attendance logs.
func (m *MockAttendanceRepo) Logs() []database.AttendanceLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := make([]database.AttendanceLog, len(m.logs))
	copy(logs, m.logs)
	return logs
}

// Today returns records marked today.
func (m *MockAttendanceRepo) Today(ctx context.Context) ([]database.AttendanceLog, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var logs []database.AttendanceLog
	for _, log := range m.logs {
		if sameDay(log.MarkedAt, now) {
			logs = append(logs, log)
		}
	}
	return logs, nil
}

// Range returns records within the given time window.
func (m *MockAttendanceRepo) Range(
	ctx context.Context, start, end time.Time, identityIDs []string,
) ([]database.AttendanceLog, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	idSet := make(map[string]struct{}, len(identityIDs))
	for _, id := range identityIDs {
		idSet[id] = struct{}{}
	}

	var logs []database.AttendanceLog
	for _, log := range m.logs {
		if log.MarkedAt.Before(start) || log.MarkedAt.After(end) {
			continue
		}
		if len(idSet) > 0 {
			if _, ok := idSet[log.IdentityID]; !ok {
				continue
			}
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// ByIdentity returns the most recent records for one identity.
func (m *MockAttendanceRepo) ByIdentity(
	ctx context.Context, identityID string, limit int,
) ([]database.AttendanceLog, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var logs []database.AttendanceLog
	for _, log := range m.logs {
		if log.IdentityID == identityID {
			logs = append(logs, log)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].MarkedAt.After(logs[j].MarkedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

// CountToday returns the number of distinct identities marked today.
func (m *MockAttendanceRepo) CountToday(ctx context.Context) (int, error) {
	if m.ReadError != nil {
		return 0, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	seen := make(map[string]struct{})
	for _, log := range m.logs {
		if sameDay(log.MarkedAt, now) {
			seen[log.IdentityID] = struct{}{}
		}
	}
	return len(seen), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// MockRecognitionRepo is an in-memory implementation of database.RecognitionWriter.
type MockRecognitionRepo struct {
	mu      sync.RWMutex
	records []database.RecognitionRecord
	nextID  int64

	// Error injection
	LogError  error
	ReadError error
}

// NewMockRecognitionRepo creates a new mock recognition repository.
func NewMockRecognitionRepo() *MockRecognitionRepo {
	return &MockRecognitionRepo{nextID: 1}
}

// Log appends one recognition attempt.
func (m *MockRecognitionRepo) Log(ctx context.Context, record *database.RecognitionRecord) error {
	if m.LogError != nil {
		return m.LogError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = m.nextID
	m.nextID++
	if record.LoggedAt.IsZero() {
		record.LoggedAt = time.Now()
	}
	m.records = append(m.records, *record)
	return nil
}

// Records returns a copy of all logged recognition attempts.
func (m *MockRecognitionRepo) Records() []database.RecognitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]database.RecognitionRecord, len(m.records))
	copy(records, m.records)
	return records
}

// History returns the most recent attempts, newest first.
func (m *MockRecognitionRepo) History(ctx context.Context, limit int) ([]database.RecognitionRecord, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]database.RecognitionRecord, len(m.records))
	copy(records, m.records)
	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// HistoryByIdentity returns the most recent attempts for one identity.
func (m *MockRecognitionRepo) HistoryByIdentity(
	ctx context.Context, identityID string, limit int,
) ([]database.RecognitionRecord, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []database.RecognitionRecord
	for _, record := range m.records {
		if record.IdentityID == identityID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
