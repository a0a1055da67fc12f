package resolve

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu         sync.Mutex
	businesses []*db.Business
	sources    map[string]db.SourceInput
	evidence   []db.EvidenceInput
	failInsert bool
}

func newMemStore() *memStore {
	return &memStore{sources: make(map[string]db.SourceInput)}
}

func (m *memStore) FindBusinessByDomain(_ context.Context, domain string) (*db.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.businesses {
		if b.WebsiteDomain != nil && *b.WebsiteDomain == domain {
			c := *b
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindBusinessByPhone(_ context.Context, phone string) (*db.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.businesses {
		if b.PhoneE164 != nil && *b.PhoneE164 == phone {
			c := *b
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertBusiness(_ context.Context, b *db.Business) (*db.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return nil, errors.New("insert failed")
	}
	c := *b
	c.ID = uuid.New()
	m.businesses = append(m.businesses, &c)
	out := c
	return &out, nil
}

func (m *memStore) UpdateBusiness(_ context.Context, b *db.Business) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.businesses {
		if existing.ID == b.ID {
			c := *b
			m.businesses[i] = &c
			return nil
		}
	}
	return errors.New("business not found")
}

func (m *memStore) UpsertSource(_ context.Context, input db.SourceInput) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sources[input.URL]
	if !ok {
		m.sources[input.URL] = input
		return true, nil
	}
	existing.Score = max(existing.Score, input.Score)
	existing.TaskID = input.TaskID
	m.sources[input.URL] = existing
	return false, nil
}

func (m *memStore) InsertEvidence(_ context.Context, input db.EvidenceInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evidence = append(m.evidence, input)
	return nil
}
