package store

import (
	"context"
	"sync"

	"github.com/cleared-dev/payoffcheck/internal/model"
)

// MemoryStore keeps records in a map. It is used by unit tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*model.ContractRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*model.ContractRecord)}
}

// Load returns a copy of the stored record, or an empty one.
func (m *MemoryStore) Load(_ context.Context, contractID string) (*model.ContractRecord, error) {
	if err := checkID(contractID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[contractID]; ok {
		return rec.Clone(), nil
	}
	return &model.ContractRecord{ContractID: contractID}, nil
}

// Save stores a copy of rec.
func (m *MemoryStore) Save(_ context.Context, rec *model.ContractRecord) error {
	if err := checkID(rec.ContractID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ContractID] = rec.Clone()
	return nil
}
