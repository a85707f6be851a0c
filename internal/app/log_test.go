package app

import (
	"context"
	"sync"

	"ofs-bridge/internal/model"
)

type memStore struct {
	mu   sync.Mutex
	rows []model.Exchange
}

func (m *memStore) SaveExchange(_ context.Context, e *model.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *e)
	return nil
}
