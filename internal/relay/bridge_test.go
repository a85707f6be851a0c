package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"ofs-bridge/internal/model"
	"ofs-bridge/pkg/ofs/mock"
)

type memRecorder struct {
	mu   sync.Mutex
	rows []model.Exchange
}

func (m *memRecorder) SaveExchange(_ context.Context, e *model.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *e)
	return nil
}

func TestBridgeRecordsSuccess(t *testing.T) {
	s := mock.New()
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rec := &memRecorder{}
	b := NewBridge(New(s.Addr()), rec)
	resp, status, err := b.Exchange(context.Background(), []byte(`{"cmd":"stats","request_id":"stats_1","session_id":""}`))
	if err != nil || status != http.StatusOK || len(resp) == 0 {
		t.Fatalf("Exchange = %q, %d, %v", resp, status, err)
	}
	if len(rec.rows) != 1 {
		t.Fatalf("recorded %d rows", len(rec.rows))
	}
	row := rec.rows[0]
	if row.Cmd != "stats" || row.RequestID != "stats_1" || row.Status != 200 || row.Response != string(resp) {
		t.Fatalf("row = %+v", row)
	}
}

func TestBridgeRecordsFailure(t *testing.T) {
	rec := &memRecorder{}
	b := NewBridge(New(closedAddr(t)), rec)
	_, status, err := b.Exchange(context.Background(), []byte(`{"cmd":"stats"}`))
	if err == nil || status != http.StatusBadGateway {
		t.Fatalf("status = %d, err = %v", status, err)
	}
	if len(rec.rows) != 1 || rec.rows[0].Error == "" {
		t.Fatalf("rows = %+v", rec.rows)
	}
}

func TestBridgeRecordsNonObjectDocument(t *testing.T) {
	s := mock.New()
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rec := &memRecorder{}
	b := NewBridge(New(s.Addr()), rec)
	if _, _, err := b.Exchange(context.Background(), []byte(`[1, 2]`)); err != nil {
		t.Fatal(err)
	}
	if len(rec.rows) != 1 {
		t.Fatalf("recorded %d rows", len(rec.rows))
	}
	row := rec.rows[0]
	if row.Cmd != "" || row.RequestID != "" || row.Request != "[1, 2]" {
		t.Fatalf("row = %+v", row)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 200},
		{&TransportError{Op: "connect", Err: errors.New("refused")}, 502},
		{&TransportError{Op: "read", Err: context.DeadlineExceeded}, 504},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
