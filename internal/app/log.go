package app

import (
	"context"
	"log"
	"sync"

	"ofs-bridge/internal/model"
)

// Store persists display log entries.
type Store interface {
	SaveExchange(ctx context.Context, e *model.Exchange) error
}

// Log is the display log, most recent entry first. It only observes; nothing
// reads it back into a decision.
type Log struct {
	Store Store

	mu      sync.Mutex
	entries []Outcome
	max     int
}

// NewLog keeps at most max entries in memory (0 means unbounded). store may
// be nil.
func NewLog(max int, store Store) *Log {
	return &Log{Store: store, max: max}
}

func (l *Log) Append(o Outcome) {
	l.mu.Lock()
	l.entries = append([]Outcome{o}, l.entries...)
	if l.max > 0 && len(l.entries) > l.max {
		l.entries = l.entries[:l.max]
	}
	l.mu.Unlock()

	if l.Store == nil {
		return
	}
	e := &model.Exchange{
		RequestID: o.RequestID,
		Cmd:       o.Cmd,
		Request:   string(o.Request),
		Response:  string(o.Body),
		Status:    o.Status,
		Duration:  o.Duration,
		CreatedAt: o.At,
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	} else if o.Kind == KindCancelled {
		e.Error = "cancelled"
	}
	if err := l.Store.SaveExchange(context.Background(), e); err != nil {
		log.Printf("[history] save %s: %v", o.RequestID, err)
	}
}

// Entries returns a copy of the log, most recent first.
func (l *Log) Entries() []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Outcome, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
