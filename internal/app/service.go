// Package app is the console side of the bridge: it sends built commands
// through the relay, interprets replies and keeps the display log.
package app

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"ofs-bridge/internal/command"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/session"
	"ofs-bridge/pkg/ofs"
)

// Sender delivers one JSON command and returns the reply bytes.
type Sender interface {
	Send(ctx context.Context, doc []byte) ([]byte, error)
}

// SenderFunc adapts a function, such as (*relay.Relay).Forward, to Sender.
type SenderFunc func(ctx context.Context, doc []byte) ([]byte, error)

func (f SenderFunc) Send(ctx context.Context, doc []byte) ([]byte, error) {
	return f(ctx, doc)
}

// Service dispatches commands. Several may be in flight at once, with no
// ordering between them.
type Service struct {
	Sender  Sender
	Builder *command.Builder
	Session *session.Session
	Log     *Log

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewService creates a Service. A nil session or log gets a fresh one.
func NewService(sender Sender, b *command.Builder, s *session.Session, l *Log) *Service {
	if s == nil {
		s = session.New("")
	}
	if l == nil {
		l = NewLog(0, nil)
	}
	return &Service{
		Sender:  sender,
		Builder: b,
		Session: s,
		Log:     l,
		tasks:   make(map[string]*Task),
	}
}

// Task is a command in flight.
type Task struct {
	ID  string
	Cmd string

	cancel context.CancelFunc
	done   chan struct{}
	out    Outcome
}

// Wait blocks until the task finishes and returns its outcome.
func (t *Task) Wait() Outcome {
	<-t.done
	return t.out
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Do sends c and waits for its outcome.
func (s *Service) Do(ctx context.Context, c model.Command) Outcome {
	return s.Start(ctx, c).Wait()
}

// Start sends c in the background. The task can be cancelled by request ID
// until it finishes.
func (s *Service) Start(parent context.Context, c model.Command) *Task {
	t := &Task{ID: c.ID(), Cmd: c.Name(), done: make(chan struct{})}

	doc, err := command.Encode(c)
	if err != nil {
		s.finish(t, Outcome{Kind: KindLocal, Err: err, At: time.Now()})
		return t
	}

	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	go func() {
		defer cancel()
		start := time.Now()
		body, err := s.Sender.Send(ctx, doc)

		var o Outcome
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			o = Outcome{Kind: KindCancelled, Err: context.Canceled}
		case err != nil:
			o = Outcome{Kind: KindTransport, Err: err, Body: body}
			var herr *ofs.HTTPError
			if errors.As(err, &herr) {
				o.Status = herr.Status
			}
		default:
			o = Interpret(s.Session, t.Cmd, body)
			o.Status = http.StatusOK
		}
		o.Request = doc
		o.Duration = time.Since(start)
		o.At = start

		s.mu.Lock()
		if s.tasks[t.ID] == t {
			delete(s.tasks, t.ID)
		}
		s.mu.Unlock()
		s.finish(t, o)
	}()
	return t
}

func (s *Service) finish(t *Task, o Outcome) {
	o.RequestID = t.ID
	if o.Cmd == "" {
		o.Cmd = t.Cmd
	}
	t.out = o
	s.Log.Append(o)
	close(t.done)
}

// Raw normalizes operator text and sends it. Text that is not a JSON object
// is logged locally and never sent.
func (s *Service) Raw(ctx context.Context, text string) Outcome {
	c, err := s.Builder.Raw(s.Session, text)
	if err != nil {
		o := Outcome{Kind: KindLocal, Err: err, Request: []byte(text), At: time.Now()}
		s.Log.Append(o)
		return o
	}
	return s.Do(ctx, c)
}

// Cancel aborts the task with the given request ID. Its reply, if any, is
// discarded.
func (s *Service) Cancel(requestID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[requestID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Pending lists the request IDs in flight, sorted.
func (s *Service) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
