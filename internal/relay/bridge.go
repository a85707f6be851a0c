package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"ofs-bridge/internal/model"
)

// Recorder stores relayed exchanges.
type Recorder interface {
	SaveExchange(ctx context.Context, e *model.Exchange) error
}

// Bridge runs one relay exchange and records it when a Recorder is set.
type Bridge struct {
	Relay   *Relay
	Journal Recorder
}

func NewBridge(r *Relay, journal Recorder) *Bridge {
	return &Bridge{Relay: r, Journal: journal}
}

// Exchange forwards doc and returns the peer's response along with the HTTP
// status that represents the outcome.
func (b *Bridge) Exchange(ctx context.Context, doc []byte) ([]byte, int, error) {
	start := time.Now()
	resp, err := b.Relay.Forward(ctx, doc)
	status := StatusFor(err)
	b.record(ctx, doc, resp, status, err, time.Since(start))
	return resp, status, err
}

func (b *Bridge) record(ctx context.Context, doc, resp []byte, status int, err error, d time.Duration) {
	if b.Journal == nil {
		return
	}
	var hdr struct {
		Cmd       string `json:"cmd"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(doc, &hdr); err != nil {
		// not an object: journal it without cmd or request_id
		hdr.Cmd, hdr.RequestID = "", ""
	}

	e := &model.Exchange{
		RequestID: hdr.RequestID,
		Cmd:       hdr.Cmd,
		Request:   string(doc),
		Response:  string(resp),
		Status:    status,
		Duration:  d,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if jerr := b.Journal.SaveExchange(context.WithoutCancel(ctx), e); jerr != nil {
		log.Printf("[journal] save %s: %v", hdr.RequestID, jerr)
	}
}

// StatusFor maps a Forward error to an HTTP status: 200 on success, 504 for
// timeouts, 502 for every other transport failure.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var te *TransportError
	if errors.As(err, &te) && te.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
