package app

import (
	"fmt"
	"strings"
	"time"

	"ofs-bridge/internal/model"
)

// Kind classifies an outcome in the display log.
type Kind string

const (
	KindResponse  Kind = "response"  // parsed JSON reply
	KindRaw       Kind = "raw"       // reply that was not JSON
	KindTransport Kind = "transport" // relay or network failure
	KindLocal     Kind = "local"     // rejected before sending
	KindCancelled Kind = "cancelled"
)

// ProtocolParseError marks a reply that could not be parsed as JSON. The
// reply is still shown verbatim.
type ProtocolParseError struct {
	Body []byte
	Err  error
}

func (e *ProtocolParseError) Error() string {
	return fmt.Sprintf("reply is not JSON: %v", e.Err)
}

func (e *ProtocolParseError) Unwrap() error {
	return e.Err
}

// Outcome is one entry of the display log.
type Outcome struct {
	RequestID string
	Cmd       string
	Kind      Kind
	Request   []byte
	Body      []byte
	Response  *model.Response
	Err       error
	Status    int

	// file_read only
	Text    string
	HasText bool
	Binary  bool

	Duration time.Duration
	At       time.Time
}

// Summary renders the outcome on one line.
func (o Outcome) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", o.Cmd, o.RequestID)
	switch o.Kind {
	case KindResponse:
		r := o.Response
		if r.OK() {
			b.WriteString(" ok")
		} else {
			fmt.Fprintf(&b, " %s", r.Status)
			if r.ErrorCode != 0 || r.ErrorMessage != "" {
				fmt.Fprintf(&b, " (%d: %s)", r.ErrorCode, r.ErrorMessage)
			}
		}
		switch {
		case o.Binary:
			b.WriteString(": binary, cannot display")
		case o.HasText:
			fmt.Fprintf(&b, ": %q", o.Text)
		}
	case KindRaw:
		fmt.Fprintf(&b, " raw: %s", strings.TrimSpace(string(o.Body)))
	case KindCancelled:
		b.WriteString(" cancelled")
	default:
		fmt.Fprintf(&b, " %s error: %v", o.Kind, o.Err)
	}
	return b.String()
}
