package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ofs-bridge/internal/app"
	"ofs-bridge/internal/model"
)

var styles = struct {
	ok, err, warn, muted, id lipgloss.Style
}{
	ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true),
	err:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0055")).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFBF00")),
	muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7D7D")),
	id:    lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")),
}

func label(o app.Outcome) string {
	switch {
	case o.Kind == app.KindResponse && o.Response.OK():
		return styles.ok.Render("OK")
	case o.Kind == app.KindResponse:
		return styles.err.Render(strings.ToUpper(o.Response.Status))
	case o.Kind == app.KindRaw:
		return styles.warn.Render("RAW")
	case o.Kind == app.KindCancelled:
		return styles.muted.Render("CANCELLED")
	default:
		return styles.err.Render(strings.ToUpper(string(o.Kind)))
	}
}

// printOutcome writes one display log entry: a header line, then the reply.
func printOutcome(w io.Writer, o app.Outcome, quiet bool) {
	if quiet {
		if len(o.Body) > 0 {
			w.Write(o.Body)
		} else if o.Err != nil {
			fmt.Fprintln(w, o.Err)
		}
		return
	}

	fmt.Fprintf(w, "%s %s %s %s\n", label(o), o.Cmd, styles.id.Render(o.RequestID), styles.muted.Render(o.Duration.Round(time.Millisecond).String()))
	switch o.Kind {
	case app.KindResponse:
		if !o.Response.OK() {
			fmt.Fprintf(w, "  %s (code %d)\n", o.Response.ErrorMessage, o.Response.ErrorCode)
		}
		switch {
		case o.Binary:
			fmt.Fprintln(w, styles.warn.Render("  binary, cannot display"))
		case o.HasText:
			fmt.Fprintln(w, o.Text)
		case len(o.Response.Data) > 0:
			fmt.Fprintln(w, indent(o.Response.Data))
		}
	case app.KindRaw:
		fmt.Fprintln(w, strings.TrimRight(string(o.Body), "\n"))
	case app.KindCancelled:
	default:
		fmt.Fprintf(w, "  %v\n", o.Err)
	}
}

func indent(b []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "  ", "  "); err != nil {
		return "  " + string(b)
	}
	return "  " + buf.String()
}

func printExchange(w io.Writer, x model.Exchange) {
	status := styles.ok.Render(fmt.Sprint(x.Status))
	if x.Error != "" || x.Status != 200 {
		status = styles.err.Render(fmt.Sprint(x.Status))
	}
	fmt.Fprintf(w, "%s %s %s %s %s\n",
		styles.muted.Render(x.CreatedAt.Local().Format("2006-01-02 15:04:05")),
		status, x.Cmd, styles.id.Render(x.RequestID),
		styles.muted.Render(x.Duration.Round(time.Millisecond).String()))
	if x.Error != "" {
		fmt.Fprintf(w, "  %s\n", x.Error)
	} else {
		fmt.Fprintf(w, "  %s\n", strings.TrimRight(x.Response, "\n"))
	}
}
