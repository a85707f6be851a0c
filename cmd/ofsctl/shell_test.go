package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ofs-bridge/internal/app"
	"ofs-bridge/internal/command"
	"ofs-bridge/internal/infra/fs"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/session"
)

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "up.bin"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := command.NewBuilder(fs.NewFileReader(dir))
	s := session.New("S1")

	tests := []struct {
		line    string
		cmd     string
		fields  map[string]any
		wantErr bool
	}{
		{line: "login admin 7861", cmd: "login", fields: map[string]any{"username": "admin", "password": "7861"}},
		{line: "stats", cmd: "stats", fields: map[string]any{"session_id": "S1"}},
		{line: "dir list", cmd: "dir_list", fields: map[string]any{"path": "/"}},
		{line: "dir create /docs", cmd: "dir_create", fields: map[string]any{"path": "/docs"}},
		{line: "file create /a.txt hello  world", cmd: "file_create", fields: map[string]any{"path": "/a.txt", "data_base64": "aGVsbG8gIHdvcmxk"}},
		{line: "file upload /b.bin up.bin", cmd: "file_create", fields: map[string]any{"data_base64": "aGVsbG8=", "size": float64(5)}},
		{line: "file rename /a /b", cmd: "file_rename", fields: map[string]any{"old_path": "/a", "new_path": "/b"}},
		{line: "file edit /a 3 xyz", cmd: "file_edit", fields: map[string]any{"index": float64(3), "data_base64": "eHl6"}},
		{line: "file truncate /a", cmd: "file_truncate", fields: map[string]any{"path": "/a"}},
		{line: "file edit /a x y", wantErr: true},
		{line: "file rename /a", wantErr: true},
		{line: "file upload /b missing.bin", wantErr: true},
		{line: "dir nope", wantErr: true},
		{line: "frobnicate", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			verb, rest, _ := strings.Cut(tt.line, " ")
			c, err := parseCommand(b, s, verb, rest)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %#v", c)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			doc, err := command.Encode(c)
			if err != nil {
				t.Fatal(err)
			}
			var m map[string]any
			if err := json.Unmarshal(doc, &m); err != nil {
				t.Fatal(err)
			}
			if m["cmd"] != tt.cmd {
				t.Fatalf("cmd = %v, want %s", m["cmd"], tt.cmd)
			}
			for k, want := range tt.fields {
				if m[k] != want {
					t.Errorf("%s = %v, want %v", k, m[k], want)
				}
			}
		})
	}
}

type echoSender struct {
	mu   sync.Mutex
	docs []string
}

func (e *echoSender) Send(_ context.Context, doc []byte) ([]byte, error) {
	e.mu.Lock()
	e.docs = append(e.docs, string(doc))
	e.mu.Unlock()
	var c struct {
		Cmd       string `json:"cmd"`
		RequestID string `json:"request_id"`
	}
	json.Unmarshal(doc, &c)
	r := model.Response{Status: model.StatusSuccess, Operation: c.Cmd, RequestID: c.RequestID}
	if c.Cmd == model.CmdLogin {
		r.Data = json.RawMessage(`{"session_id":"S1"}`)
	}
	b, _ := json.Marshal(r)
	return append(b, '\n'), nil
}

func TestShellKeepsSession(t *testing.T) {
	sender := &echoSender{}
	svc := app.NewService(sender, command.NewBuilder(nil), nil, nil)
	var out bytes.Buffer
	sh := &shell{svc: svc, out: &out, quiet: true}

	// each line waits for the previous reply so the login lands first
	for _, line := range []string{"login admin 7861", "whoami", `{"operation":"stats"}`, "{broken", "quit", "stats"} {
		if err := sh.exec(context.Background(), line); err != nil {
			if err == errQuit {
				break
			}
			t.Fatalf("%s: %v", line, err)
		}
		sh.wg.Wait()
	}

	if len(sender.docs) != 3 {
		t.Fatalf("sent %d docs: %v", len(sender.docs), sender.docs)
	}
	if !strings.Contains(sender.docs[1], `"session_id":"S1"`) || !strings.Contains(sender.docs[2], `"session_id":"S1"`) {
		t.Fatalf("session not attached: %v", sender.docs)
	}
	if svc.Log.Len() != 4 {
		t.Fatalf("log has %d entries", svc.Log.Len())
	}
}
