package command

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ofs-bridge/internal/codec"
	"ofs-bridge/internal/infra/fs"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/session"
)

func TestRequestIDsAreUnique(t *testing.T) {
	b := NewBuilder(nil)
	fixed := time.Unix(1700000000, 0)
	b.now = func() time.Time { return fixed }

	seen := make(map[string]struct{}, 5000)
	for i := 0; i < 5000; i++ {
		c := b.Stats(nil)
		if c.ID() == "" {
			t.Fatal("empty request_id")
		}
		if _, dup := seen[c.ID()]; dup {
			t.Fatalf("duplicate request_id %q after %d calls", c.ID(), i)
		}
		seen[c.ID()] = struct{}{}
	}
}

func TestRequestIDPrefix(t *testing.T) {
	b := NewBuilder(nil)
	if id := b.DirList(nil, "/").ID(); !strings.HasPrefix(id, "dir_list_") {
		t.Fatalf("request_id %q lacks action prefix", id)
	}
	if id := b.Ping(nil).ID(); !strings.HasPrefix(id, "ping_") {
		t.Fatalf("ping request_id %q", id)
	}
}

func TestSessionAttachment(t *testing.T) {
	b := NewBuilder(nil)
	var empty session.Session
	if got := b.Whoami(&empty).SessionID; got != "" {
		t.Fatalf("session_id before login = %q", got)
	}
	s := session.New("S1")
	cmds := []model.Command{
		b.Stats(s), b.Whoami(s), b.Logout(s), b.DirCreate(s, "/d"), b.DirList(s, ""),
		b.DirDelete(s, "/d"), b.DirExists(s, "/d"), b.FileCreateText(s, "/f", "x"),
		b.FileRead(s, "/f"), b.FileDelete(s, "/f"), b.FileRename(s, "/f", "/g"),
		b.FileEdit(s, "/f", 2, "y"), b.FileTruncate(s, "/f"),
	}
	for _, c := range cmds {
		fields, err := model.Fields(c)
		if err != nil {
			t.Fatal(err)
		}
		if fields["session_id"] != "S1" {
			t.Errorf("%s session_id = %v", c.Name(), fields["session_id"])
		}
	}
}

func TestDirPathDefaultsToRoot(t *testing.T) {
	b := NewBuilder(nil)
	if p := b.DirList(nil, "  ").Path; p != "/" {
		t.Fatalf("path = %q", p)
	}
}

func TestFileCreateTextUsesUTF8(t *testing.T) {
	b := NewBuilder(nil)
	c := b.FileCreateText(nil, "/greet.txt", "héllo")
	if c.Size != int64(len("héllo")) {
		t.Fatalf("size = %d, want byte length %d", c.Size, len("héllo"))
	}
	text, err := codec.DecodeText(c.DataBase64)
	if err != nil || text != "héllo" {
		t.Fatalf("DecodeText = %q, %v", text, err)
	}
}

func TestFileCreateFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(fs.NewFileReader(dir))
	c, err := b.FileCreateFile(session.New("S1"), "/remote/hello.txt", "hello.txt")
	if err != nil {
		t.Fatal(err)
	}
	if c.DataBase64 != "aGVsbG8=" || c.Size != 5 || c.Path != "/remote/hello.txt" {
		t.Fatalf("unexpected command: %+v", c)
	}
}

func TestFileCreateDataURL(t *testing.T) {
	c := NewBuilder(nil).FileCreateDataURL(nil, "/p.bin", "data:application/octet-stream;base64,AP8A", 3)
	if c.DataBase64 != "AP8A" || c.Size != 3 {
		t.Fatalf("unexpected command: %+v", c)
	}
}

func TestRawNormalization(t *testing.T) {
	b := NewBuilder(nil)

	c, err := b.Raw(nil, `{"operation":"stats"}`)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name() != "stats" {
		t.Fatalf("cmd = %q, want stats", c.Name())
	}
	if c.ID() == "" || !strings.HasPrefix(c.ID(), "raw_") {
		t.Fatalf("request_id = %q", c.ID())
	}
	if _, ok := c.Fields["session_id"]; ok {
		t.Fatal("session_id injected without a session")
	}

	c, err = b.Raw(session.New("S1"), `{"cmd":"whoami","request_id":"x"}`)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() != "x" {
		t.Fatalf("request_id overwritten: %q", c.ID())
	}
	if c.Fields["session_id"] != "S1" {
		t.Fatalf("session_id = %v", c.Fields["session_id"])
	}
}

func TestRawKeepsExplicitFields(t *testing.T) {
	b := NewBuilder(nil)
	c, err := b.Raw(session.New("S1"), `{"cmd":"dir_list","operation":"stats","session_id":"mine","request_id":"r9","path":"/x"}`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"cmd":"dir_list","operation":"stats","path":"/x","request_id":"r9","session_id":"mine"}`
	if string(out) != want {
		t.Fatalf("raw = %s, want %s", out, want)
	}
}

func TestRawMalformed(t *testing.T) {
	b := NewBuilder(nil)
	for _, in := range []string{`{not json`, `[1]`, `null`, `"stats"`, `{"cmd":"stats"} extra`} {
		_, err := b.Raw(nil, in)
		var me *MalformedCommandError
		if !errors.As(err, &me) {
			t.Errorf("Raw(%q) error = %v, want *MalformedCommandError", in, err)
		}
	}
}

func TestEncodeIsSingleLine(t *testing.T) {
	b := NewBuilder(nil)
	out, err := Encode(b.FileCreateText(nil, "/a<b>.txt", "line1\nline2"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsRune(string(out), '\n') {
		t.Fatalf("encoded command spans lines: %s", out)
	}
	if !strings.Contains(string(out), `"/a<b>.txt"`) {
		t.Fatalf("HTML escaping applied: %s", out)
	}
}
