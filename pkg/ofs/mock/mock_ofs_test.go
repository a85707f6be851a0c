package mock_test

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"ofs-bridge/internal/model"
	"ofs-bridge/pkg/ofs/mock"
)

func handle(t *testing.T, s *mock.Server, line string) model.Response {
	t.Helper()
	var r model.Response
	if err := json.Unmarshal(s.Handle([]byte(line)), &r); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return r
}

func TestMockLoginAndWhoami(t *testing.T) {
	s := mock.New(mock.WithUser("a", "b"))

	r := handle(t, s, `{"cmd":"login","username":"a","password":"b","request_id":"login_1"}`)
	if !r.OK() || r.RequestID != "login_1" || r.Operation != "login" {
		t.Fatalf("login: %+v", r)
	}
	var ld model.LoginData
	if err := r.DecodeData(&ld); err != nil || ld.SessionID != "sess_a" {
		t.Fatalf("login data: %+v, %v", ld, err)
	}

	r = handle(t, s, `{"cmd":"login","username":"a","password":"wrong"}`)
	if r.OK() || r.ErrorCode != mock.CodePermissionDenied {
		t.Fatalf("bad login: %+v", r)
	}

	r = handle(t, s, `{"cmd":"whoami","session_id":""}`)
	if r.OK() || r.ErrorCode != mock.CodeNoSession {
		t.Fatalf("anonymous whoami: %+v", r)
	}
}

func TestMockFileLifecycle(t *testing.T) {
	s := mock.New()
	handle(t, s, `{"cmd":"login","username":"admin","password":"7861"}`)
	const sid = `"session_id":"sess_admin"`

	steps := []struct {
		line string
		ok   bool
	}{
		{`{"cmd":"dir_create","path":"/docs",` + sid + `}`, true},
		{`{"cmd":"dir_create","path":"/docs",` + sid + `}`, false},
		{`{"cmd":"file_create","path":"/docs/a.txt","data_base64":"aGVsbG8=","size":5,` + sid + `}`, true},
		{`{"cmd":"file_create","path":"/nope/a.txt","data_base64":"aGVsbG8=","size":5,` + sid + `}`, false},
		{`{"cmd":"file_edit","path":"/docs/a.txt","data_base64":"SA==","size":1,"index":0,` + sid + `}`, true},
		{`{"cmd":"file_rename","old_path":"/docs/a.txt","new_path":"/docs/b.txt",` + sid + `}`, true},
		{`{"cmd":"dir_delete","path":"/docs",` + sid + `}`, false},
		{`{"cmd":"file_create","path":"/x","data_base64":"aGVsbG8=","size":5,"session_id":""}`, false},
	}
	for _, st := range steps {
		if r := handle(t, s, st.line); r.OK() != st.ok {
			t.Fatalf("%s -> %+v, want ok=%v", st.line, r, st.ok)
		}
	}

	r := handle(t, s, `{"cmd":"file_read","path":"/docs/b.txt",`+sid+`}`)
	var fd model.FileReadData
	if err := r.DecodeData(&fd); err != nil {
		t.Fatal(err)
	}
	if fd.DataBase64 != "SGVsbG8=" {
		t.Fatalf("file_read data = %q, want Hello", fd.DataBase64)
	}

	r = handle(t, s, `{"cmd":"dir_list","path":"/docs",`+sid+`}`)
	var dl model.DirListData
	if err := r.DecodeData(&dl); err != nil {
		t.Fatal(err)
	}
	if len(dl.Entries) != 1 || dl.Entries[0].Name != "b.txt" || dl.Entries[0].Size != 5 {
		t.Fatalf("dir_list = %+v", dl)
	}

	for _, line := range []string{
		`{"cmd":"file_truncate","path":"/docs/b.txt",` + sid + `}`,
		`{"cmd":"file_delete","path":"/docs/b.txt",` + sid + `}`,
		`{"cmd":"dir_delete","path":"/docs",` + sid + `}`,
	} {
		if r := handle(t, s, line); !r.OK() {
			t.Fatalf("%s -> %+v", line, r)
		}
	}
	r = handle(t, s, `{"cmd":"dir_exists","path":"/docs",`+sid+`}`)
	var de model.DirExistsData
	if err := r.DecodeData(&de); err != nil || de.Exists {
		t.Fatalf("dir_exists = %+v, %v", de, err)
	}
}

func TestMockUnknownAndInvalid(t *testing.T) {
	s := mock.New()
	if r := handle(t, s, `{"cmd":"defrag","request_id":"r1"}`); r.OK() || r.ErrorMessage != "unknown command" || r.RequestID != "r1" {
		t.Fatalf("unknown: %+v", r)
	}
	if r := handle(t, s, `{oops`); r.OK() || r.ErrorMessage != "invalid json" {
		t.Fatalf("invalid: %+v", r)
	}
}

func TestMockServesOverTCP(t *testing.T) {
	s := mock.New(mock.WithSplitWrites(10 * time.Millisecond))
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"cmd":"stats","request_id":"s1","session_id":""}` + "\n")); err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatal(err)
	}
	var r model.Response
	if err := json.Unmarshal(line, &r); err != nil {
		t.Fatalf("response %q: %v", line, err)
	}
	if !r.OK() || r.Operation != "stats" {
		t.Fatalf("stats: %+v", r)
	}
	if s.Accepted() != 1 {
		t.Fatalf("Accepted = %d", s.Accepted())
	}
}
