// Package mock provides an in-memory OFS peer speaking the line-delimited
// JSON protocol over TCP. It backs tests and the ofs-sandbox binary.
package mock

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ofs-bridge/internal/codec"
	"ofs-bridge/internal/model"
)

// Error codes returned in error_code.
const (
	CodeNotFound         = -1
	CodePermissionDenied = -2
	CodeAlreadyExists    = -3
	CodeInvalidArgument  = -4
	CodeNoSession        = -9
)

const (
	totalSize  = 104857600
	headerSize = 512
)

// Option configures a Server.
type Option func(*Server)

// WithUser adds or replaces a login.
func WithUser(username, password string) Option {
	return func(s *Server) { s.users[username] = password }
}

// WithSplitWrites sends every response as two writes separated by delay.
func WithSplitWrites(delay time.Duration) Option {
	return func(s *Server) {
		s.split = true
		s.splitDelay = delay
	}
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithSilence makes the server read requests and never answer.
func WithSilence() Option {
	return func(s *Server) { s.silent = true }
}

// Server is an in-memory OFS peer.
type Server struct {
	users      map[string]string
	split      bool
	splitDelay time.Duration
	latency    time.Duration
	silent     bool

	mu       sync.Mutex
	sessions map[string]string // session id -> user
	dirs     map[string]bool
	files    map[string][]byte

	ln       net.Listener
	wg       sync.WaitGroup
	accepted atomic.Int64
	open     atomic.Int64
	lines    atomic.Int64
}

// New creates a server with the default admin/7861 login and an empty root.
func New(opts ...Option) *Server {
	s := &Server{
		users:    map[string]string{"admin": "7861"},
		sessions: make(map[string]string),
		dirs:     map[string]bool{"/": true},
		files:    make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves in the
// background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.ln = ln
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops accepting and waits for open connections to finish.
func (s *Server) Close() error {
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.wg.Wait()
	return err
}

// Accepted is the number of connections accepted so far.
func (s *Server) Accepted() int64 { return s.accepted.Load() }

// Open is the number of connections not yet closed by the client.
func (s *Server) Open() int64 { return s.open.Load() }

// Lines is the number of request lines received.
func (s *Server) Lines() int64 { return s.lines.Load() }

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.accepted.Add(1)
		s.open.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.open.Add(-1)
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		line = []byte(strings.TrimSpace(string(line)))
		if len(line) == 0 {
			continue
		}
		s.lines.Add(1)
		if s.silent {
			continue
		}
		resp, closeAfter := s.handle(line)
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if err := s.write(conn, resp); err != nil {
			log.Printf("[mock] write: %v", err)
			return
		}
		if closeAfter {
			return
		}
	}
}

func (s *Server) write(conn net.Conn, resp []byte) error {
	resp = append(resp, '\n')
	if !s.split || len(resp) < 2 {
		_, err := conn.Write(resp)
		return err
	}
	half := len(resp) / 2
	if _, err := conn.Write(resp[:half]); err != nil {
		return err
	}
	time.Sleep(s.splitDelay)
	_, err := conn.Write(resp[half:])
	return err
}

// Handle answers one request line without any network involved.
func (s *Server) Handle(line []byte) []byte {
	resp, _ := s.handle(line)
	return resp
}

func (s *Server) handle(line []byte) ([]byte, bool) {
	cmd, err := model.ParseCommand(line)
	if err != nil {
		return encode(&model.Response{Status: model.StatusError, Operation: "unknown", ErrorCode: CodeInvalidArgument, ErrorMessage: "invalid json"}), false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		data any
		rerr *opError
	)
	switch c := cmd.(type) {
	case *model.LoginCommand:
		data, rerr = s.login(c)
	case *model.WhoamiCommand:
		if c.SessionID == "" {
			rerr = &opError{CodeNoSession, "no session"}
		} else {
			data = model.WhoamiData{SessionID: c.SessionID}
		}
	case *model.StatsCommand:
		data = s.stats()
	case *model.LogoutCommand:
		delete(s.sessions, c.SessionID)
	case *model.ExitCommand:
		return encode(ok(c.Name(), c.ID(), nil)), true
	case *model.DirCreateCommand:
		rerr = s.authorized(c.SessionID, func() *opError { return s.dirCreate(c.Path) })
	case *model.DirListCommand:
		rerr = s.authorized(c.SessionID, func() *opError {
			var e *opError
			data, e = s.dirList(c.Path)
			return e
		})
	case *model.DirDeleteCommand:
		rerr = s.authorized(c.SessionID, func() *opError { return s.dirDelete(c.Path) })
	case *model.DirExistsCommand:
		rerr = s.authorized(c.SessionID, func() *opError {
			p := clean(c.Path)
			data = model.DirExistsData{Path: p, Exists: s.dirs[p]}
			return nil
		})
	case *model.FileCreateCommand:
		rerr = s.authorized(c.SessionID, func() *opError { return s.fileCreate(c.Path, c.DataBase64) })
	case *model.FileReadCommand:
		rerr = s.authorized(c.SessionID, func() *opError {
			var e *opError
			data, e = s.fileRead(c.Path)
			return e
		})
	case *model.FileDeleteCommand:
		rerr = s.authorized(c.SessionID, func() *opError { return s.fileDelete(c.Path) })
	case *model.FileRenameCommand:
		rerr = s.authorized(c.SessionID, func() *opError { return s.fileRename(c.OldPath, c.NewPath) })
	case *model.FileEditCommand:
		rerr = s.authorized(c.SessionID, func() *opError { return s.fileEdit(c.Path, c.Index, c.DataBase64) })
	case *model.FileTruncateCommand:
		rerr = s.authorized(c.SessionID, func() *opError { return s.fileTruncate(c.Path) })
	default:
		return encode(&model.Response{Status: model.StatusError, Operation: "unknown", RequestID: cmd.ID(), ErrorMessage: "unknown command"}), false
	}

	if rerr != nil {
		return encode(&model.Response{
			Status:       model.StatusError,
			Operation:    cmd.Name(),
			RequestID:    cmd.ID(),
			ErrorCode:    rerr.code,
			ErrorMessage: rerr.msg,
		}), false
	}
	return encode(ok(cmd.Name(), cmd.ID(), data)), false
}

type opError struct {
	code int
	msg  string
}

func ok(op, rid string, data any) *model.Response {
	r := &model.Response{Status: model.StatusSuccess, Operation: op, RequestID: rid}
	if data != nil {
		b, _ := json.Marshal(data)
		r.Data = b
	}
	return r
}

func encode(r *model.Response) []byte {
	b, _ := json.Marshal(r)
	return b
}

func (s *Server) authorized(sid string, fn func() *opError) *opError {
	if _, ok := s.sessions[sid]; !ok {
		return &opError{CodeNoSession, "no session"}
	}
	return fn()
}

func (s *Server) login(c *model.LoginCommand) (any, *opError) {
	want, ok := s.users[c.Username]
	if !ok || want != c.Password {
		return nil, &opError{CodePermissionDenied, "Invalid credentials"}
	}
	sid := "sess_" + c.Username
	s.sessions[sid] = c.Username
	return model.LoginData{Message: "logged_in", SessionID: sid}, nil
}

func (s *Server) stats() model.StatsData {
	var used uint64
	for _, f := range s.files {
		used += uint64(len(f))
	}
	return model.StatsData{
		TotalSize:        totalSize,
		UsedSpace:        used,
		FreeSpace:        totalSize - headerSize - used,
		TotalFiles:       len(s.files),
		TotalDirectories: len(s.dirs),
		TotalUsers:       len(s.users),
		ActiveSessions:   len(s.sessions),
	}
}

func clean(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func (s *Server) parentExists(p string) bool {
	return s.dirs[path.Dir(p)]
}

func (s *Server) dirCreate(raw string) *opError {
	p := clean(raw)
	if s.dirs[p] || s.files[p] != nil {
		return &opError{CodeAlreadyExists, "already exists"}
	}
	if !s.parentExists(p) {
		return &opError{CodeNotFound, "parent directory not found"}
	}
	s.dirs[p] = true
	return nil
}

func (s *Server) children(dir string) []model.DirEntry {
	var out []model.DirEntry
	for d := range s.dirs {
		if d != "/" && path.Dir(d) == dir {
			out = append(out, model.DirEntry{Name: path.Base(d), Type: "dir"})
		}
	}
	for f, b := range s.files {
		if path.Dir(f) == dir {
			out = append(out, model.DirEntry{Name: path.Base(f), Type: "file", Size: int64(len(b))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) dirList(raw string) (any, *opError) {
	p := clean(raw)
	if !s.dirs[p] {
		return nil, &opError{CodeNotFound, "directory not found"}
	}
	entries := s.children(p)
	if entries == nil {
		entries = []model.DirEntry{}
	}
	return model.DirListData{Path: p, Entries: entries}, nil
}

func (s *Server) dirDelete(raw string) *opError {
	p := clean(raw)
	if p == "/" {
		return &opError{CodePermissionDenied, "cannot delete root"}
	}
	if !s.dirs[p] {
		return &opError{CodeNotFound, "directory not found"}
	}
	if len(s.children(p)) > 0 {
		return &opError{CodeInvalidArgument, "directory not empty"}
	}
	delete(s.dirs, p)
	return nil
}

func (s *Server) fileCreate(raw, payload string) *opError {
	p := clean(raw)
	if s.files[p] != nil || s.dirs[p] {
		return &opError{CodeAlreadyExists, "already exists"}
	}
	if !s.parentExists(p) {
		return &opError{CodeNotFound, "parent directory not found"}
	}
	data, err := codec.Decode(payload)
	if err != nil {
		return &opError{CodeInvalidArgument, "invalid data_base64"}
	}
	if data == nil {
		data = []byte{}
	}
	s.files[p] = data
	return nil
}

func (s *Server) fileRead(raw string) (any, *opError) {
	p := clean(raw)
	data, ok := s.files[p]
	if !ok {
		return nil, &opError{CodeNotFound, "file not found"}
	}
	return model.FileReadData{Path: p, DataBase64: codec.Encode(data), Size: int64(len(data))}, nil
}

func (s *Server) fileDelete(raw string) *opError {
	p := clean(raw)
	if _, ok := s.files[p]; !ok {
		return &opError{CodeNotFound, "file not found"}
	}
	delete(s.files, p)
	return nil
}

func (s *Server) fileRename(oldRaw, newRaw string) *opError {
	oldPath, newPath := clean(oldRaw), clean(newRaw)
	data, ok := s.files[oldPath]
	if !ok {
		return &opError{CodeNotFound, "file not found"}
	}
	if s.files[newPath] != nil || s.dirs[newPath] {
		return &opError{CodeAlreadyExists, "already exists"}
	}
	if !s.parentExists(newPath) {
		return &opError{CodeNotFound, "parent directory not found"}
	}
	delete(s.files, oldPath)
	s.files[newPath] = data
	return nil
}

func (s *Server) fileEdit(raw string, index int64, payload string) *opError {
	p := clean(raw)
	data, ok := s.files[p]
	if !ok {
		return &opError{CodeNotFound, "file not found"}
	}
	if index < 0 || index > int64(len(data)) {
		return &opError{CodeInvalidArgument, "index out of range"}
	}
	patch, err := codec.Decode(payload)
	if err != nil {
		return &opError{CodeInvalidArgument, "invalid data_base64"}
	}
	end := index + int64(len(patch))
	if end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[index:], patch)
	s.files[p] = data
	return nil
}

func (s *Server) fileTruncate(raw string) *opError {
	p := clean(raw)
	if _, ok := s.files[p]; !ok {
		return &opError{CodeNotFound, "file not found"}
	}
	s.files[p] = []byte{}
	return nil
}
