// Package command builds OFS commands from operator input and the current
// session.
package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ofs-bridge/internal/codec"
	"ofs-bridge/internal/infra/fs"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/session"
)

// MalformedCommandError is returned when raw operator input is not a JSON
// object. Such input must never be sent.
type MalformedCommandError struct {
	Input string
	Err   error
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command: %v", e.Err)
}

func (e *MalformedCommandError) Unwrap() error {
	return e.Err
}

// Builder produces commands. It is safe for concurrent use.
type Builder struct {
	Files *fs.FileReader

	seq atomic.Uint64
	now func() time.Time
}

// NewBuilder creates a Builder. files may be nil when no local file uploads
// are needed.
func NewBuilder(files *fs.FileReader) *Builder {
	return &Builder{Files: files, now: time.Now}
}

// RequestID returns "<prefix>_<unix millis>_<seq>_<random hex>".
func (b *Builder) RequestID(prefix string) string {
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	n := b.seq.Add(1)
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%d_%s", prefix, now().UnixMilli(), n, rnd)
}

func (b *Builder) header(cmd string) model.Header {
	return model.Header{Cmd: cmd, RequestID: b.RequestID(cmd)}
}

func auth(s *session.Session) model.Auth {
	return model.Auth{SessionID: s.Token()}
}

func dirPath(p string) string {
	if strings.TrimSpace(p) == "" {
		return "/"
	}
	return p
}

func (b *Builder) Login(username, password string) *model.LoginCommand {
	return &model.LoginCommand{Header: b.header(model.CmdLogin), Username: username, Password: password}
}

func (b *Builder) Logout(s *session.Session) *model.LogoutCommand {
	return &model.LogoutCommand{Header: b.header(model.CmdLogout), Auth: auth(s)}
}

func (b *Builder) Stats(s *session.Session) *model.StatsCommand {
	return &model.StatsCommand{Header: b.header(model.CmdStats), Auth: auth(s)}
}

// Ping is the connectivity probe: a stats command with a "ping" request ID.
func (b *Builder) Ping(s *session.Session) *model.StatsCommand {
	return &model.StatsCommand{
		Header: model.Header{Cmd: model.CmdStats, RequestID: b.RequestID("ping")},
		Auth:   auth(s),
	}
}

func (b *Builder) Whoami(s *session.Session) *model.WhoamiCommand {
	return &model.WhoamiCommand{Header: b.header(model.CmdWhoami), Auth: auth(s)}
}

func (b *Builder) Exit(s *session.Session) *model.ExitCommand {
	return &model.ExitCommand{Header: b.header(model.CmdExit), Auth: auth(s)}
}

// DirCreate and the other directory builders default an empty path to "/".
func (b *Builder) DirCreate(s *session.Session, path string) *model.DirCreateCommand {
	return &model.DirCreateCommand{Header: b.header(model.CmdDirCreate), Auth: auth(s), Path: dirPath(path)}
}

func (b *Builder) DirList(s *session.Session, path string) *model.DirListCommand {
	return &model.DirListCommand{Header: b.header(model.CmdDirList), Auth: auth(s), Path: dirPath(path)}
}

func (b *Builder) DirDelete(s *session.Session, path string) *model.DirDeleteCommand {
	return &model.DirDeleteCommand{Header: b.header(model.CmdDirDelete), Auth: auth(s), Path: dirPath(path)}
}

func (b *Builder) DirExists(s *session.Session, path string) *model.DirExistsCommand {
	return &model.DirExistsCommand{Header: b.header(model.CmdDirExists), Auth: auth(s), Path: dirPath(path)}
}

// FileCreateText uploads typed text. Size is the UTF-8 byte length.
func (b *Builder) FileCreateText(s *session.Session, path, text string) *model.FileCreateCommand {
	return b.FileCreateBytes(s, path, []byte(text))
}

func (b *Builder) FileCreateBytes(s *session.Session, path string, data []byte) *model.FileCreateCommand {
	return &model.FileCreateCommand{
		Header:     b.header(model.CmdFileCreate),
		Auth:       auth(s),
		Path:       path,
		DataBase64: codec.Encode(data),
		Size:       int64(len(data)),
	}
}

// FileCreateDataURL uploads a picked file delivered as a data URL.
func (b *Builder) FileCreateDataURL(s *session.Session, path, dataURL string, size int64) *model.FileCreateCommand {
	return &model.FileCreateCommand{
		Header:     b.header(model.CmdFileCreate),
		Auth:       auth(s),
		Path:       path,
		DataBase64: codec.FromDataURL(dataURL),
		Size:       size,
	}
}

// FileCreateFile uploads a local file through the Builder's FileReader.
func (b *Builder) FileCreateFile(s *session.Session, path, local string) (*model.FileCreateCommand, error) {
	files := b.Files
	if files == nil {
		files = fs.NewFileReader("")
	}
	payload, size, err := files.ReadBase64(local)
	if err != nil {
		return nil, err
	}
	return &model.FileCreateCommand{
		Header:     b.header(model.CmdFileCreate),
		Auth:       auth(s),
		Path:       path,
		DataBase64: payload,
		Size:       size,
	}, nil
}

func (b *Builder) FileRead(s *session.Session, path string) *model.FileReadCommand {
	return &model.FileReadCommand{Header: b.header(model.CmdFileRead), Auth: auth(s), Path: path}
}

func (b *Builder) FileDelete(s *session.Session, path string) *model.FileDeleteCommand {
	return &model.FileDeleteCommand{Header: b.header(model.CmdFileDelete), Auth: auth(s), Path: path}
}

func (b *Builder) FileRename(s *session.Session, oldPath, newPath string) *model.FileRenameCommand {
	return &model.FileRenameCommand{Header: b.header(model.CmdFileRename), Auth: auth(s), OldPath: oldPath, NewPath: newPath}
}

func (b *Builder) FileEdit(s *session.Session, path string, index int64, text string) *model.FileEditCommand {
	data := []byte(text)
	return &model.FileEditCommand{
		Header:     b.header(model.CmdFileEdit),
		Auth:       auth(s),
		Path:       path,
		DataBase64: codec.Encode(data),
		Size:       int64(len(data)),
		Index:      index,
	}
}

func (b *Builder) FileTruncate(s *session.Session, path string) *model.FileTruncateCommand {
	return &model.FileTruncateCommand{Header: b.header(model.CmdFileTruncate), Auth: auth(s), Path: path}
}

// Raw turns an operator-written JSON object into a command. A missing
// request_id is generated, a missing cmd is taken from "operation", and a
// missing session_id is filled from s. Fields the operator wrote are kept.
func (b *Builder) Raw(s *session.Session, text string) (*model.RawCommand, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, &MalformedCommandError{Input: text, Err: err}
	}
	if fields == nil {
		return nil, &MalformedCommandError{Input: text, Err: fmt.Errorf("expected a JSON object")}
	}
	if dec.More() {
		return nil, &MalformedCommandError{Input: text, Err: fmt.Errorf("trailing data after JSON object")}
	}

	if missing(fields, "request_id") {
		fields["request_id"] = b.RequestID("raw")
	}
	if missing(fields, "cmd") && !missing(fields, "operation") {
		fields["cmd"] = fields["operation"]
	}
	if missing(fields, "session_id") && s.Active() {
		fields["session_id"] = s.Token()
	}
	return &model.RawCommand{Fields: fields}, nil
}

func missing(fields map[string]any, key string) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return true
	}
	str, isStr := v.(string)
	return isStr && str == ""
}

// Encode renders c as the compact JSON document sent to the relay.
func Encode(c model.Command) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", c.Name(), err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
