package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Command names understood by the OFS service.
const (
	CmdLogin        = "login"
	CmdLogout       = "logout"
	CmdStats        = "stats"
	CmdWhoami       = "whoami"
	CmdExit         = "exit"
	CmdDirCreate    = "dir_create"
	CmdDirList      = "dir_list"
	CmdDirDelete    = "dir_delete"
	CmdDirExists    = "dir_exists"
	CmdFileCreate   = "file_create"
	CmdFileRead     = "file_read"
	CmdFileDelete   = "file_delete"
	CmdFileRename   = "file_rename"
	CmdFileEdit     = "file_edit"
	CmdFileTruncate = "file_truncate"
)

// Command is one request to the OFS service. Every variant serializes to a
// flat JSON object with cmd and request_id at the top level.
type Command interface {
	Name() string
	ID() string
}

// Header carries the fields shared by every command.
type Header struct {
	Cmd       string `json:"cmd" mapstructure:"cmd"`
	RequestID string `json:"request_id" mapstructure:"request_id"`
}

func (h Header) Name() string { return h.Cmd }
func (h Header) ID() string   { return h.RequestID }

// Auth is the session_id claim. It is always present on the wire for
// commands other than login, empty until a session exists.
type Auth struct {
	SessionID string `json:"session_id" mapstructure:"session_id"`
}

type LoginCommand struct {
	Header   `mapstructure:",squash"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
}

type LogoutCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
}

type StatsCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
}

type WhoamiCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
}

// ExitCommand asks the service process to shut down.
type ExitCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
}

type DirCreateCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
	Path   string `json:"path" mapstructure:"path"`
}

type DirListCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
	Path   string `json:"path" mapstructure:"path"`
}

type DirDeleteCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
	Path   string `json:"path" mapstructure:"path"`
}

type DirExistsCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
	Path   string `json:"path" mapstructure:"path"`
}

// FileCreateCommand carries the whole file body. Size is the byte length of
// the decoded content.
type FileCreateCommand struct {
	Header     `mapstructure:",squash"`
	Auth       `mapstructure:",squash"`
	Path       string `json:"path" mapstructure:"path"`
	DataBase64 string `json:"data_base64" mapstructure:"data_base64"`
	Size       int64  `json:"size" mapstructure:"size"`
}

type FileReadCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
	Path   string `json:"path" mapstructure:"path"`
}

type FileDeleteCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
	Path   string `json:"path" mapstructure:"path"`
}

type FileRenameCommand struct {
	Header  `mapstructure:",squash"`
	Auth    `mapstructure:",squash"`
	OldPath string `json:"old_path" mapstructure:"old_path"`
	NewPath string `json:"new_path" mapstructure:"new_path"`
}

// FileEditCommand writes DataBase64 into the file starting at byte Index.
type FileEditCommand struct {
	Header     `mapstructure:",squash"`
	Auth       `mapstructure:",squash"`
	Path       string `json:"path" mapstructure:"path"`
	DataBase64 string `json:"data_base64" mapstructure:"data_base64"`
	Size       int64  `json:"size" mapstructure:"size"`
	Index      int64  `json:"index" mapstructure:"index"`
}

type FileTruncateCommand struct {
	Header `mapstructure:",squash"`
	Auth   `mapstructure:",squash"`
	Path   string `json:"path" mapstructure:"path"`
}

// RawCommand is an operator-supplied document sent as is. Numbers are kept
// as json.Number so they re-serialize without loss.
type RawCommand struct {
	Fields map[string]any
}

func (r *RawCommand) Name() string { return r.str("cmd") }
func (r *RawCommand) ID() string   { return r.str("request_id") }

func (r *RawCommand) str(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

func (r *RawCommand) MarshalJSON() ([]byte, error) {
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

func (r *RawCommand) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("raw command is not a JSON object")
	}
	r.Fields = fields
	return nil
}

var variants = map[string]func() Command{
	CmdLogin:        func() Command { return &LoginCommand{} },
	CmdLogout:       func() Command { return &LogoutCommand{} },
	CmdStats:        func() Command { return &StatsCommand{} },
	CmdWhoami:       func() Command { return &WhoamiCommand{} },
	CmdExit:         func() Command { return &ExitCommand{} },
	CmdDirCreate:    func() Command { return &DirCreateCommand{} },
	CmdDirList:      func() Command { return &DirListCommand{} },
	CmdDirDelete:    func() Command { return &DirDeleteCommand{} },
	CmdDirExists:    func() Command { return &DirExistsCommand{} },
	CmdFileCreate:   func() Command { return &FileCreateCommand{} },
	CmdFileRead:     func() Command { return &FileReadCommand{} },
	CmdFileDelete:   func() Command { return &FileDeleteCommand{} },
	CmdFileRename:   func() Command { return &FileRenameCommand{} },
	CmdFileEdit:     func() Command { return &FileEditCommand{} },
	CmdFileTruncate: func() Command { return &FileTruncateCommand{} },
}

// NewCommand returns an empty variant for name, or false for names outside
// the known vocabulary.
func NewCommand(name string) (Command, bool) {
	f, ok := variants[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Known reports whether name is a command of the typed vocabulary.
func Known(name string) bool {
	_, ok := variants[name]
	return ok
}
