package model

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the conventional shape of an OFS reply. Data stays raw until
// the caller knows which command it answers.
type Response struct {
	Status       string          `json:"status"`
	Operation    string          `json:"operation,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    int             `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func (r *Response) OK() bool {
	return r != nil && r.Status == StatusSuccess
}

// DecodeData unmarshals the data object into v.
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return errors.New("response has no data")
	}
	return json.Unmarshal(r.Data, v)
}

type LoginData struct {
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id"`
}

type WhoamiData struct {
	SessionID string `json:"session_id"`
}

type StatsData struct {
	TotalSize        uint64  `json:"total_size"`
	UsedSpace        uint64  `json:"used_space"`
	FreeSpace        uint64  `json:"free_space"`
	TotalFiles       int     `json:"total_files,omitempty"`
	TotalDirectories int     `json:"total_directories,omitempty"`
	TotalUsers       int     `json:"total_users,omitempty"`
	ActiveSessions   int     `json:"active_sessions,omitempty"`
	Fragmentation    float64 `json:"fragmentation,omitempty"`
}

type FileReadData struct {
	Path       string `json:"path,omitempty"`
	DataBase64 string `json:"data_base64"`
	Size       int64  `json:"size,omitempty"`
}

type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size,omitempty"`
}

type DirListData struct {
	Path    string     `json:"path"`
	Entries []DirEntry `json:"entries"`
}

type DirExistsData struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// Exchange is one relayed request/response pair as kept in the journal.
type Exchange struct {
	ID        int64         `json:"id"`
	RequestID string        `json:"request_id"`
	Cmd       string        `json:"cmd"`
	Request   string        `json:"request"`
	Response  string        `json:"response,omitempty"`
	Error     string        `json:"error,omitempty"`
	Status    int           `json:"status"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Frame is a message on the relay's WebSocket channel.
type Frame struct {
	Type      string `json:"type"` // "response" or "error"
	RequestID string `json:"request_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
}
