package app

import (
	"encoding/json"

	"ofs-bridge/internal/codec"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/session"
)

// Interpret turns the reply to cmd into an outcome. A successful login sets
// s and a successful logout clears it; nothing else writes the session.
func Interpret(s *session.Session, cmd string, body []byte) Outcome {
	o := Outcome{Cmd: cmd, Body: body, Kind: KindResponse}

	var r model.Response
	if err := json.Unmarshal(body, &r); err != nil {
		o.Kind = KindRaw
		o.Err = &ProtocolParseError{Body: body, Err: err}
		return o
	}
	o.Response = &r
	if o.Cmd == "" {
		o.Cmd = r.Operation
	}
	if !r.OK() {
		return o
	}

	switch o.Cmd {
	case model.CmdLogin:
		var d model.LoginData
		if r.DecodeData(&d) == nil && d.SessionID != "" {
			s.Set(d.SessionID)
		}
	case model.CmdLogout:
		s.Clear()
	case model.CmdFileRead:
		var d model.FileReadData
		if err := r.DecodeData(&d); err != nil {
			return o
		}
		text, err := codec.DecodeText(d.DataBase64)
		if err != nil {
			o.Binary = true
			o.Err = err
			return o
		}
		o.Text, o.HasText = text, true
	}
	return o
}
