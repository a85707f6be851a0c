// Package codec converts file contents to and from the base64 text carried in
// the data_base64 field of OFS commands and responses.
//
// Text typed by an operator is always converted with UTF-8, on both the
// encode and the decode path.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNotText is reported by DecodeText when the decoded bytes are not UTF-8.
var ErrNotText = errors.New("content is not valid UTF-8 text")

// DecodeError reports a payload that could not be turned back into bytes or text.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode returns the standard, padded base64 form of b with no line breaks.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the inverse of Encode.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return b, nil
}

// EncodeText encodes the UTF-8 bytes of text.
func EncodeText(text string) string {
	return Encode([]byte(text))
}

// DecodeText decodes s and interprets the bytes as UTF-8.
func DecodeText(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &DecodeError{Err: ErrNotText}
	}
	return string(b), nil
}

// FromDataURL strips a "data:<mime>;base64," prefix as produced by a browser
// file picker. Input without a comma is returned unchanged.
func FromDataURL(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}
