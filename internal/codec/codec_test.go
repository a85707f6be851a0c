package codec

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inputs := [][]byte{nil, {}, {0}, {0xff, 0xfe, 0x00, 0x80}, []byte("hello")}
	for i := 0; i < 200; i++ {
		b := make([]byte, rng.Intn(300))
		rng.Read(b)
		inputs = append(inputs, b)
	}

	for _, in := range inputs {
		enc := Encode(in)
		if strings.ContainsAny(enc, "\r\n") {
			t.Fatalf("Encode(%x) contains a line break", in)
		}
		out, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%q): %v", enc, err)
		}
		if !bytes.Equal(out, in) {
			t.Fatalf("round trip mismatch: got %x want %x", out, in)
		}
	}
}

func TestKnownVector(t *testing.T) {
	if got := Encode([]byte("hello")); got != "aGVsbG8=" {
		t.Fatalf("Encode(hello) = %q", got)
	}
	text, err := DecodeText("aGVsbG8=")
	if err != nil {
		t.Fatalf("DecodeText: %v", err)
	}
	if text != "hello" {
		t.Fatalf("DecodeText = %q, want hello", text)
	}
}

func TestTextUsesUTF8BothWays(t *testing.T) {
	cases := []string{"", "plain", "héllo wörld", "日本語テキスト", "emoji 🚀 ok"}
	for _, tc := range cases {
		enc := EncodeText(tc)
		raw, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%q): %v", enc, err)
		}
		if !bytes.Equal(raw, []byte(tc)) {
			t.Fatalf("EncodeText(%q) did not carry UTF-8 bytes: %x", tc, raw)
		}
		got, err := DecodeText(enc)
		if err != nil {
			t.Fatalf("DecodeText(%q): %v", enc, err)
		}
		if got != tc {
			t.Fatalf("DecodeText = %q, want %q", got, tc)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, in := range []string{"%%%", "aGVsbG8", "a"} {
		_, err := Decode(in)
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("Decode(%q) error = %v, want *DecodeError", in, err)
		}
	}
}

func TestDecodeTextBinary(t *testing.T) {
	_, err := DecodeText(Encode([]byte{0xff, 0xfe, 0xfd}))
	if !errors.Is(err, ErrNotText) {
		t.Fatalf("DecodeText(binary) error = %v, want ErrNotText", err)
	}
}

func TestFromDataURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"data:text/plain;base64,aGVsbG8=", "aGVsbG8="},
		{"data:application/octet-stream;base64,", ""},
		{"aGVsbG8=", "aGVsbG8="},
	}
	for _, tt := range tests {
		if got := FromDataURL(tt.in); got != tt.want {
			t.Errorf("FromDataURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
