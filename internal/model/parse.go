package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// ParseCommand decodes one JSON object into its typed variant. Objects
// whose cmd is outside the known vocabulary come back as *RawCommand.
func ParseCommand(b []byte) (Command, error) {
	raw := &RawCommand{}
	if err := raw.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	cmd, ok := NewCommand(raw.Name())
	if !ok {
		return raw, nil
	}
	if err := DecodeFields(raw.Fields, cmd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", raw.Name(), err)
	}
	return cmd, nil
}

// DecodeFields fills a command variant from a generic JSON map.
func DecodeFields(fields map[string]any, out Command) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(fields)
}

// Fields flattens any command into a generic JSON map.
func Fields(c Command) (map[string]any, error) {
	if raw, ok := c.(*RawCommand); ok {
		return raw.Fields, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
