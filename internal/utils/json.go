package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var ErrTrailingData = errors.New("unexpected data after JSON value")

// DecodeJSON decodes exactly one JSON value into v. Numbers decode as
// json.Number so integers past 2^53 survive a round trip.
func DecodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}
