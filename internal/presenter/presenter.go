package presenter

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"

	"github.com/USA-RedDragon/rpc-tester/internal/utils"
	"github.com/go-errors/errors"
)

type Mode string

const (
	ModeRaw      Mode = "raw"
	ModeReadable Mode = "readable"
)

var ErrUnknownMode = errors.New("unknown presentation mode")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeReadable:
		return ModeReadable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

type Presentation struct {
	Mode  Mode   `json:"mode"`
	Value any    `json:"value"`
	Text  string `json:"text"`
}

//nolint:golint,gochecknoglobals
var hexInteger = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// Present renders a response for display. The input is never modified:
// readable mode annotates a deep copy.
func Present(response any, mode Mode) (Presentation, error) {
	switch mode {
	case ModeRaw:
		text, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return Presentation{}, fmt.Errorf("failed to render response: %w", err)
		}
		return Presentation{Mode: mode, Value: response, Text: string(text)}, nil
	case ModeReadable:
		dup, err := deepCopy(response)
		if err != nil {
			return Presentation{}, err
		}
		value := annotate(dup)
		text, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return Presentation{}, fmt.Errorf("failed to render response: %w", err)
		}
		return Presentation{Mode: mode, Value: value, Text: string(text)}, nil
	default:
		return Presentation{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// deepCopy goes through JSON so the copy shares nothing with the caller.
func deepCopy(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to copy response: %w", err)
	}
	var out any
	if err := utils.DecodeJSON(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy response: %w", err)
	}
	return out, nil
}

func annotate(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = annotate(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = annotate(child)
		}
		return val
	case string:
		return Annotate(val)
	default:
		return val
	}
}

// Annotate appends the decimal value to a hex-integer string, e.g.
// "0x2a" becomes "0x2a (42)". Anything else is returned as is.
func Annotate(s string) string {
	n, ok := HexToDecimal(s)
	if !ok {
		return s
	}
	return fmt.Sprintf("%s (%s)", s, n.String())
}

// HexToDecimal parses a 0x-prefixed hex integer of any width. Leading zeros
// are accepted since nodes emit padded quantities and hashes.
func HexToDecimal(s string) (*big.Int, bool) {
	if !hexInteger.MatchString(s) {
		return nil, false
	}
	return new(big.Int).SetString(s[2:], 16)
}
