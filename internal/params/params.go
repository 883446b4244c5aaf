package params

import (
	"fmt"
	"strings"

	"github.com/USA-RedDragon/rpc-tester/internal/registry"
	"github.com/USA-RedDragon/rpc-tester/internal/utils"
)

const DefaultBlockTag = "latest"

// Fields are the raw form values captured from the UI. Empty fields fall
// back to the documented defaults.
type Fields struct {
	Address     string `json:"address,omitempty"`
	BlockTag    string `json:"blockTag,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	FullTx      *bool  `json:"fullTx,omitempty"`
}

// ParamParseError is returned when custom params are not a JSON array. The
// request must not be sent.
type ParamParseError struct {
	Text string
	Err  error
}

func (e *ParamParseError) Error() string {
	return fmt.Sprintf("params must be a JSON array: %v", e.Err)
}

func (e *ParamParseError) Unwrap() error {
	return e.Err
}

// Build produces exactly len(spec.Params) values, in schema order.
func Build(spec registry.MethodSpec, fields Fields) []any {
	out := make([]any, 0, len(spec.Params))
	for _, kind := range spec.Params {
		out = append(out, resolve(kind, fields))
	}
	return out
}

func resolve(kind registry.ParamKind, fields Fields) any {
	switch kind {
	case registry.KindAddress:
		return fields.Address
	case registry.KindBlockTag:
		if strings.TrimSpace(fields.BlockTag) == "" {
			return DefaultBlockTag
		}
		return fields.BlockTag
	case registry.KindTxHash:
		return fields.TxHash
	case registry.KindTransactionObject:
		return TransactionObject(fields.Transaction)
	case registry.KindFullTxFlag:
		if fields.FullTx == nil {
			return true
		}
		return *fields.FullTx
	default:
		return nil
	}
}

// TransactionObject parses a transaction body. Anything that is not a JSON
// object becomes an empty object so a bad body never blocks the request.
func TransactionObject(text string) map[string]any {
	obj := map[string]any{}
	if strings.TrimSpace(text) == "" {
		return obj
	}
	if err := utils.DecodeJSON([]byte(text), &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

// BuildCustom returns the hand-authored params of an unregistered method
// without schema checks. Blank text means no params.
func BuildCustom(text string) ([]any, error) {
	if strings.TrimSpace(text) == "" {
		return []any{}, nil
	}
	var out []any
	if err := utils.DecodeJSON([]byte(text), &out); err != nil {
		return nil, &ParamParseError{Text: text, Err: err}
	}
	if out == nil {
		return nil, &ParamParseError{Text: text, Err: fmt.Errorf("got null")}
	}
	return out, nil
}
