package jsonrpc

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

const Version = "2.0"

type Request struct {
	JSONRPCVersion string `json:"jsonrpc"`
	ID             uint64 `json:"id"`
	Method         string `json:"method"`
	Params         []any  `json:"params"`
}

// Error is the error member of a JSON-RPC response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Composer hands out request ids. Ids are unique for the lifetime of the
// composer, which is enough to pair requests with responses in a session.
type Composer struct {
	lastID atomic.Uint64
}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose never validates method, custom methods are first class.
func (c *Composer) Compose(method string, params []any) Request {
	if params == nil {
		params = []any{}
	}
	return Request{
		JSONRPCVersion: Version,
		ID:             c.lastID.Add(1),
		Method:         method,
		Params:         params,
	}
}

// ExtractError pulls a JSON-RPC error object out of a decoded response
// body, if it carries one.
func ExtractError(body any) (*Error, bool) {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := obj["error"].(map[string]any)
	if !ok {
		return nil, false
	}
	rpcErr := &Error{Data: raw["data"]}
	switch code := raw["code"].(type) {
	case json.Number:
		if n, err := code.Int64(); err == nil {
			rpcErr.Code = int(n)
		}
	case float64:
		rpcErr.Code = int(code)
	case int:
		rpcErr.Code = code
	}
	rpcErr.Message, _ = raw["message"].(string)
	return rpcErr, true
}
