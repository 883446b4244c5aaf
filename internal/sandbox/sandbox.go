package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/USA-RedDragon/rpc-tester/internal/utils"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/parser/lexer"
	"github.com/xeipuuv/gojsonschema"
)

// SandboxError covers every way a script can fail to yield a payload.
type SandboxError struct {
	Message string
	Err     error
}

func (e *SandboxError) Error() string {
	return e.Message
}

func (e *SandboxError) Unwrap() error {
	return e.Err
}

// Body is the structured form reported to the UI.
func (e *SandboxError) Body() map[string]string {
	return map[string]string{"error": e.Message}
}

// Capabilities is everything a script can reach.
type Capabilities struct {
	Endpoint string
	Fetcher  Fetcher
}

const payloadSchema = `{
	"type": "object",
	"properties": {
		"jsonrpc": {"type": "string"},
		"method": {"type": "string"},
		"params": {"type": ["array", "object"]},
		"id": {"type": ["integer", "string", "null"]}
	}
}`

type Evaluator struct {
	schema *gojsonschema.Schema
}

func NewEvaluator() (*Evaluator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile payload schema: %w", err)
	}
	return &Evaluator{schema: schema}, nil
}

// Evaluate runs script in a fresh scope and returns the object bound to
// payload. An implicit `payload` result is appended to the script.
func (e *Evaluator) Evaluate(ctx context.Context, script string, caps Capabilities) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = &SandboxError{Message: fmt.Sprintf("script panicked: %v", r)}
		}
	}()

	program, err := expr.Compile(withImplicitReturn(script),
		expr.Function("fetch", fetchFunc(ctx, caps.Fetcher)),
		expr.Function("toHex", toHex),
		expr.Function("fromHex", fromHex),
	)
	if err != nil {
		return nil, &SandboxError{Message: fmt.Sprintf("script failed to compile: %v", err), Err: err}
	}

	env := map[string]any{
		"endpoint": caps.Endpoint,
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, &SandboxError{Message: fmt.Sprintf("script failed: %v", err), Err: err}
	}
	if out == nil {
		return nil, &SandboxError{Message: "script did not define payload"}
	}

	normalized, err := normalize(out)
	if err != nil {
		return nil, &SandboxError{Message: fmt.Sprintf("payload is not JSON-serializable: %v", err), Err: err}
	}
	obj, ok := normalized.(map[string]any)
	if !ok {
		return nil, &SandboxError{Message: fmt.Sprintf("payload must be an object, got %T", out)}
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return nil, &SandboxError{Message: fmt.Sprintf("payload validation error: %v", err), Err: err}
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, &SandboxError{Message: fmt.Sprintf("invalid payload: %s", strings.Join(msgs, "; "))}
	}
	return obj, nil
}

func withImplicitReturn(script string) string {
	tokens, err := lexer.Lex(file.NewSource(script))
	if err != nil {
		// Let the compiler report the lexing error against the script.
		return script + "\npayload"
	}
	var last *lexer.Token
	for i := range tokens {
		if tokens[i].Kind != lexer.EOF {
			last = &tokens[i]
		}
	}
	switch {
	case last == nil:
		return "payload"
	case last.Is(lexer.Operator, ";"):
		return script + "\npayload"
	default:
		return script + "\n;\npayload"
	}
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := utils.DecodeJSON(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fetchFunc(ctx context.Context, fetcher Fetcher) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if fetcher == nil {
			return nil, fmt.Errorf("fetch is not available")
		}
		if len(params) < 1 || len(params) > 2 {
			return nil, fmt.Errorf("fetch expects (url, options?)")
		}
		url, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("fetch url must be a string, got %T", params[0])
		}
		var opts FetchOptions
		if len(params) == 2 && params[1] != nil {
			raw, ok := params[1].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("fetch options must be a map, got %T", params[1])
			}
			var err error
			opts, err = parseFetchOptions(raw)
			if err != nil {
				return nil, err
			}
		}
		res, err := fetcher.Fetch(ctx, url, opts)
		if err != nil {
			return nil, err
		}
		return res.toMap(), nil
	}
}

func toHex(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("toHex expects 1 argument")
	}
	var n int64
	switch v := params[0].(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("toHex expects an integer, got %v", v)
		}
		n = int64(v)
	default:
		return nil, fmt.Errorf("toHex expects an integer, got %T", params[0])
	}
	if n < 0 {
		return nil, fmt.Errorf("toHex expects a non-negative integer, got %d", n)
	}
	return "0x" + strconv.FormatInt(n, 16), nil
}

func fromHex(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("fromHex expects 1 argument")
	}
	s, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("fromHex expects a string, got %T", params[0])
	}
	digits, ok := strings.CutPrefix(s, "0x")
	if !ok || digits == "" {
		return nil, fmt.Errorf("fromHex expects a 0x-prefixed quantity, got %q", s)
	}
	n, err := strconv.ParseInt(digits, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("fromHex: %w", err)
	}
	return int(n), nil
}
