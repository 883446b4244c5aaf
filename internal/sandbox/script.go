package sandbox

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const DefaultScript = `let payload = {
  "jsonrpc": "2.0",
  "id": 1,
  "method": "eth_blockNumber",
  "params": []
}`

// ScriptFor renders a script that rebuilds payload, used to prefill the
// sandbox from the last request.
func ScriptFor(payload any) (string, error) {
	normalized, err := normalize(payload)
	if err != nil {
		return "", fmt.Errorf("failed to render payload: %w", err)
	}
	var b strings.Builder
	b.WriteString("let payload = ")
	writeLiteral(&b, normalized, 0)
	return b.String(), nil
}

func writeLiteral(b *strings.Builder, v any, depth int) {
	indent := strings.Repeat("  ", depth+1)
	closing := strings.Repeat("  ", depth)
	switch val := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case json.Number:
		b.WriteString(val.String())
	case string:
		b.WriteString(strconv.Quote(val))
	case []any:
		if len(val) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, item := range val {
			b.WriteString(indent)
			writeLiteral(b, item, depth+1)
			if i < len(val)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(closing + "]")
	case map[string]any:
		if len(val) == 0 {
			b.WriteString("{}")
			return
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keyRank(keys[i], keys[j]) })
		b.WriteString("{\n")
		for i, k := range keys {
			b.WriteString(indent + strconv.Quote(k) + ": ")
			writeLiteral(b, val[k], depth+1)
			if i < len(keys)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(closing + "}")
	default:
		b.WriteString(fmt.Sprint(val))
	}
}

// Envelope members first, in wire order, then the rest alphabetically.
func keyRank(a, b string) bool {
	order := map[string]int{"jsonrpc": 1, "id": 2, "method": 3, "params": 4}
	ra, rb := order[a], order[b]
	switch {
	case ra != 0 && rb != 0:
		return ra < rb
	case ra != 0:
		return true
	case rb != 0:
		return false
	default:
		return a < b
	}
}
