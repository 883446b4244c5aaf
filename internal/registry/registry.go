package registry

import (
	"fmt"
	"slices"
)

// ParamKind selects how a raw form field is coerced into a positional
// JSON-RPC parameter.
type ParamKind uint8

const (
	KindAddress ParamKind = iota
	KindBlockTag
	KindTxHash
	KindTransactionObject
	KindFullTxFlag
)

func (k ParamKind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindBlockTag:
		return "blockTag"
	case KindTxHash:
		return "txHash"
	case KindTransactionObject:
		return "transactionObject"
	case KindFullTxFlag:
		return "fullTxFlag"
	default:
		return fmt.Sprintf("ParamKind(%d)", uint8(k))
	}
}

func (k ParamKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MethodSpec describes one well-known method. Params is positional: the
// order is part of the wire contract.
type MethodSpec struct {
	Key         string      `json:"key"`
	Method      string      `json:"method"`
	Params      []ParamKind `json:"params"`
	Description string      `json:"description"`
}

//nolint:golint,gochecknoglobals
var methods = []MethodSpec{
	{
		Key:         "blockNumber",
		Method:      "eth_blockNumber",
		Params:      []ParamKind{},
		Description: "Returns the number of the most recent block",
	},
	{
		Key:         "chainId",
		Method:      "eth_chainId",
		Params:      []ParamKind{},
		Description: "Returns the chain ID used for signing replay-protected transactions",
	},
	{
		Key:         "gasPrice",
		Method:      "eth_gasPrice",
		Params:      []ParamKind{},
		Description: "Returns the current price per gas in wei",
	},
	{
		Key:         "netVersion",
		Method:      "net_version",
		Params:      []ParamKind{},
		Description: "Returns the current network ID",
	},
	{
		Key:         "getBalance",
		Method:      "eth_getBalance",
		Params:      []ParamKind{KindAddress, KindBlockTag},
		Description: "Returns the balance of the account at the given address",
	},
	{
		Key:         "getTransactionCount",
		Method:      "eth_getTransactionCount",
		Params:      []ParamKind{KindAddress, KindBlockTag},
		Description: "Returns the number of transactions sent from an address",
	},
	{
		Key:         "getCode",
		Method:      "eth_getCode",
		Params:      []ParamKind{KindAddress, KindBlockTag},
		Description: "Returns the code deployed at the given address",
	},
	{
		Key:         "getBlockByNumber",
		Method:      "eth_getBlockByNumber",
		Params:      []ParamKind{KindBlockTag, KindFullTxFlag},
		Description: "Returns information about a block by number or tag",
	},
	{
		Key:         "getTransactionByHash",
		Method:      "eth_getTransactionByHash",
		Params:      []ParamKind{KindTxHash},
		Description: "Returns information about a transaction by hash",
	},
	{
		Key:         "getTransactionReceipt",
		Method:      "eth_getTransactionReceipt",
		Params:      []ParamKind{KindTxHash},
		Description: "Returns the receipt of a transaction by hash",
	},
	{
		Key:         "call",
		Method:      "eth_call",
		Params:      []ParamKind{KindTransactionObject, KindBlockTag},
		Description: "Executes a message call without creating a transaction",
	},
	{
		Key:         "estimateGas",
		Method:      "eth_estimateGas",
		Params:      []ParamKind{KindTransactionObject},
		Description: "Estimates the gas needed to execute a transaction",
	},
}

//nolint:golint,gochecknoglobals
var index = func() map[string]int {
	idx := make(map[string]int, len(methods))
	for i, m := range methods {
		idx[m.Key] = i
	}
	return idx
}()

// Lookup returns the spec registered under key. A miss is not an error,
// it means the caller is dealing with a custom method.
func Lookup(key string) (MethodSpec, bool) {
	i, ok := index[key]
	if !ok {
		return MethodSpec{}, false
	}
	return clone(methods[i]), true
}

// All returns every registered spec in display order.
func All() []MethodSpec {
	out := make([]MethodSpec, 0, len(methods))
	for _, m := range methods {
		out = append(out, clone(m))
	}
	return out
}

func clone(m MethodSpec) MethodSpec {
	m.Params = slices.Clone(m.Params)
	return m
}

// Target is either a known method with a spec or a custom method that is
// sent under whatever name the user typed.
type Target struct {
	spec *MethodSpec
	name string
}

func Resolve(key string) Target {
	if spec, ok := Lookup(key); ok {
		return Target{spec: &spec, name: spec.Method}
	}
	return Custom(key)
}

func Custom(name string) Target {
	return Target{name: name}
}

func (t Target) Known() (MethodSpec, bool) {
	if t.spec == nil {
		return MethodSpec{}, false
	}
	return clone(*t.spec), true
}

func (t Target) IsCustom() bool {
	return t.spec == nil
}

// Method is the wire method name.
func (t Target) Method() string {
	return t.name
}
