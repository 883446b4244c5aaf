package params_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/USA-RedDragon/rpc-tester/internal/params"
	"github.com/USA-RedDragon/rpc-tester/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaultsMatchSchemaLength(t *testing.T) {
	t.Parallel()

	for _, spec := range registry.All() {
		got := params.Build(spec, params.Fields{})
		assert.Len(t, got, len(spec.Params), spec.Key)
	}
}

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	spec, _ := registry.Lookup("getBalance")
	assert.Equal(t, []any{"", "latest"}, params.Build(spec, params.Fields{}))

	spec, _ = registry.Lookup("getBlockByNumber")
	assert.Equal(t, []any{"latest", true}, params.Build(spec, params.Fields{}))

	spec, _ = registry.Lookup("getTransactionReceipt")
	assert.Equal(t, []any{""}, params.Build(spec, params.Fields{}))

	spec, _ = registry.Lookup("call")
	assert.Equal(t, []any{map[string]any{}, "latest"}, params.Build(spec, params.Fields{}))

	spec, _ = registry.Lookup("blockNumber")
	got := params.Build(spec, params.Fields{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildUsesFields(t *testing.T) {
	t.Parallel()

	full := false
	fields := params.Fields{
		Address:     "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae",
		BlockTag:    "0x10",
		TxHash:      "0xabc",
		Transaction: `{"to":"0x01","data":"0x"}`,
		FullTx:      &full,
	}

	spec, _ := registry.Lookup("getBalance")
	assert.Equal(t, []any{fields.Address, "0x10"}, params.Build(spec, fields))

	spec, _ = registry.Lookup("getBlockByNumber")
	assert.Equal(t, []any{"0x10", false}, params.Build(spec, fields))

	spec, _ = registry.Lookup("getTransactionByHash")
	assert.Equal(t, []any{"0xabc"}, params.Build(spec, fields))

	spec, _ = registry.Lookup("estimateGas")
	assert.Equal(t, []any{map[string]any{"to": "0x01", "data": "0x"}}, params.Build(spec, fields))
}

func TestBuildAcceptsAnyAddress(t *testing.T) {
	t.Parallel()

	spec, _ := registry.Lookup("getCode")
	got := params.Build(spec, params.Fields{Address: "not an address"})
	assert.Equal(t, []any{"not an address", "latest"}, got)
}

func TestTransactionObjectFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]any{}, params.TransactionObject("{broken"))
	assert.Equal(t, map[string]any{}, params.TransactionObject(`[1,2]`))
	assert.Equal(t, map[string]any{}, params.TransactionObject("null"))
	assert.Equal(t, map[string]any{}, params.TransactionObject("   "))
	assert.Equal(t, map[string]any{"value": "0x1"}, params.TransactionObject(`{"value":"0x1"}`))
}

func TestBuildCustom(t *testing.T) {
	t.Parallel()

	got, err := params.BuildCustom(`["0x1", false, {"a": 1}]`)
	require.NoError(t, err)
	assert.Equal(t, []any{"0x1", false, map[string]any{"a": json.Number("1")}}, got)

	got, err = params.BuildCustom("")
	require.NoError(t, err)
	assert.Equal(t, []any{}, got)
}

func TestBuildCustomRejectsNonArray(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"not-json", `{"a":1}`, `"str"`, "null", "[1,"} {
		_, err := params.BuildCustom(text)
		var parseErr *params.ParamParseError
		require.True(t, errors.As(err, &parseErr), text)
		assert.Equal(t, text, parseErr.Text)
	}
}

func TestLargeIntegersSurvive(t *testing.T) {
	t.Parallel()

	got, err := params.BuildCustom("[12345678901234567891]")
	require.NoError(t, err)
	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, "[12345678901234567891]", string(raw))

	raw, err = json.Marshal(params.TransactionObject(`{"value":12345678901234567891}`))
	require.NoError(t, err)
	assert.Equal(t, `{"value":12345678901234567891}`, string(raw))
}

func TestBuildCustomRejectsTrailingData(t *testing.T) {
	t.Parallel()

	_, err := params.BuildCustom(`[1] [2]`)
	var parseErr *params.ParamParseError
	assert.True(t, errors.As(err, &parseErr))
}
