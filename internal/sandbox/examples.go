package sandbox

import "slices"

type Example struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Script      string `json:"script"`
}

//nolint:golint,gochecknoglobals
var examples = []Example{
	{
		Key:         "blockNumber",
		Title:       "Latest block number",
		Description: "The smallest possible payload.",
		Script:      DefaultScript,
	},
	{
		Key:         "balance",
		Title:       "Balance at a block",
		Description: "Bind inputs first, then build the params from them.",
		Script: `let address = "0x0000000000000000000000000000000000000000";
let block = "latest";
let payload = {
  "jsonrpc": "2.0",
  "id": 1,
  "method": "eth_getBalance",
  "params": [address, block]
}`,
	},
	{
		Key:         "previousBlock",
		Title:       "Block before head",
		Description: "Ask the endpoint for the head, then request its parent.",
		Script: `let head = fetch(endpoint, {"body": {"jsonrpc": "2.0", "id": 1, "method": "eth_blockNumber", "params": []}});
let parent = fromHex(head.body.result) - 1;
let payload = {
  "jsonrpc": "2.0",
  "id": 2,
  "method": "eth_getBlockByNumber",
  "params": [toHex(parent), false]
}`,
	},
	{
		Key:         "callContract",
		Title:       "Read-only contract call",
		Description: "eth_call with a transaction object built in the script.",
		Script: `let tx = {
  "to": "0x0000000000000000000000000000000000000000",
  "data": "0x06fdde03"
};
let payload = {
  "jsonrpc": "2.0",
  "id": 1,
  "method": "eth_call",
  "params": [tx, "latest"]
}`,
	},
}

func Examples() []Example {
	return slices.Clone(examples)
}

func LookupExample(key string) (Example, bool) {
	for _, e := range examples {
		if e.Key == key {
			return e, true
		}
	}
	return Example{}, false
}
