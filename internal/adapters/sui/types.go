package sui

import "encoding/json"

// SuiCoinType is the canonical coin type filtered on in every coin listing.
const SuiCoinType = "0x2::sui::SUI"

// CoinBalance is the suix_getBalance result.
type CoinBalance struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int    `json:"coinObjectCount"`
	TotalBalance    string `json:"totalBalance"`
}

// Coin is one coin object owned by an address.
type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Balance      string `json:"balance"`
}

// ExecuteResult is the raw wallet-service response for a money-moving call.
// The body is kept verbatim for operator diagnosis on failure.
type ExecuteResult struct {
	Status string          `json:"status"`
	Digest string          `json:"digest"`
	Raw    json.RawMessage `json:"-"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type coinPage struct {
	Data []Coin `json:"data"`
}
