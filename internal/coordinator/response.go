package coordinator

import "github.com/gagliardetto/solana-go"

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Response is the structured result every public coordinator operation
// returns. Errors are reported here, never thrown past this boundary.
type Response struct {
	Status  Status      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func success(message string, data interface{}) Response {
	return Response{Status: StatusSuccess, Message: message, Data: data}
}

func failure(err error) Response {
	return Response{Status: StatusError, Message: err.Error()}
}

// ProposalData reports the post-operation state of a proposal.
type ProposalData struct {
	Index     uint64 `json:"index"`
	Safe      string `json:"safe"`
	Kind      string `json:"kind"`
	Approvals int    `json:"approvals"`
	Threshold uint16 `json:"threshold"`
	Executed  bool   `json:"executed"`
	Signature string `json:"signature,omitempty"`
}

// SafeData reports a created safe.
type SafeData struct {
	Address   string   `json:"address"`
	Owners    []string `json:"owners"`
	Threshold uint16   `json:"threshold"`
	Signature string   `json:"signature,omitempty"`
}

// StreamData reports the state of a stream at a point in time.
type StreamData struct {
	Address      string `json:"address"`
	Sender       string `json:"sender"`
	Receiver     string `json:"receiver"`
	Total        uint64 `json:"total"`
	Accrued      uint64 `json:"accrued"`
	Withdrawn    uint64 `json:"withdrawn"`
	Withdrawable uint64 `json:"withdrawable"`
	Paused       bool   `json:"paused"`
	Cancelled    bool   `json:"cancelled"`
}

// TransferData reports a completed funds movement.
type TransferData struct {
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	Net       uint64 `json:"net"`
	Signature string `json:"signature,omitempty"`
}

// VaultData reports a vault balance snapshot.
type VaultData struct {
	Owner     string `json:"owner"`
	Deposited uint64 `json:"deposited"`
	Committed uint64 `json:"committed"`
	Available uint64 `json:"available"`
}

func keyString(key solana.PublicKey) string {
	if key.IsZero() {
		return ""
	}
	return key.String()
}

func keyStrings(keys []solana.PublicKey) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	return out
}
