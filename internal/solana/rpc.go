package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface the service consumes.
type RPCClient interface {
	// GetAccountInfo retrieves account info by base-58 public key.
	// Returns (nil, nil) when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (uint64, error)

	// GetHealth reports whether the node considers itself healthy.
	GetHealth(ctx context.Context) error
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
	Slot       uint64 `json:"slot"` // slot the value was observed at
}
