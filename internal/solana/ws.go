package solana

import "context"

// WSClient defines the Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeAccount subscribes to change notifications for a single
	// account. One active subscription per pubkey.
	SubscribeAccount(ctx context.Context, pubkey string) (<-chan AccountNotification, error)

	// UnsubscribeAccount cancels the subscription for pubkey. The
	// notification channel stops receiving but is not closed.
	UnsubscribeAccount(ctx context.Context, pubkey string) error

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification is one account-change message. Data carries the
// account's complete new content, so a consumer can decode it without an
// extra RPC round trip.
type AccountNotification struct {
	Pubkey     string
	Slot       uint64
	Lamports   uint64
	Owner      string
	Data       string // base64 encoded
	Executable bool
	RentEpoch  uint64
}
