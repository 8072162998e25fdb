package domain

// ResolutionStatus classifies the outcome of a metadata resolution.
type ResolutionStatus string

const (
	ResolutionOK          ResolutionStatus = "ok"
	ResolutionNotFound    ResolutionStatus = "not_found"
	ResolutionDecodeError ResolutionStatus = "decode_error"
	ResolutionRPCError    ResolutionStatus = "rpc_error"
)

// String returns the string representation of ResolutionStatus.
func (s ResolutionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s ResolutionStatus) IsValid() bool {
	switch s {
	case ResolutionOK, ResolutionNotFound, ResolutionDecodeError, ResolutionRPCError:
		return true
	}
	return false
}

// Resolution is one metadata resolution attempt.
// Corresponds to resolution_log table in ClickHouse.
type Resolution struct {
	ResolutionID    string           // deterministic hash
	Mint            string           // token mint address
	MetadataAddress string           // derived metadata account address
	Status          ResolutionStatus // ok | not_found | decode_error | rpc_error
	Source          Source           // rpc | ws | refresh
	Slot            int64            // slot of the account read, 0 when unknown
	DurationMs      int64            // wall time of the resolution attempt
	Err             string           // error text, empty on success
	ResolvedAt      int64            // Unix timestamp in milliseconds
}
