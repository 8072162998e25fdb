package domain

// Source identifies what triggered a metadata resolution.
type Source string

const (
	SourceRPC     Source = "rpc"     // on-demand API request
	SourceWS      Source = "ws"      // account change notification
	SourceRefresh Source = "refresh" // background staleness sweep
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	return s == SourceRPC || s == SourceWS || s == SourceRefresh
}
