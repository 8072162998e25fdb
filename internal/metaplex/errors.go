package metaplex

import "errors"

// Decode errors. All are terminal: a failed decode never yields a partial
// record and never substitutes defaults for malformed fields.
var (
	// ErrTruncated is returned when a read would consume bytes past the
	// end of the input.
	ErrTruncated = errors.New("truncated input")

	// ErrInvalidVersion is returned when the first byte is not the
	// supported version tag.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidText is returned when a length-prefixed text field is not
	// valid UTF-8.
	ErrInvalidText = errors.New("invalid text encoding")

	// ErrLengthOverflow is returned when a declared length, added to the
	// current offset, would exceed the input. Declared lengths are never
	// clamped to what remains.
	ErrLengthOverflow = errors.New("declared length overflows input")
)

// IsDecodeError reports whether err is (or wraps) one of the decode
// sentinels above. Callers use it to tell malformed account data apart
// from transport failures.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrInvalidVersion) ||
		errors.Is(err, ErrInvalidText) ||
		errors.Is(err, ErrLengthOverflow)
}
