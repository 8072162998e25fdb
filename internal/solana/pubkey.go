package solana

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of an ed25519 public key.
const PublicKeyLength = 32

// PublicKey is a raw 32-byte Solana account address. The raw bytes are the
// authoritative identity; the base-58 rendering is a derived display form.
type PublicKey [PublicKeyLength]byte

// Well-known program addresses.
var (
	// TokenMetadataProgramID is the Metaplex Token Metadata program.
	TokenMetadataProgramID = MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	// TokenProgramID is the SPL Token program.
	TokenProgramID = MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// SystemProgramID is the System program.
	SystemProgramID = MustPublicKeyFromBase58("11111111111111111111111111111111")
)

// PublicKeyFromBase58 parses a base-58 encoded public key.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var pk PublicKey
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode base58: %w", err)
	}
	if len(decoded) != PublicKeyLength {
		return pk, fmt.Errorf("invalid public key length: %d", len(decoded))
	}
	copy(pk[:], decoded)
	return pk, nil
}

// MustPublicKeyFromBase58 parses a base-58 public key and panics on failure.
// Intended for package-level constants.
func MustPublicKeyFromBase58(s string) PublicKey {
	pk, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(fmt.Sprintf("invalid public key %q: %v", s, err))
	}
	return pk
}

// PublicKeyFromBytes copies a raw 32-byte key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLength {
		return pk, fmt.Errorf("invalid public key length: %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String renders the key as base-58 text.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// Bytes returns a copy of the raw key bytes.
func (pk PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeyLength)
	copy(b, pk[:])
	return b
}

// IsZero reports whether the key is all zero bytes.
func (pk PublicKey) IsZero() bool {
	return pk == PublicKey{}
}

// MarshalJSON encodes the key as its base-58 string form.
func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

// UnmarshalJSON decodes a base-58 string form.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := PublicKeyFromBase58(s)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
