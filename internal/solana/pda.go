package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Seed constraints enforced by the Solana runtime.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

// metadataSeedPrefix is the domain-separation literal for metadata PDAs.
const metadataSeedPrefix = "metadata"

// pdaMarker terminates the hash input so a PDA preimage can never collide
// with a signed message.
var pdaMarker = []byte("ProgramDerivedAddress")

// ErrNoBumpFound means no bump seed in [1, 255] produced an off-curve
// address for the given seeds.
var ErrNoBumpFound = errors.New("solana: no valid bump seed found")

// FindProgramAddress finds the canonical program-derived address for the
// given seeds: counting the bump down from 255, the first SHA-256 of
// seeds || bump || programID || "ProgramDerivedAddress" that is not a valid
// ed25519 curve point.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, 0, fmt.Errorf("too many seeds: %d", len(seeds))
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return PublicKey{}, 0, fmt.Errorf("seed %d too long: %d", i, len(seed))
		}
	}

	buf := make([]byte, 0, 128)
	for bump := uint8(255); bump > 0; bump-- {
		buf = buf[:0]
		for _, seed := range seeds {
			buf = append(buf, seed...)
		}
		buf = append(buf, bump)
		buf = append(buf, programID[:]...)
		buf = append(buf, pdaMarker...)

		hash := sha256.Sum256(buf)
		if !isOnCurve(hash[:]) {
			return PublicKey(hash), bump, nil
		}
	}

	return PublicKey{}, 0, ErrNoBumpFound
}

// MetadataAddress derives the token-metadata account address for a mint.
// Seeds: ["metadata", metadata_program_id, mint] under the metadata program.
func MetadataAddress(mint PublicKey) (PublicKey, uint8, error) {
	seeds := [][]byte{
		[]byte(metadataSeedPrefix),
		TokenMetadataProgramID[:],
		mint[:],
	}
	addr, bump, err := FindProgramAddress(seeds, TokenMetadataProgramID)
	if err != nil {
		return PublicKey{}, 0, fmt.Errorf("derive metadata address: %w", err)
	}
	return addr, bump, nil
}

// isOnCurve reports whether point decodes as a valid ed25519 curve point.
// Program-derived addresses must not be on the curve, so no private key
// can ever sign for them.
func isOnCurve(point []byte) bool {
	if len(point) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
