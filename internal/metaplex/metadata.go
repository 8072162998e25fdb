// Package metaplex decodes Metaplex token-metadata accounts.
//
// The account layout is a fixed, versioned binary record: a version tag,
// two raw public keys, three length-prefixed UTF-8 strings, a fee field,
// an optional creator list, and two boolean flags. Decoding is byte-exact
// and pure: same input bytes, same output record.
package metaplex

import "github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"

// SupportedVersion is the only account version tag this decoder accepts
// (MetadataV1).
const SupportedVersion = 4

// Metadata is the decoded token-metadata record. It is constructed once
// per decode and never mutated afterwards.
type Metadata struct {
	Version              uint8            `json:"version"`
	UpdateAuthority      solana.PublicKey `json:"updateAuthority"`
	Mint                 solana.PublicKey `json:"mint"`
	Name                 string           `json:"name"`
	Symbol               string           `json:"symbol"`
	URI                  string           `json:"uri"`
	SellerFeeBasisPoints int16            `json:"sellerFeeBasisPoints"` // parts per 10000
	Creators             []Creator        `json:"creators,omitempty"`
	PrimarySaleHappened  bool             `json:"primarySaleHappened"`
	IsMutable            bool             `json:"isMutable"`
}

// Creator is one entry of the optional creator list.
type Creator struct {
	Address  solana.PublicKey `json:"address"`
	Verified bool             `json:"verified"`
	Share    uint8            `json:"share"`
}
