package domain

// TokenRecord is the decoded on-chain metadata for one token mint.
// Corresponds to token_records table in PostgreSQL.
type TokenRecord struct {
	Mint                 string    // PRIMARY KEY, token mint address
	MetadataAddress      string    // derived metadata account address
	Bump                 uint8     // bump seed used in the derivation
	Version              uint8     // metadata account schema version
	UpdateAuthority      string    // update authority address
	Name                 string    // token name, trailing NULs stripped
	Symbol               string    // token symbol
	URI                  string    // off-chain metadata URI
	SellerFeeBasisPoints int16     // royalty in basis points
	Creators             []Creator // nil when the account lists none
	PrimarySaleHappened  bool      // primary sale flag from the account
	IsMutable            bool      // metadata can still be updated
	Slot                 int64     // slot the account was read at
	FetchedAt            int64     // when the account was fetched (ms)
	UpdatedAt            int64     // record update timestamp (ms)
}

// Creator is one entry of a token's creator list.
type Creator struct {
	Address  string // creator address
	Verified bool   // creator has signed the metadata
	Share    uint8  // royalty share percentage
}
