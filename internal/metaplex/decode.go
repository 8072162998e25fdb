package metaplex

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
)

// creatorSize is the wire size of one creator entry: 32-byte address,
// 1-byte verified flag, 1-byte share.
const creatorSize = solana.PublicKeyLength + 1 + 1

// Decode parses a raw token-metadata account into a Metadata record.
//
// The input is read with a sequential cursor; every read is bounds-checked
// before it happens, so a short or malformed buffer fails with a typed
// error instead of reading out of range. Trailing bytes after the last
// field are permitted, since on-chain accounts are padded to their rented
// size. Decode performs no I/O and retains no reference to data.
func Decode(data []byte) (*Metadata, error) {
	r := reader{data: data}

	version, err := r.readByte("version")
	if err != nil {
		return nil, err
	}
	if version != SupportedVersion {
		return nil, fmt.Errorf("version %d, want %d: %w", version, SupportedVersion, ErrInvalidVersion)
	}

	authority, err := r.readKey("update authority")
	if err != nil {
		return nil, err
	}

	mint, err := r.readKey("mint")
	if err != nil {
		return nil, err
	}

	name, err := r.readString("name")
	if err != nil {
		return nil, err
	}

	symbol, err := r.readString("symbol")
	if err != nil {
		return nil, err
	}

	uri, err := r.readString("uri")
	if err != nil {
		return nil, err
	}

	fee, err := r.readInt16("seller fee basis points")
	if err != nil {
		return nil, err
	}

	// A nonzero flag byte means the creator list is present. Any nonzero
	// value counts as true, not just 1.
	hasCreators, err := r.readByte("creators flag")
	if err != nil {
		return nil, err
	}

	var creators []Creator
	if hasCreators != 0 {
		count, err := r.readUint32("creator count")
		if err != nil {
			return nil, err
		}
		// Validate the whole list against the remaining bytes before
		// allocating, so a hostile count fails instead of reserving
		// gigabytes.
		if uint64(count)*creatorSize > uint64(r.remaining()) {
			return nil, fmt.Errorf("creator count %d needs %d bytes, %d remain: %w",
				count, uint64(count)*creatorSize, r.remaining(), ErrLengthOverflow)
		}
		creators = make([]Creator, 0, count)
		for i := uint32(0); i < count; i++ {
			address, err := r.readKey(fmt.Sprintf("creator %d address", i))
			if err != nil {
				return nil, err
			}
			verified, err := r.readByte(fmt.Sprintf("creator %d verified flag", i))
			if err != nil {
				return nil, err
			}
			share, err := r.readByte(fmt.Sprintf("creator %d share", i))
			if err != nil {
				return nil, err
			}
			creators = append(creators, Creator{
				Address:  address,
				Verified: verified != 0,
				Share:    share,
			})
		}
	}

	primarySale, err := r.readByte("primary sale flag")
	if err != nil {
		return nil, err
	}

	isMutable, err := r.readByte("is mutable flag")
	if err != nil {
		return nil, err
	}

	return &Metadata{
		Version:              version,
		UpdateAuthority:      authority,
		Mint:                 mint,
		Name:                 name,
		Symbol:               symbol,
		URI:                  uri,
		SellerFeeBasisPoints: fee,
		Creators:             creators,
		PrimarySaleHappened:  primarySale != 0,
		IsMutable:            isMutable != 0,
	}, nil
}

// reader is a bounds-checked sequential cursor over an input buffer.
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) readByte(field string) (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("read %s at offset %d: %w", field, r.off, ErrTruncated)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *reader) readBytes(n int, field string) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("read %s at offset %d: need %d bytes, have %d: %w",
			field, r.off, n, r.remaining(), ErrTruncated)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) readKey(field string) (solana.PublicKey, error) {
	b, err := r.readBytes(solana.PublicKeyLength, field)
	if err != nil {
		return solana.PublicKey{}, err
	}
	var pk solana.PublicKey
	copy(pk[:], b)
	return pk, nil
}

func (r *reader) readUint32(field string) (uint32, error) {
	b, err := r.readBytes(4, field)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) readInt16(field string) (int16, error) {
	b, err := r.readBytes(2, field)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

// readString reads a 4-byte little-endian length prefix followed by that
// many bytes of UTF-8 text, then strips trailing NUL padding. Embedded
// NULs are preserved; only the trailing run is stripped.
func (r *reader) readString(field string) (string, error) {
	length, err := r.readUint32(field + " length")
	if err != nil {
		return "", err
	}
	if uint64(length) > uint64(r.remaining()) {
		return "", fmt.Errorf("read %s at offset %d: declared length %d exceeds %d remaining bytes: %w",
			field, r.off, length, r.remaining(), ErrLengthOverflow)
	}
	raw := r.data[r.off : r.off+int(length)]
	r.off += int(length)

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%s is not valid UTF-8: %w", field, ErrInvalidText)
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}
