package metaplex

import (
	"encoding/binary"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
)

// Encode serializes a Metadata record into the account wire form, the
// inverse of Decode. The creators flag byte is written as 1 when the list
// is non-empty and 0 otherwise. Used to fabricate account data in tests
// and stub sources.
func Encode(m *Metadata) []byte {
	size := 1 + 2*solana.PublicKeyLength +
		4 + len(m.Name) + 4 + len(m.Symbol) + 4 + len(m.URI) +
		2 + 1 + 2
	if len(m.Creators) > 0 {
		size += 4 + len(m.Creators)*creatorSize
	}

	buf := make([]byte, 0, size)
	buf = append(buf, m.Version)
	buf = append(buf, m.UpdateAuthority[:]...)
	buf = append(buf, m.Mint[:]...)
	buf = appendString(buf, m.Name)
	buf = appendString(buf, m.Symbol)
	buf = appendString(buf, m.URI)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(m.SellerFeeBasisPoints))

	if len(m.Creators) > 0 {
		buf = append(buf, 1)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Creators)))
		for _, c := range m.Creators {
			buf = append(buf, c.Address[:]...)
			buf = append(buf, flagByte(c.Verified))
			buf = append(buf, c.Share)
		}
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, flagByte(m.PrimarySaleHappened))
	buf = append(buf, flagByte(m.IsMutable))
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func flagByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
