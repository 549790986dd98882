package accountmeta

import (
	"fmt"

	hookerrors "gatehook/core/errors"
)

// SeedKind tags a packed seed component.
type SeedKind uint8

const (
	SeedUninitialized   SeedKind = 0
	SeedLiteral         SeedKind = 1
	SeedInstructionData SeedKind = 2
	SeedAccountKey      SeedKind = 3
	SeedAccountData     SeedKind = 4
)

// AddressConfigLength is the size of the address config field of a meta. A
// packed seed recipe must fit inside it.
const AddressConfigLength = 32

var (
	ErrSeedConfigOverflow = hookerrors.New(hookerrors.ErrMalformedInput, "accountmeta: seed recipe does not fit address config")
	ErrInvalidSeedConfig  = hookerrors.New(hookerrors.ErrMalformedInput, "accountmeta: invalid seed config")
)

// Seed is one component of a derivation recipe.
type Seed struct {
	Kind SeedKind
	// Bytes holds the literal value for SeedLiteral.
	Bytes []byte
	// Index is the instruction data offset for SeedInstructionData and the
	// account position for SeedAccountKey and SeedAccountData.
	Index uint8
	// DataIndex is the offset into the account data for SeedAccountData.
	DataIndex uint8
	// Length is the number of bytes taken for SeedInstructionData and
	// SeedAccountData.
	Length uint8
}

// Literal returns a seed resolving to b.
func Literal(b []byte) Seed {
	return Seed{Kind: SeedLiteral, Bytes: append([]byte(nil), b...)}
}

// AccountKey returns a seed resolving to the address of the account at index.
func AccountKey(index uint8) Seed {
	return Seed{Kind: SeedAccountKey, Index: index}
}

// InstructionData returns a seed resolving to length bytes of the instruction
// data starting at index.
func InstructionData(index, length uint8) Seed {
	return Seed{Kind: SeedInstructionData, Index: index, Length: length}
}

// AccountData returns a seed resolving to length bytes of the data of the
// account at accountIndex, starting at dataIndex.
func AccountData(accountIndex, dataIndex, length uint8) Seed {
	return Seed{Kind: SeedAccountData, Index: accountIndex, DataIndex: dataIndex, Length: length}
}

func (s Seed) packedLen() int {
	switch s.Kind {
	case SeedLiteral:
		return 2 + len(s.Bytes)
	case SeedInstructionData:
		return 3
	case SeedAccountKey:
		return 2
	case SeedAccountData:
		return 4
	default:
		return 0
	}
}

func (s Seed) String() string {
	switch s.Kind {
	case SeedLiteral:
		return fmt.Sprintf("literal(%x)", s.Bytes)
	case SeedInstructionData:
		return fmt.Sprintf("instruction_data(%d..%d)", s.Index, int(s.Index)+int(s.Length))
	case SeedAccountKey:
		return fmt.Sprintf("account_key(%d)", s.Index)
	case SeedAccountData:
		return fmt.Sprintf("account_data(%d, %d..%d)", s.Index, s.DataIndex, int(s.DataIndex)+int(s.Length))
	default:
		return "uninitialized"
	}
}

// PackSeeds serializes a recipe into an address config. Unused trailing bytes
// are zero, which terminates the recipe on unpack.
func PackSeeds(seeds []Seed) ([AddressConfigLength]byte, error) {
	var out [AddressConfigLength]byte
	offset := 0
	for _, seed := range seeds {
		size := seed.packedLen()
		if size == 0 {
			return out, fmt.Errorf("%w: unsupported seed kind %d", ErrInvalidSeedConfig, seed.Kind)
		}
		if seed.Kind == SeedLiteral && len(seed.Bytes) > 0xFF {
			return out, ErrSeedConfigOverflow
		}
		if offset+size > AddressConfigLength {
			return out, ErrSeedConfigOverflow
		}
		out[offset] = byte(seed.Kind)
		switch seed.Kind {
		case SeedLiteral:
			out[offset+1] = byte(len(seed.Bytes))
			copy(out[offset+2:], seed.Bytes)
		case SeedInstructionData:
			out[offset+1] = seed.Index
			out[offset+2] = seed.Length
		case SeedAccountKey:
			out[offset+1] = seed.Index
		case SeedAccountData:
			out[offset+1] = seed.Index
			out[offset+2] = seed.DataIndex
			out[offset+3] = seed.Length
		}
		offset += size
	}
	return out, nil
}

// UnpackSeeds parses an address config until the first zero kind byte or the
// end of the buffer.
func UnpackSeeds(config [AddressConfigLength]byte) ([]Seed, error) {
	seeds := make([]Seed, 0, 4)
	offset := 0
	for offset < AddressConfigLength {
		kind := SeedKind(config[offset])
		if kind == SeedUninitialized {
			break
		}
		var size int
		switch kind {
		case SeedLiteral:
			size = 2
		case SeedInstructionData:
			size = 3
		case SeedAccountKey:
			size = 2
		case SeedAccountData:
			size = 4
		default:
			return nil, fmt.Errorf("%w: unknown seed kind %d at offset %d", ErrInvalidSeedConfig, kind, offset)
		}
		if offset+size > AddressConfigLength {
			return nil, fmt.Errorf("%w: truncated seed at offset %d", ErrInvalidSeedConfig, offset)
		}
		switch kind {
		case SeedLiteral:
			length := int(config[offset+1])
			end := offset + 2 + length
			if end > AddressConfigLength {
				return nil, fmt.Errorf("%w: literal overruns config at offset %d", ErrInvalidSeedConfig, offset)
			}
			seeds = append(seeds, Literal(config[offset+2:end]))
			size += length
		case SeedInstructionData:
			seeds = append(seeds, InstructionData(config[offset+1], config[offset+2]))
		case SeedAccountKey:
			seeds = append(seeds, AccountKey(config[offset+1]))
		case SeedAccountData:
			seeds = append(seeds, AccountData(config[offset+1], config[offset+2], config[offset+3]))
		}
		offset += size
	}
	return seeds, nil
}
