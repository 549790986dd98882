package accountmeta

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
)

const (
	// MetaLength is the encoded width of one ExtraAccountMeta.
	MetaLength = 1 + AddressConfigLength + 1 + 1

	discriminatorFixed          uint8 = 0
	discriminatorProgramDerived uint8 = 1
	// Discriminators at or above this value denote a PDA owned by the program
	// found at position (discriminator - externalDerivedBase).
	externalDerivedBase uint8 = 1 << 7
)

var ErrInvalidMetaDiscriminator = hookerrors.New(hookerrors.ErrMalformedInput, "accountmeta: invalid meta discriminator")

// Variant names the three ways a meta can describe its address.
type Variant uint8

const (
	VariantFixed Variant = iota
	VariantProgramDerived
	VariantExternalDerived
	VariantInvalid
)

func (v Variant) String() string {
	switch v {
	case VariantFixed:
		return "fixed"
	case VariantProgramDerived:
		return "program_derived"
	case VariantExternalDerived:
		return "external_derived"
	default:
		return "invalid"
	}
}

// ExtraAccountMeta describes one account a caller must supply after the base
// instruction accounts, and how its address is obtained.
type ExtraAccountMeta struct {
	Discriminator uint8
	AddressConfig [AddressConfigLength]byte
	IsSigner      bool
	IsWritable    bool
}

// NewFixed returns a meta requiring exactly key.
func NewFixed(key solana.PublicKey, signer, writable bool) ExtraAccountMeta {
	meta := ExtraAccountMeta{Discriminator: discriminatorFixed, IsSigner: signer, IsWritable: writable}
	copy(meta.AddressConfig[:], key[:])
	return meta
}

// NewProgramDerived returns a meta whose address is derived from seeds under
// the program being invoked.
func NewProgramDerived(seeds []Seed, signer, writable bool) (ExtraAccountMeta, error) {
	config, err := PackSeeds(seeds)
	if err != nil {
		return ExtraAccountMeta{}, err
	}
	return ExtraAccountMeta{
		Discriminator: discriminatorProgramDerived,
		AddressConfig: config,
		IsSigner:      signer,
		IsWritable:    writable,
	}, nil
}

// NewExternalDerived returns a meta whose address is derived from seeds under
// the program found at account position programIndex.
func NewExternalDerived(programIndex uint8, seeds []Seed, signer, writable bool) (ExtraAccountMeta, error) {
	if programIndex >= externalDerivedBase {
		return ExtraAccountMeta{}, fmt.Errorf("%w: program index %d out of range", ErrInvalidMetaDiscriminator, programIndex)
	}
	config, err := PackSeeds(seeds)
	if err != nil {
		return ExtraAccountMeta{}, err
	}
	return ExtraAccountMeta{
		Discriminator: externalDerivedBase + programIndex,
		AddressConfig: config,
		IsSigner:      signer,
		IsWritable:    writable,
	}, nil
}

// Variant reports how the meta's address is obtained.
func (m ExtraAccountMeta) Variant() Variant {
	switch {
	case m.Discriminator == discriminatorFixed:
		return VariantFixed
	case m.Discriminator == discriminatorProgramDerived:
		return VariantProgramDerived
	case m.Discriminator >= externalDerivedBase:
		return VariantExternalDerived
	default:
		return VariantInvalid
	}
}

// ProgramIndex returns the owner program position of an external PDA meta.
func (m ExtraAccountMeta) ProgramIndex() (uint8, bool) {
	if m.Variant() != VariantExternalDerived {
		return 0, false
	}
	return m.Discriminator - externalDerivedBase, true
}

// Address returns the literal key of a fixed meta.
func (m ExtraAccountMeta) Address() (solana.PublicKey, bool) {
	if m.Variant() != VariantFixed {
		return solana.PublicKey{}, false
	}
	return solana.PublicKeyFromBytes(m.AddressConfig[:]), true
}

// Seeds unpacks the derivation recipe of a derived meta.
func (m ExtraAccountMeta) Seeds() ([]Seed, error) {
	switch m.Variant() {
	case VariantProgramDerived, VariantExternalDerived:
		return UnpackSeeds(m.AddressConfig)
	case VariantFixed:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidMetaDiscriminator, m.Discriminator)
	}
}

func (m ExtraAccountMeta) String() string {
	var b strings.Builder
	switch m.Variant() {
	case VariantFixed:
		addr, _ := m.Address()
		fmt.Fprintf(&b, "fixed(%s)", addr)
	case VariantProgramDerived, VariantExternalDerived:
		seeds, err := m.Seeds()
		if err != nil {
			fmt.Fprintf(&b, "%s(<%v>)", m.Variant(), err)
			break
		}
		parts := make([]string, len(seeds))
		for i, seed := range seeds {
			parts[i] = seed.String()
		}
		if idx, ok := m.ProgramIndex(); ok {
			fmt.Fprintf(&b, "external_derived(program=%d, seeds=[%s])", idx, strings.Join(parts, ", "))
		} else {
			fmt.Fprintf(&b, "program_derived(seeds=[%s])", strings.Join(parts, ", "))
		}
	default:
		fmt.Fprintf(&b, "invalid(%d)", m.Discriminator)
	}
	if m.IsSigner {
		b.WriteString(" signer")
	}
	if m.IsWritable {
		b.WriteString(" writable")
	}
	return b.String()
}
