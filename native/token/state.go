package token

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
	"gatehook/crypto"
)

// ProgramID is the token program that owns mints and token accounts carrying
// extensions.
var ProgramID = crypto.MustDecodePublicKey("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

const (
	MintLength    = 82
	AccountLength = 165
	// accountTypeOffset is where extended mints and accounts store their
	// AccountType byte; mints are zero padded up to it.
	accountTypeOffset = AccountLength
)

// AccountType discriminates extended mint and token account data.
type AccountType uint8

const (
	AccountTypeUninitialized AccountType = 0
	AccountTypeMint          AccountType = 1
	AccountTypeAccount       AccountType = 2
)

// AccountState is the lifecycle state of a token account.
type AccountState uint8

const (
	AccountStateUninitialized AccountState = 0
	AccountStateInitialized   AccountState = 1
	AccountStateFrozen        AccountState = 2
)

var (
	ErrInvalidAccountData = hookerrors.New(hookerrors.ErrMalformedInput, "token: invalid account data")
	ErrUninitialized      = hookerrors.New(hookerrors.ErrPreconditionFailure, "token: account not initialized")
	ErrExtensionNotFound  = hookerrors.New(hookerrors.ErrPreconditionFailure, "token: extension not found")
)

// Mint is the base mint record.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
	Extensions      []Extension
}

// Account is the base token account record.
type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
	Extensions      []Extension
}

func readOptionalKey(dec *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		key := solana.PublicKeyFromBytes(raw)
		return &key, nil
	default:
		return nil, fmt.Errorf("%w: option tag %d", ErrInvalidAccountData, tag)
	}
}

func writeOptionalKey(enc *bin.Encoder, key *solana.PublicKey) {
	if key == nil {
		_ = enc.WriteUint32(0, binary.LittleEndian)
		_ = enc.WriteBytes(make([]byte, solana.PublicKeyLength), false)
		return
	}
	_ = enc.WriteUint32(1, binary.LittleEndian)
	_ = enc.WriteBytes(key[:], false)
}

// extensionRegion validates the length and type byte of extended data and
// returns the TLV bytes that follow the type byte.
func extensionRegion(data []byte, baseLength int, want AccountType) ([]byte, error) {
	switch {
	case len(data) == baseLength:
		return nil, nil
	case len(data) <= accountTypeOffset:
		return nil, fmt.Errorf("%w: unexpected length %d", ErrInvalidAccountData, len(data))
	}
	if AccountType(data[accountTypeOffset]) != want {
		return nil, fmt.Errorf("%w: account type %d, want %d", ErrInvalidAccountData, data[accountTypeOffset], want)
	}
	if baseLength < accountTypeOffset && !bytes.Equal(data[baseLength:accountTypeOffset], make([]byte, accountTypeOffset-baseLength)) {
		return nil, fmt.Errorf("%w: non-zero padding", ErrInvalidAccountData)
	}
	return data[accountTypeOffset+1:], nil
}

// UnpackMint parses a mint with or without extensions.
func UnpackMint(data []byte) (*Mint, error) {
	if len(data) < MintLength {
		return nil, fmt.Errorf("%w: mint data is %d bytes", ErrInvalidAccountData, len(data))
	}
	region, err := extensionRegion(data, MintLength, AccountTypeMint)
	if err != nil {
		return nil, err
	}
	dec := bin.NewBinDecoder(data[:MintLength])
	mint := &Mint{}
	if mint.MintAuthority, err = readOptionalKey(dec); err != nil {
		return nil, err
	}
	if mint.Supply, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if mint.Decimals, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	if mint.IsInitialized, err = dec.ReadBool(); err != nil {
		return nil, err
	}
	if mint.FreezeAuthority, err = readOptionalKey(dec); err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, ErrUninitialized
	}
	if mint.Extensions, err = parseExtensions(region); err != nil {
		return nil, err
	}
	return mint, nil
}

// UnpackAccount parses a token account with or without extensions.
func UnpackAccount(data []byte) (*Account, error) {
	if len(data) < AccountLength {
		return nil, fmt.Errorf("%w: account data is %d bytes", ErrInvalidAccountData, len(data))
	}
	region, err := extensionRegion(data, AccountLength, AccountTypeAccount)
	if err != nil {
		return nil, err
	}
	dec := bin.NewBinDecoder(data[:AccountLength])
	acc := &Account{}
	mint, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}
	acc.Mint = solana.PublicKeyFromBytes(mint)
	owner, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, err
	}
	acc.Owner = solana.PublicKeyFromBytes(owner)
	if acc.Amount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if acc.Delegate, err = readOptionalKey(dec); err != nil {
		return nil, err
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	acc.State = AccountState(state)
	nativeTag, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	nativeAmount, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if nativeTag == 1 {
		acc.IsNative = &nativeAmount
	}
	if acc.DelegatedAmount, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if acc.CloseAuthority, err = readOptionalKey(dec); err != nil {
		return nil, err
	}
	if acc.State == AccountStateUninitialized {
		return nil, ErrUninitialized
	}
	if acc.State > AccountStateFrozen {
		return nil, fmt.Errorf("%w: account state %d", ErrInvalidAccountData, acc.State)
	}
	if acc.Extensions, err = parseExtensions(region); err != nil {
		return nil, err
	}
	return acc, nil
}

// PackMint serializes m. Extensions, when present, are written after the
// padded base and the mint type byte.
func PackMint(m *Mint) []byte {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	writeOptionalKey(enc, m.MintAuthority)
	_ = enc.WriteUint64(m.Supply, binary.LittleEndian)
	_ = enc.WriteUint8(m.Decimals)
	_ = enc.WriteBool(m.IsInitialized)
	writeOptionalKey(enc, m.FreezeAuthority)
	if len(m.Extensions) == 0 {
		return buf.Bytes()
	}
	_ = enc.WriteBytes(make([]byte, accountTypeOffset-MintLength), false)
	_ = enc.WriteUint8(uint8(AccountTypeMint))
	writeExtensions(enc, m.Extensions)
	return buf.Bytes()
}

// PackAccount serializes a.
func PackAccount(a *Account) []byte {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	_ = enc.WriteBytes(a.Mint[:], false)
	_ = enc.WriteBytes(a.Owner[:], false)
	_ = enc.WriteUint64(a.Amount, binary.LittleEndian)
	writeOptionalKey(enc, a.Delegate)
	_ = enc.WriteUint8(uint8(a.State))
	if a.IsNative != nil {
		_ = enc.WriteUint32(1, binary.LittleEndian)
		_ = enc.WriteUint64(*a.IsNative, binary.LittleEndian)
	} else {
		_ = enc.WriteUint32(0, binary.LittleEndian)
		_ = enc.WriteUint64(0, binary.LittleEndian)
	}
	_ = enc.WriteUint64(a.DelegatedAmount, binary.LittleEndian)
	writeOptionalKey(enc, a.CloseAuthority)
	if len(a.Extensions) == 0 {
		return buf.Bytes()
	}
	_ = enc.WriteUint8(uint8(AccountTypeAccount))
	writeExtensions(enc, a.Extensions)
	return buf.Bytes()
}
