package accountmeta

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
	"gatehook/core/types"
	"gatehook/crypto"
)

var (
	ErrIncorrectAccount        = hookerrors.New(hookerrors.ErrResolutionMismatch, "accountmeta: incorrect account provided")
	ErrNotEnoughAccounts       = hookerrors.New(hookerrors.ErrResolutionMismatch, "accountmeta: not enough accounts provided")
	ErrAccountNotResolved      = hookerrors.New(hookerrors.ErrResolutionMismatch, "accountmeta: seed references an account that is not yet resolved")
	ErrInstructionDataTooSmall = hookerrors.New(hookerrors.ErrResolutionMismatch, "accountmeta: instruction data too small for seed")
	ErrAccountDataTooSmall     = hookerrors.New(hookerrors.ErrResolutionMismatch, "accountmeta: account data too small for seed")
)

// KnownAccount is an account whose address, and optionally data, is already
// established when a later meta is resolved.
type KnownAccount struct {
	Key  solana.PublicKey
	Data []byte
}

// ResolveMeta computes the address meta describes. known holds the accounts
// preceding the meta, in order; seeds can only reference positions inside it.
func ResolveMeta(meta ExtraAccountMeta, known []KnownAccount, instructionData []byte, programID solana.PublicKey) (solana.PublicKey, error) {
	switch meta.Variant() {
	case VariantFixed:
		addr, _ := meta.Address()
		return addr, nil
	case VariantProgramDerived:
		seeds, err := resolveSeeds(meta, known, instructionData)
		if err != nil {
			return solana.PublicKey{}, err
		}
		addr, _, err := crypto.FindProgramAddress(seeds, programID)
		return addr, err
	case VariantExternalDerived:
		index, _ := meta.ProgramIndex()
		if int(index) >= len(known) {
			return solana.PublicKey{}, fmt.Errorf("%w: program index %d, %d accounts known", ErrAccountNotResolved, index, len(known))
		}
		seeds, err := resolveSeeds(meta, known, instructionData)
		if err != nil {
			return solana.PublicKey{}, err
		}
		addr, _, err := crypto.FindProgramAddress(seeds, known[index].Key)
		return addr, err
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %d", ErrInvalidMetaDiscriminator, meta.Discriminator)
	}
}

func resolveSeeds(meta ExtraAccountMeta, known []KnownAccount, instructionData []byte) ([][]byte, error) {
	recipe, err := meta.Seeds()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(recipe))
	for _, seed := range recipe {
		switch seed.Kind {
		case SeedLiteral:
			out = append(out, seed.Bytes)
		case SeedInstructionData:
			end := int(seed.Index) + int(seed.Length)
			if end > len(instructionData) {
				return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrInstructionDataTooSmall, end, len(instructionData))
			}
			out = append(out, instructionData[seed.Index:end])
		case SeedAccountKey:
			if int(seed.Index) >= len(known) {
				return nil, fmt.Errorf("%w: account %d, %d accounts known", ErrAccountNotResolved, seed.Index, len(known))
			}
			key := known[seed.Index].Key
			out = append(out, key[:])
		case SeedAccountData:
			if int(seed.Index) >= len(known) {
				return nil, fmt.Errorf("%w: account %d, %d accounts known", ErrAccountNotResolved, seed.Index, len(known))
			}
			data := known[seed.Index].Data
			end := int(seed.DataIndex) + int(seed.Length)
			if end > len(data) {
				return nil, fmt.Errorf("%w: account %d needs %d bytes, has %d", ErrAccountDataTooSmall, seed.Index, end, len(data))
			}
			out = append(out, data[seed.DataIndex:end])
		default:
			return nil, fmt.Errorf("%w: unsupported seed kind %d", ErrInvalidSeedConfig, seed.Kind)
		}
	}
	return out, nil
}

// CheckAccountInfos verifies that accounts[baseCount:] holds, in order, the
// accounts described by the list stored in data. Each meta is resolved
// against the base accounts and the extras already checked before it. The
// first mismatch aborts the check.
func CheckAccountInfos(data []byte, discriminator Discriminator, accounts []*types.AccountInfo, baseCount int, instructionData []byte, programID solana.PublicKey) error {
	metas, err := Decode(data, discriminator)
	if err != nil {
		return err
	}
	if len(accounts) < baseCount+len(metas) {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughAccounts, len(accounts), baseCount+len(metas))
	}
	known := make([]KnownAccount, 0, baseCount+len(metas))
	for _, info := range accounts[:baseCount] {
		known = append(known, KnownAccount{Key: info.Key, Data: info.Data})
	}
	for i, meta := range metas {
		expected, err := ResolveMeta(meta, known, instructionData, programID)
		if err != nil {
			return fmt.Errorf("extra account %d: %w", i, err)
		}
		supplied := accounts[baseCount+i]
		if supplied.Key != expected {
			return fmt.Errorf("%w: extra account %d is %s, expected %s", ErrIncorrectAccount, i, supplied.Key, expected)
		}
		known = append(known, KnownAccount{Key: supplied.Key, Data: supplied.Data})
	}
	return nil
}

// DataFetcher loads the current data of an account. Client tooling supplies
// one when a list contains account data seeds.
type DataFetcher func(key solana.PublicKey) ([]byte, error)

var errNoFetcher = errors.New("accountmeta: account data seed requires a data fetcher")

// Resolve computes the ordered extra account metas a caller must append to an
// instruction with the given base accounts.
func Resolve(data []byte, discriminator Discriminator, base []solana.PublicKey, instructionData []byte, programID solana.PublicKey, fetch DataFetcher) (solana.AccountMetaSlice, error) {
	metas, err := Decode(data, discriminator)
	if err != nil {
		return nil, err
	}
	needsData := false
	for _, meta := range metas {
		seeds, err := meta.Seeds()
		if err != nil {
			return nil, err
		}
		for _, seed := range seeds {
			if seed.Kind == SeedAccountData {
				needsData = true
			}
		}
	}
	if needsData && fetch == nil {
		return nil, errNoFetcher
	}
	load := func(key solana.PublicKey) ([]byte, error) {
		if !needsData {
			return nil, nil
		}
		return fetch(key)
	}
	known := make([]KnownAccount, 0, len(base)+len(metas))
	for _, key := range base {
		accountData, err := load(key)
		if err != nil {
			return nil, fmt.Errorf("accountmeta: fetch %s: %w", key, err)
		}
		known = append(known, KnownAccount{Key: key, Data: accountData})
	}
	out := make(solana.AccountMetaSlice, 0, len(metas))
	for i, meta := range metas {
		key, err := ResolveMeta(meta, known, instructionData, programID)
		if err != nil {
			return nil, fmt.Errorf("extra account %d: %w", i, err)
		}
		accountData, err := load(key)
		if err != nil {
			return nil, fmt.Errorf("accountmeta: fetch %s: %w", key, err)
		}
		known = append(known, KnownAccount{Key: key, Data: accountData})
		out = append(out, solana.NewAccountMeta(key, meta.IsWritable, meta.IsSigner))
	}
	return out, nil
}
