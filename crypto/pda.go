package crypto

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
)

const (
	// MaxSeeds is the maximum number of seeds accepted by CreateProgramAddress,
	// including the bump seed appended by FindProgramAddress.
	MaxSeeds = 16
	// MaxSeedLength bounds every individual seed.
	MaxSeedLength = 32
	// MaxBumpAttempts is the number of bump values FindProgramAddress tries,
	// from 255 down to 0.
	MaxBumpAttempts = 256
)

var (
	ErrMaxSeedsExceeded      = hookerrors.New(hookerrors.ErrMalformedInput, "pda: too many seeds")
	ErrMaxSeedLengthExceeded = hookerrors.New(hookerrors.ErrMalformedInput, "pda: seed exceeds maximum length")
	ErrAddressOnCurve        = hookerrors.New(hookerrors.ErrPreconditionFailure, "pda: derived address lies on the curve")
	ErrNoViableBump          = hookerrors.New(hookerrors.ErrPreconditionFailure, "pda: unable to find a viable bump seed")
)

func checkSeeds(seeds [][]byte, limit int) error {
	if len(seeds) > limit {
		return ErrMaxSeedsExceeded
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return ErrMaxSeedLengthExceeded
		}
	}
	return nil
}

// CreateProgramAddress derives the off-curve address for the exact seed list
// under programID. No bump is appended.
func CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	if err := checkSeeds(seeds, MaxSeeds); err != nil {
		return solana.PublicKey{}, err
	}
	addr, err := solana.CreateProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrAddressOnCurve, err)
	}
	return addr, nil
}

// FindProgramAddress searches for the first bump, starting at 255, for which
// seeds plus the bump produce an off-curve address under programID. The
// search is bounded by MaxBumpAttempts.
func FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if err := checkSeeds(seeds, MaxSeeds-1); err != nil {
		return solana.PublicKey{}, 0, err
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for attempt := 0; attempt < MaxBumpAttempts; attempt++ {
		bump := uint8(255 - attempt)
		withBump[len(seeds)] = []byte{bump}
		addr, err := solana.CreateProgramAddress(withBump, programID)
		if err != nil {
			continue
		}
		return addr, bump, nil
	}
	return solana.PublicKey{}, 0, ErrNoViableBump
}
