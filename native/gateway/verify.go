package gateway

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
	"gatehook/core/types"
)

var (
	ErrTokenMissing          = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: gateway token account is empty")
	ErrIncorrectProgramOwner = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: gateway token not owned by the gateway program")
	ErrHolderMismatch        = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: gateway token issued to a different holder")
	ErrNetworkMismatch       = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: gateway token issued by a different gatekeeper network")
	ErrTokenRevoked          = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: gateway token revoked")
	ErrTokenFrozen           = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: gateway token frozen")
	ErrTokenExpired          = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: gateway token expired")
)

// CheckValid reports whether the token is usable at unix time now. Frozen and
// revoked tokens are invalid. A token stays valid through its expiry second and
// is expired once now passes it, the same boundary the gateway program uses.
func (t *GatewayToken) CheckValid(now int64) error {
	switch t.State {
	case StateActive:
	case StateRevoked:
		return ErrTokenRevoked
	case StateFrozen:
		return ErrTokenFrozen
	default:
		return fmt.Errorf("%w: state %s", ErrInvalidTokenData, t.State)
	}
	if t.ExpireTime != nil && *t.ExpireTime < now {
		return fmt.Errorf("%w: expired at %d, now %d", ErrTokenExpired, *t.ExpireTime, now)
	}
	return nil
}

// Verify checks that account holds a valid gateway token for holder issued
// under network at unix time now. Checks run in order and the first failure
// is returned.
func Verify(account *types.AccountInfo, holder, network solana.PublicKey, now int64) error {
	if account == nil || len(account.Data) == 0 {
		return ErrTokenMissing
	}
	if account.Owner != ProgramID {
		return fmt.Errorf("%w: owner %s", ErrIncorrectProgramOwner, account.Owner)
	}
	tok, err := Unpack(account.Data)
	if err != nil {
		return err
	}
	if tok.OwnerWallet != holder {
		return fmt.Errorf("%w: token holder %s, expected %s", ErrHolderMismatch, tok.OwnerWallet, holder)
	}
	if tok.GatekeeperNetwork != network {
		return fmt.Errorf("%w: token network %s, expected %s", ErrNetworkMismatch, tok.GatekeeperNetwork, network)
	}
	return tok.CheckValid(now)
}
