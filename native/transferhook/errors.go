package transferhook

import (
	hookerrors "gatehook/core/errors"
)

var (
	ErrInvalidInstructionData         = hookerrors.New(hookerrors.ErrMalformedInput, "transferhook: invalid instruction data")
	ErrNotEnoughAccountKeys           = hookerrors.New(hookerrors.ErrMalformedInput, "transferhook: not enough account keys")
	ErrMissingRequiredSignature       = hookerrors.New(hookerrors.ErrPreconditionFailure, "transferhook: missing required signature")
	ErrMintHasNoMintAuthority         = hookerrors.New(hookerrors.ErrPreconditionFailure, "transferhook: mint has no mint authority")
	ErrIncorrectMintAuthority         = hookerrors.New(hookerrors.ErrPreconditionFailure, "transferhook: incorrect mint authority")
	ErrProgramCalledOutsideOfTransfer = hookerrors.New(hookerrors.ErrPreconditionFailure, "transferhook: program called outside of a token transfer")
	ErrHostNotConfigured              = hookerrors.New(hookerrors.ErrPreconditionFailure, "transferhook: host not configured")
	ErrInvalidSeeds                   = hookerrors.New(hookerrors.ErrResolutionMismatch, "transferhook: extra account metas address does not match derived address")
	ErrAccountAlreadyInUse            = hookerrors.New(hookerrors.ErrAllocationConflict, "transferhook: account already in use")
)
