package transferhook

import (
	"errors"
	"fmt"
)

// Stage tracks how far a transfer verification progressed.
type Stage uint8

const (
	StageStart Stage = iota
	StageAccountsResolved
	StageTransferFlagsChecked
	StageDescriptorListLoaded
	StageExtraAccountsVerified
	StageCredentialChecked
	StageAdmitted
	StageRejected
)

var stageNames = [...]string{
	StageStart:                 "start",
	StageAccountsResolved:      "accounts_resolved",
	StageTransferFlagsChecked:  "transfer_flags_checked",
	StageDescriptorListLoaded:  "descriptor_list_loaded",
	StageExtraAccountsVerified: "extra_accounts_verified",
	StageCredentialChecked:     "credential_checked",
	StageAdmitted:              "admitted",
	StageRejected:              "rejected",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// StageError records the last stage a rejected transfer reached before err
// was raised.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("transfer rejected after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func rejectAt(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// RejectedAt returns the stage a verification failure was raised at. The
// second result is false when err did not come from transfer verification.
func RejectedAt(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return StageRejected, false
}
