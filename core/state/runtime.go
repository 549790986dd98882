package state

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	hookerrors "gatehook/core/errors"
	"gatehook/core/types"
	"gatehook/crypto"
	"gatehook/native/token"
	"gatehook/observability/metrics"
)

const (
	// MaxAccountSize bounds a single allocation.
	MaxAccountSize = 10 * 1024 * 1024

	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThresholdYear = 2
)

var (
	ErrUnknownProgram      = hookerrors.New(hookerrors.ErrPreconditionFailure, "runtime: unknown program")
	ErrMissingSignature    = hookerrors.New(hookerrors.ErrPreconditionFailure, "runtime: account marked as signer did not sign")
	ErrInvalidSignerSeeds  = hookerrors.New(hookerrors.ErrPreconditionFailure, "runtime: signer seeds do not derive the account")
	ErrAccountNotWritable  = hookerrors.New(hookerrors.ErrPreconditionFailure, "runtime: account is not writable")
	ErrReadonlyModified    = hookerrors.New(hookerrors.ErrPreconditionFailure, "runtime: read-only account was modified")
	ErrInsufficientFunds   = hookerrors.New(hookerrors.ErrPreconditionFailure, "runtime: insufficient lamports")
	ErrIllegalOwner        = hookerrors.New(hookerrors.ErrPreconditionFailure, "runtime: account owner cannot be changed")
	ErrInvalidAccountSize  = hookerrors.New(hookerrors.ErrMalformedInput, "runtime: invalid account size")
	ErrAccountInUse        = hookerrors.New(hookerrors.ErrAllocationConflict, "runtime: account already in use")
	ErrNotTransferHookCall = hookerrors.New(hookerrors.ErrMalformedInput, "runtime: instruction lacks transfer accounts")
)

// RentExemptMinimum returns the lamports an account of size bytes must hold.
func RentExemptMinimum(size uint64) uint64 {
	return (accountStorageOverhead + size) * lamportsPerByteYear * exemptionThresholdYear
}

// Program handles instructions addressed to a registered program id.
type Program interface {
	Process(accounts []*types.AccountInfo, data []byte) error
}

// Runtime executes instructions against the ledger one at a time. Accounts
// are loaded into working copies and only writable ones are committed, in a
// single batch, when the program succeeds.
type Runtime struct {
	mu       sync.Mutex
	ledger   *Ledger
	programs map[solana.PublicKey]Program
	nowFn    func() int64
	tracer   trace.Tracer
	metrics  *metrics.HookMetrics

	// invoking is the program currently executing; signer seeds are checked
	// against it.
	invoking solana.PublicKey
}

func NewRuntime(ledger *Ledger) *Runtime {
	return &Runtime{
		ledger:   ledger,
		programs: make(map[solana.PublicKey]Program),
		nowFn:    func() int64 { return time.Now().Unix() },
		tracer:   otel.Tracer("gatehook/core/state"),
		metrics:  metrics.Hook(),
	}
}

// Ledger returns the backing ledger.
func (r *Runtime) Ledger() *Ledger { return r.ledger }

// SetNowFunc overrides the clock exposed to programs.
func (r *Runtime) SetNowFunc(now func() int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	r.nowFn = now
}

// RegisterProgram routes instructions for id to program and records id as an
// executable account.
func (r *Runtime) RegisterProgram(id solana.PublicKey, program Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[id] = program
	return r.ledger.PutAccount(id, &types.Account{Owner: solana.BPFLoaderUpgradeableProgramID, Lamports: 1, Executable: true})
}

// Now implements the program host clock.
func (r *Runtime) Now() int64 { return r.nowFn() }

// Allocate sizes account to space bytes and tops its balance up to the rent
// exempt minimum from payer. Without signerSeeds account must have signed.
func (r *Runtime) Allocate(payer, account *types.AccountInfo, space uint64, signerSeeds [][]byte) error {
	if err := r.authorize(account, signerSeeds); err != nil {
		return err
	}
	if !account.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, account.Key)
	}
	if space > MaxAccountSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidAccountSize, space)
	}
	if len(account.Data) != 0 || account.Owner != solana.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountInUse, account.Key)
	}
	if rent := RentExemptMinimum(space); account.Lamports < rent {
		need := rent - account.Lamports
		if !payer.IsSigner {
			return fmt.Errorf("%w: payer %s", ErrMissingSignature, payer.Key)
		}
		if !payer.IsWritable {
			return fmt.Errorf("%w: payer %s", ErrAccountNotWritable, payer.Key)
		}
		if payer.Lamports < need {
			return fmt.Errorf("%w: payer %s has %d, needs %d", ErrInsufficientFunds, payer.Key, payer.Lamports, need)
		}
		payer.Lamports -= need
		account.Lamports += need
	}
	account.Data = make([]byte, space)
	return nil
}

// Assign hands a system-owned account to owner.
func (r *Runtime) Assign(account *types.AccountInfo, owner solana.PublicKey, signerSeeds [][]byte) error {
	if err := r.authorize(account, signerSeeds); err != nil {
		return err
	}
	if !account.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, account.Key)
	}
	if account.Owner != solana.SystemProgramID {
		return fmt.Errorf("%w: %s owned by %s", ErrIllegalOwner, account.Key, account.Owner)
	}
	account.Owner = owner
	return nil
}

func (r *Runtime) authorize(account *types.AccountInfo, signerSeeds [][]byte) error {
	if len(signerSeeds) == 0 {
		if !account.IsSigner {
			return fmt.Errorf("%w: %s", ErrMissingSignature, account.Key)
		}
		return nil
	}
	derived, err := crypto.CreateProgramAddress(signerSeeds, r.invoking)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignerSeeds, err)
	}
	if derived != account.Key {
		return fmt.Errorf("%w: derived %s, account %s", ErrInvalidSignerSeeds, derived, account.Key)
	}
	return nil
}

// Execute runs ix with the given signers. Nothing is written unless the
// program succeeds.
func (r *Runtime) Execute(ctx context.Context, ix solana.Instruction, signers []solana.PublicKey) error {
	return r.execute(ctx, ix, signers, nil)
}

// ExecuteTransferHook runs a transfer hook Execute instruction the way the
// token program does during a transfer: the source and destination token
// accounts are flagged as transferring for the duration of the call.
func (r *Runtime) ExecuteTransferHook(ctx context.Context, ix solana.Instruction, signers []solana.PublicKey) error {
	return r.execute(ctx, ix, signers, func(accounts []*types.AccountInfo) (func(), error) {
		if len(accounts) < 3 {
			return nil, fmt.Errorf("%w: %d accounts", ErrNotTransferHookCall, len(accounts))
		}
		source, destination := accounts[0], accounts[2]
		for _, acc := range []*types.AccountInfo{source, destination} {
			if err := token.SetTransferring(acc.Data, true); err != nil {
				return nil, fmt.Errorf("token account %s: %w", acc.Key, err)
			}
		}
		return func() {
			_ = token.SetTransferring(source.Data, false)
			_ = token.SetTransferring(destination.Data, false)
		}, nil
	})
}

type prepareFunc func(accounts []*types.AccountInfo) (release func(), err error)

func (r *Runtime) execute(ctx context.Context, ix solana.Instruction, signers []solana.PublicKey, prepare prepareFunc) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	programID := ix.ProgramID()
	_, span := r.tracer.Start(ctx, "runtime.execute", trace.WithAttributes(
		attribute.String("program", programID.String()),
	))
	started := time.Now()
	defer func() {
		r.metrics.ObserveInstruction(programID.String(), time.Since(started).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, hookerrors.KindLabel(err))
		}
		span.End()
	}()

	program, ok := r.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}
	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("instruction data: %w", err)
	}
	accounts, originals, err := r.load(ix.Accounts(), signers)
	if err != nil {
		return err
	}
	span.AddEvent("accounts loaded", trace.WithAttributes(attribute.Int("accounts", len(accounts))))

	var release func()
	if prepare != nil {
		if release, err = prepare(accounts); err != nil {
			return err
		}
	}
	r.invoking = programID
	err = program.Process(accounts, data)
	r.invoking = solana.PublicKey{}
	if release != nil {
		release()
	}
	if err != nil {
		return err
	}
	return r.commit(accounts, originals)
}

func (r *Runtime) load(metas []*solana.AccountMeta, signers []solana.PublicKey) ([]*types.AccountInfo, map[solana.PublicKey]*types.Account, error) {
	signed := make(map[solana.PublicKey]bool, len(signers))
	for _, key := range signers {
		signed[key] = true
	}
	accounts := make([]*types.AccountInfo, 0, len(metas))
	byKey := make(map[solana.PublicKey]*types.AccountInfo, len(metas))
	originals := make(map[solana.PublicKey]*types.Account, len(metas))
	for _, meta := range metas {
		if meta.IsSigner && !signed[meta.PublicKey] {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
		if info, ok := byKey[meta.PublicKey]; ok {
			info.IsSigner = info.IsSigner || meta.IsSigner
			info.IsWritable = info.IsWritable || meta.IsWritable
			accounts = append(accounts, info)
			continue
		}
		stored, err := r.ledger.GetAccount(meta.PublicKey)
		if err != nil {
			return nil, nil, err
		}
		info := types.NewAccountInfo(meta.PublicKey, stored, meta.IsSigner, meta.IsWritable)
		byKey[meta.PublicKey] = info
		originals[meta.PublicKey] = info.Account()
		accounts = append(accounts, info)
	}
	return accounts, originals, nil
}

func (r *Runtime) commit(accounts []*types.AccountInfo, originals map[solana.PublicKey]*types.Account) error {
	dirty := make(map[solana.PublicKey]*types.Account)
	for _, info := range accounts {
		before := originals[info.Key]
		after := info.Account()
		if accountsEqual(before, after) {
			continue
		}
		if !info.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadonlyModified, info.Key)
		}
		dirty[info.Key] = after
	}
	return r.ledger.Commit(dirty)
}

func accountsEqual(a, b *types.Account) bool {
	return a.Owner == b.Owner &&
		a.Lamports == b.Lamports &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}
