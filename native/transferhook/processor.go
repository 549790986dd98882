package transferhook

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
	"gatehook/core/events"
	"gatehook/core/types"
	"gatehook/native/accountmeta"
	"gatehook/native/gateway"
	"gatehook/native/token"
	"gatehook/observability/metrics"
)

var ErrIncorrectProgramID = hookerrors.New(hookerrors.ErrPreconditionFailure, "transferhook: incorrect program id")

// Host provides the account primitives the processor cannot perform on its
// own. Implementations must only honour signerSeeds that derive the target
// account under the invoking program.
type Host interface {
	Allocate(payer, account *types.AccountInfo, space uint64, signerSeeds [][]byte) error
	Assign(account *types.AccountInfo, owner solana.PublicKey, signerSeeds [][]byte) error
	Now() int64
}

type hookEvent interface {
	events.Event
	Event() *types.Event
}

// Processor executes transfer hook instructions against a set of accounts
// supplied by the host runtime. It keeps no state between calls.
type Processor struct {
	programID solana.PublicKey
	host      Host
	emitter   events.Emitter
	nowFn     func() int64
	logger    *slog.Logger
	metrics   *metrics.HookMetrics
}

// NewProcessor returns a processor acting as programID with a no-op emitter.
func NewProcessor(programID solana.PublicKey) *Processor {
	return &Processor{
		programID: programID,
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		metrics:   metrics.Hook(),
	}
}

// ProgramID returns the address the processor acts as.
func (p *Processor) ProgramID() solana.PublicKey { return p.programID }

// SetHost configures the runtime used for allocation and the clock.
func (p *Processor) SetHost(host Host) { p.host = host }

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (p *Processor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// SetNowFunc overrides the clock used for credential expiry. When unset the
// host clock is used, falling back to the wall clock.
func (p *Processor) SetNowFunc(now func() int64) { p.nowFn = now }

// SetLogger overrides the structured logger. Passing nil restores the default.
func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.logger = logger
}

func (p *Processor) now() int64 {
	switch {
	case p.nowFn != nil:
		return p.nowFn()
	case p.host != nil:
		return p.host.Now()
	default:
		return time.Now().Unix()
	}
}

func (p *Processor) emit(evt hookEvent) {
	if p.emitter == nil {
		return
	}
	p.emitter.Emit(evt)
}

func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger.With(slog.String("component", "transferhook"))
}

// Process decodes data and runs the matching instruction.
func (p *Processor) Process(accounts []*types.AccountInfo, data []byte) error {
	ix, err := ParseInstruction(data)
	if err != nil {
		p.log().Warn("rejected instruction", slog.String("reason", err.Error()))
		return err
	}
	switch ix.Kind {
	case InstructionExecute:
		return p.ProcessExecute(accounts, ix.Amount)
	case InstructionInitializeExtraAccountMetas:
		return p.ProcessInitializeExtraAccountMetas(accounts, ix.GatekeeperNetwork)
	default:
		return ErrInvalidInstructionData
	}
}

// ProcessInitializeExtraAccountMetas writes the list of extra accounts the
// mint's transfers must carry. Accounts: descriptor account (writable), mint,
// mint authority (signer, pays rent), system program.
func (p *Processor) ProcessInitializeExtraAccountMetas(accounts []*types.AccountInfo, network solana.PublicKey) error {
	err := p.initializeExtraAccountMetas(accounts, network)
	if err != nil {
		p.metrics.ObserveInitialization(hookerrors.KindLabel(err))
		p.log().Warn("extra account metas initialization failed",
			slog.String("kind", hookerrors.KindLabel(err)),
			slog.String("reason", err.Error()))
		return err
	}
	p.metrics.ObserveInitialization("ok")
	return nil
}

func (p *Processor) initializeExtraAccountMetas(accounts []*types.AccountInfo, network solana.PublicKey) error {
	if len(accounts) < 4 {
		return fmt.Errorf("%w: initialize needs 4 accounts, have %d", ErrNotEnoughAccountKeys, len(accounts))
	}
	metasInfo, mintInfo, authorityInfo, systemInfo := accounts[0], accounts[1], accounts[2], accounts[3]

	mint, err := token.UnpackMint(mintInfo.Data)
	if err != nil {
		return fmt.Errorf("mint %s: %w", mintInfo.Key, err)
	}
	if mint.MintAuthority == nil {
		return ErrMintHasNoMintAuthority
	}
	if !authorityInfo.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, authorityInfo.Key)
	}
	if authorityInfo.Key != *mint.MintAuthority {
		return fmt.Errorf("%w: %s is not %s", ErrIncorrectMintAuthority, authorityInfo.Key, *mint.MintAuthority)
	}
	expected, bump, err := ExtraAccountMetasAddressAndBump(mintInfo.Key, p.programID)
	if err != nil {
		return err
	}
	if metasInfo.Key != expected {
		return fmt.Errorf("%w: have %s, derived %s", ErrInvalidSeeds, metasInfo.Key, expected)
	}
	if systemInfo.Key != solana.SystemProgramID {
		return fmt.Errorf("%w: %s is not the system program", ErrIncorrectProgramID, systemInfo.Key)
	}
	if p.host == nil {
		return ErrHostNotConfigured
	}
	if len(metasInfo.Data) != 0 || metasInfo.Owner != solana.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, metasInfo.Key)
	}

	metas := ExtraAccountMetas(network)
	signerSeeds := append(extraAccountMetasSeeds(mintInfo.Key), []byte{bump})
	if err := p.host.Allocate(authorityInfo, metasInfo, uint64(accountmeta.SizeOf(len(metas))), signerSeeds); err != nil {
		return err
	}
	if err := p.host.Assign(metasInfo, p.programID, signerSeeds); err != nil {
		return err
	}
	if err := accountmeta.Init(metasInfo.Data, ExecuteDiscriminator, metas); err != nil {
		return err
	}

	p.emit(events.MetasInitialized{
		Mint:              mintInfo.Key,
		ExtraAccountMetas: metasInfo.Key,
		GatekeeperNetwork: network,
		Authority:         authorityInfo.Key,
		Count:             len(metas),
	})
	p.log().Info("extra account metas initialized",
		slog.String("mint", mintInfo.Key.String()),
		slog.String("gatekeeperNetwork", network.String()))
	return nil
}

// ProcessExecute verifies a transfer of amount. Accounts: source, mint,
// destination, authority, descriptor account, then the extras recorded at
// initialization. The destination must hold a valid gateway token.
func (p *Processor) ProcessExecute(accounts []*types.AccountInfo, amount uint64) error {
	stage, err := p.execute(accounts, amount)
	if err != nil {
		err = rejectAt(stage, err)
		rejected := events.TransferRejected{
			Amount: amount,
			Stage:  stage.String(),
			Kind:   hookerrors.KindLabel(err),
			Reason: err.Error(),
		}
		if len(accounts) > ExecuteDestinationIndex {
			rejected.Mint = accounts[ExecuteMintIndex].Key
			rejected.Destination = accounts[ExecuteDestinationIndex].Key
		}
		p.emit(rejected)
		p.metrics.ObserveRejected(rejected.Stage, rejected.Kind)
		p.log().Warn("transfer rejected",
			slog.String("stage", rejected.Stage),
			slog.String("kind", rejected.Kind),
			slog.String("reason", err.Error()))
		return err
	}
	p.emit(events.TransferAdmitted{
		Mint:        accounts[ExecuteMintIndex].Key,
		Source:      accounts[ExecuteSourceIndex].Key,
		Destination: accounts[ExecuteDestinationIndex].Key,
		Amount:      amount,
	})
	p.metrics.ObserveAdmitted()
	p.log().Debug("transfer admitted",
		slog.String("from", stage.String()),
		slog.String("stage", StageAdmitted.String()),
		slog.Uint64("amount", amount))
	return nil
}

// execute returns the last stage reached along with any failure. A transfer
// that reaches StageCredentialChecked without error is admitted.
func (p *Processor) execute(accounts []*types.AccountInfo, amount uint64) (Stage, error) {
	stage := StageStart
	if len(accounts) < ExecuteBaseAccounts {
		return stage, fmt.Errorf("%w: execute needs %d accounts, have %d", ErrNotEnoughAccountKeys, ExecuteBaseAccounts, len(accounts))
	}
	source := accounts[ExecuteSourceIndex]
	mint := accounts[ExecuteMintIndex]
	destination := accounts[ExecuteDestinationIndex]
	metasInfo := accounts[ExecuteExtraAccountMetasIndex]
	stage = StageAccountsResolved

	for _, acc := range []*types.AccountInfo{source, destination} {
		transferring, err := token.IsTransferring(acc.Data)
		if err != nil {
			return stage, fmt.Errorf("%w: %s: %v", ErrProgramCalledOutsideOfTransfer, acc.Key, err)
		}
		if !transferring {
			return stage, fmt.Errorf("%w: %s", ErrProgramCalledOutsideOfTransfer, acc.Key)
		}
	}
	stage = StageTransferFlagsChecked

	expected, _, err := ExtraAccountMetasAddressAndBump(mint.Key, p.programID)
	if err != nil {
		return stage, err
	}
	if metasInfo.Key != expected {
		return stage, fmt.Errorf("%w: have %s, derived %s", ErrInvalidSeeds, metasInfo.Key, expected)
	}
	metas, err := accountmeta.Decode(metasInfo.Data, ExecuteDiscriminator)
	if err != nil {
		return stage, err
	}
	if len(metas) < extraAccountCount {
		return stage, fmt.Errorf("%w: descriptor list holds %d accounts, need %d", accountmeta.ErrNotEnoughAccounts, len(metas), extraAccountCount)
	}
	stage = StageDescriptorListLoaded

	data := Instruction{Kind: InstructionExecute, Amount: amount}.Pack()
	if err := accountmeta.CheckAccountInfos(metasInfo.Data, ExecuteDiscriminator, accounts, ExecuteBaseAccounts, data, p.programID); err != nil {
		return stage, err
	}
	stage = StageExtraAccountsVerified

	network := accounts[ExecuteBaseAccounts+extraGatekeeperNetwork].Key
	gatewayToken := accounts[ExecuteBaseAccounts+extraGatewayToken]
	if err := gateway.Verify(gatewayToken, destination.Key, network, p.now()); err != nil {
		return stage, err
	}
	stage = StageCredentialChecked
	return stage, nil
}
