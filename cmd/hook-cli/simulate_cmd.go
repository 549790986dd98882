package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"gatehook/config"
	hookerrors "gatehook/core/errors"
	"gatehook/core/events"
	"gatehook/core/state"
	"gatehook/core/types"
	"gatehook/crypto"
	"gatehook/native/gateway"
	"gatehook/native/token"
	"gatehook/native/transferhook"
	"gatehook/observability"
	"gatehook/observability/logging"
	"gatehook/observability/otel"
	"gatehook/storage"
)

const (
	simulatePayerLamports = 1_000_000_000
	simulateTokenBalance  = 1_000_000
)

type eventRecorder struct {
	events []*types.Event
}

type structuredEvent interface {
	Event() *types.Event
}

func (r *eventRecorder) Emit(evt events.Event) {
	if typed, ok := evt.(structuredEvent); ok {
		r.events = append(r.events, typed.Event())
		return
	}
	r.events = append(r.events, &types.Event{Type: evt.EventType()})
}

type simulateOptions struct {
	Network    string
	TokenState string
	ExpiresIn  time.Duration
	Amount     uint64
}

type simulateResult struct {
	RunID             string         `json:"runId"`
	Ledger            string         `json:"ledger"`
	Mint              string         `json:"mint"`
	ExtraAccountMetas string         `json:"extraAccountMetas"`
	GatekeeperNetwork string         `json:"gatekeeperNetwork"`
	Destination       string         `json:"destination"`
	GatewayToken      string         `json:"gatewayToken"`
	TokenState        string         `json:"tokenState"`
	Amount            uint64         `json:"amount"`
	Admitted          bool           `json:"admitted"`
	Stage             string         `json:"stage,omitempty"`
	Kind              string         `json:"kind,omitempty"`
	Error             string         `json:"error,omitempty"`
	Events            []*types.Event `json:"events"`
}

// simulation drives one initialization and one transfer through the runtime.
type simulation struct {
	runtime   *state.Runtime
	ledger    *state.Ledger
	programID solana.PublicKey
	authority solana.PublicKey
	network   solana.PublicKey
	transfer  transferhook.TransferAccounts
	recorder  *eventRecorder
}

func newSimulation(db storage.Database, programID, authority, network solana.PublicKey, logger *slog.Logger) (*simulation, error) {
	ledger := state.NewLedger(db)
	runtime := state.NewRuntime(ledger)
	recorder := &eventRecorder{}

	processor := transferhook.NewProcessor(programID)
	processor.SetHost(runtime)
	processor.SetEmitter(observability.CountingEmitter{Next: recorder})
	if logger != nil {
		processor.SetLogger(logger)
	}
	if err := runtime.RegisterProgram(programID, processor); err != nil {
		return nil, err
	}

	sim := &simulation{
		runtime:   runtime,
		ledger:    ledger,
		programID: programID,
		authority: authority,
		network:   network,
		recorder:  recorder,
	}
	keys := make([]solana.PublicKey, 4)
	for i := range keys {
		key, err := crypto.GenerateKeypair()
		if err != nil {
			return nil, err
		}
		keys[i] = key.PublicKey()
	}
	sim.transfer = transferhook.TransferAccounts{
		Source:      keys[0],
		Mint:        keys[1],
		Destination: keys[2],
		Authority:   keys[3],
	}
	if err := sim.seed(); err != nil {
		return nil, err
	}
	return sim, nil
}

func (s *simulation) seed() error {
	mint := token.PackMint(&token.Mint{
		MintAuthority: &s.authority,
		Decimals:      6,
		Supply:        2 * simulateTokenBalance,
		IsInitialized: true,
		Extensions:    []token.Extension{token.TransferHookExtension(s.authority, s.programID)},
	})
	if err := s.ledger.PutAccount(s.transfer.Mint, &types.Account{Owner: token.ProgramID, Lamports: 1, Data: mint}); err != nil {
		return err
	}
	if err := s.ledger.PutAccount(s.authority, &types.Account{Owner: solana.SystemProgramID, Lamports: simulatePayerLamports}); err != nil {
		return err
	}
	for _, holder := range []solana.PublicKey{s.transfer.Source, s.transfer.Destination} {
		acc := &types.Account{
			Owner:    token.ProgramID,
			Lamports: 1,
			Data: token.PackAccount(&token.Account{
				Mint:       s.transfer.Mint,
				Owner:      s.transfer.Authority,
				Amount:     simulateTokenBalance,
				State:      token.AccountStateInitialized,
				Extensions: []token.Extension{token.TransferHookAccountExtension(false)},
			}),
		}
		if err := s.ledger.PutAccount(holder, acc); err != nil {
			return err
		}
	}
	return nil
}

// issueCredential stores a gateway token for the destination. A nil state
// leaves the destination without one.
func (s *simulation) issueCredential(tokenState *gateway.State, expiry *int64) (solana.PublicKey, error) {
	addr, _, err := gateway.DeriveTokenAddress(s.transfer.Destination, s.network)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if tokenState == nil {
		return addr, nil
	}
	tok := &gateway.GatewayToken{
		OwnerWallet:       s.transfer.Destination,
		GatekeeperNetwork: s.network,
		IssuingGatekeeper: s.authority,
		State:             *tokenState,
		ExpireTime:        expiry,
	}
	if expiry != nil {
		tok.Features |= gateway.FeatureExpirable
	}
	return addr, s.ledger.PutAccount(addr, &types.Account{Owner: gateway.ProgramID, Lamports: 1, Data: tok.Pack()})
}

func (s *simulation) initialize(ctx context.Context) error {
	ix, err := transferhook.NewInitializeExtraAccountMetasInstruction(s.programID, s.transfer.Mint, s.authority, s.network)
	if err != nil {
		return err
	}
	return s.runtime.Execute(ctx, ix, []solana.PublicKey{s.authority})
}

// transferHook resolves the extras from the stored list, the way a wallet
// would, and runs Execute inside a transfer.
func (s *simulation) transferHook(ctx context.Context, amount uint64) error {
	addr, err := s.metasAddress()
	if err != nil {
		return err
	}
	metas, err := s.ledger.GetAccount(addr)
	if err != nil {
		return err
	}
	if metas == nil {
		return fmt.Errorf("extra account metas for %s not initialized", s.transfer.Mint)
	}
	fetch := func(key solana.PublicKey) ([]byte, error) {
		acc, err := s.ledger.GetAccount(key)
		if err != nil || acc == nil {
			return nil, err
		}
		return acc.Data, nil
	}
	extras, err := transferhook.ResolveExtraAccounts(s.programID, metas.Data, s.transfer, amount, fetch)
	if err != nil {
		return err
	}
	ix, err := transferhook.NewExecuteInstruction(s.programID, s.transfer, amount, extras)
	if err != nil {
		return err
	}
	return s.runtime.ExecuteTransferHook(ctx, ix, nil)
}

func (s *simulation) metasAddress() (solana.PublicKey, error) {
	addr, _, err := transferhook.ExtraAccountMetasAddressAndBump(s.transfer.Mint, s.programID)
	return addr, err
}

func parseTokenState(value string) (*gateway.State, error) {
	var st gateway.State
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "active":
		st = gateway.StateActive
	case "frozen":
		st = gateway.StateFrozen
	case "revoked":
		st = gateway.StateRevoked
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown token state %q", value)
	}
	return &st, nil
}

func runSimulateCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath string
		opts       simulateOptions
	)
	fs.StringVar(&configPath, "config", "./hook.toml", "Path to the configuration file")
	fs.StringVar(&opts.Network, "network", "", "Gatekeeper network (defaults to the configured network)")
	fs.StringVar(&opts.TokenState, "token-state", "active", "Destination credential: active, frozen, revoked or none")
	fs.DurationVar(&opts.ExpiresIn, "expires-in", 0, "Credential lifetime relative to now; zero never expires")
	fs.Uint64Var(&opts.Amount, "amount", 100, "Transfer amount")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, simulateUsage())
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load config: %v\n", err)
		return 1
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:     "hook-cli",
		Environment: cfg.Log.Environment,
		Level:       level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Output:      stderr,
	})
	defer logCloser.Close()
	logger.Debug("configuration loaded",
		slog.String("program", cfg.ProgramID),
		logging.MaskField("keypair", cfg.KeypairPath))

	ctx := context.Background()
	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName: "hook-cli",
		Environment: cfg.Log.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: telemetry: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	result, err := simulate(ctx, cfg, opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := writeJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func simulate(ctx context.Context, cfg *config.Config, opts simulateOptions, logger *slog.Logger) (*simulateResult, error) {
	networkValue := opts.Network
	if networkValue == "" {
		networkValue = cfg.GatekeeperNetwork
	}
	if networkValue == "" {
		return nil, errors.New("--network is required when GatekeeperNetwork is not configured")
	}
	network, err := parseKeyArg("network", networkValue)
	if err != nil {
		return nil, err
	}
	tokenState, err := parseTokenState(opts.TokenState)
	if err != nil {
		return nil, err
	}
	authorityKey, err := crypto.LoadKeypair(cfg.KeypairPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ledgerPath := filepath.Join(cfg.DataDir, "simulations", runID)
	if err := os.MkdirAll(filepath.Dir(ledgerPath), 0o755); err != nil {
		return nil, err
	}
	db, err := storage.NewLevelDB(ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	runLogger := logger.With(slog.String("runid", runID))
	sim, err := newSimulation(db, cfg.Program(), authorityKey.PublicKey(), network, runLogger)
	if err != nil {
		return nil, err
	}
	var expiry *int64
	if opts.ExpiresIn != 0 {
		at := sim.runtime.Now() + int64(opts.ExpiresIn/time.Second)
		expiry = &at
	}
	tokenAddr, err := sim.issueCredential(tokenState, expiry)
	if err != nil {
		return nil, err
	}
	metasAddr, err := sim.metasAddress()
	if err != nil {
		return nil, err
	}

	result := &simulateResult{
		RunID:             runID,
		Ledger:            ledgerPath,
		Mint:              sim.transfer.Mint.String(),
		ExtraAccountMetas: metasAddr.String(),
		GatekeeperNetwork: network.String(),
		Destination:       sim.transfer.Destination.String(),
		GatewayToken:      tokenAddr.String(),
		TokenState:        strings.ToLower(strings.TrimSpace(opts.TokenState)),
		Amount:            opts.Amount,
	}
	if result.TokenState == "" {
		result.TokenState = "active"
	}

	if err := sim.initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize extra account metas: %w", err)
	}
	runLogger.Info("extra account metas initialized", slog.String("mint", result.Mint))

	if err := sim.transferHook(ctx, opts.Amount); err != nil {
		stage, ok := transferhook.RejectedAt(err)
		if !ok {
			return nil, fmt.Errorf("transfer: %w", err)
		}
		result.Stage = stage.String()
		result.Kind = hookerrors.KindLabel(err)
		result.Error = err.Error()
	} else {
		result.Admitted = true
	}
	result.Events = sim.recorder.events
	if result.Events == nil {
		result.Events = []*types.Event{}
	}
	return result, nil
}

func simulateUsage() string {
	return strings.TrimSpace(`
Usage: hook-cli simulate [--config FILE] [--network NETWORK] [--token-state active|frozen|revoked|none] [--expires-in DURATION] [--amount N]
`)
}
