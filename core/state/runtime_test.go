package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	hookerrors "gatehook/core/errors"
	"gatehook/core/types"
	"gatehook/native/accountmeta"
	"gatehook/native/gateway"
	"gatehook/native/token"
	"gatehook/native/transferhook"
	"gatehook/storage"
)

const testNow = int64(1_700_000_000)

type harness struct {
	runtime   *Runtime
	ledger    *Ledger
	transfer  transferhook.TransferAccounts
	authority solana.PublicKey
	network   solana.PublicKey
}

func tokenAccount(mint, owner solana.PublicKey) *types.Account {
	return &types.Account{
		Owner:    token.ProgramID,
		Lamports: 1,
		Data: token.PackAccount(&token.Account{
			Mint:       mint,
			Owner:      owner,
			Amount:     500,
			State:      token.AccountStateInitialized,
			Extensions: []token.Extension{token.TransferHookAccountExtension(false)},
		}),
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:    NewLedger(storage.NewMemDB()),
		authority: key(2),
		network:   key(3),
		transfer: transferhook.TransferAccounts{
			Source:      key(4),
			Mint:        key(1),
			Destination: key(5),
			Authority:   key(6),
		},
	}
	h.runtime = NewRuntime(h.ledger)
	h.runtime.SetNowFunc(func() int64 { return testNow })

	processor := transferhook.NewProcessor(transferhook.ProgramID)
	processor.SetHost(h.runtime)
	require.NoError(t, h.runtime.RegisterProgram(transferhook.ProgramID, processor))

	mint := token.PackMint(&token.Mint{
		MintAuthority: &h.authority,
		Decimals:      6,
		IsInitialized: true,
		Extensions:    []token.Extension{token.TransferHookExtension(h.authority, transferhook.ProgramID)},
	})
	require.NoError(t, h.ledger.PutAccount(h.transfer.Mint, &types.Account{Owner: token.ProgramID, Lamports: 1, Data: mint}))
	require.NoError(t, h.ledger.PutAccount(h.authority, &types.Account{Owner: solana.SystemProgramID, Lamports: 1_000_000_000}))
	require.NoError(t, h.ledger.PutAccount(h.transfer.Source, tokenAccount(h.transfer.Mint, h.transfer.Authority)))
	require.NoError(t, h.ledger.PutAccount(h.transfer.Destination, tokenAccount(h.transfer.Mint, key(7))))
	return h
}

func (h *harness) issueToken(t *testing.T, state gateway.State, expiry *int64) {
	t.Helper()
	addr, _, err := gateway.DeriveTokenAddress(h.transfer.Destination, h.network)
	require.NoError(t, err)
	tok := &gateway.GatewayToken{
		OwnerWallet:       h.transfer.Destination,
		GatekeeperNetwork: h.network,
		IssuingGatekeeper: key(8),
		State:             state,
		ExpireTime:        expiry,
	}
	require.NoError(t, h.ledger.PutAccount(addr, &types.Account{Owner: gateway.ProgramID, Lamports: 1, Data: tok.Pack()}))
}

func (h *harness) initialize(ctx context.Context) error {
	ix, err := transferhook.NewInitializeExtraAccountMetasInstruction(transferhook.ProgramID, h.transfer.Mint, h.authority, h.network)
	if err != nil {
		return err
	}
	return h.runtime.Execute(ctx, ix, []solana.PublicKey{h.authority})
}

func (h *harness) transferIx(t *testing.T) solana.Instruction {
	t.Helper()
	extras, err := transferhook.TransferExtraAccounts(transferhook.ProgramID, h.transfer, h.network)
	require.NoError(t, err)
	ix, err := transferhook.NewExecuteInstruction(transferhook.ProgramID, h.transfer, 100, extras)
	require.NoError(t, err)
	return ix
}

func TestRuntimeInitializeChargesRent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.initialize(context.Background()))

	metas, err := h.ledger.GetAccount(transferhook.ExtraAccountMetasAddress(h.transfer.Mint))
	require.NoError(t, err)
	require.NotNil(t, metas)
	require.Equal(t, transferhook.ProgramID, metas.Owner)
	require.Len(t, metas.Data, 121)
	require.Equal(t, RentExemptMinimum(121), metas.Lamports)

	payer, err := h.ledger.GetAccount(h.authority)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000)-RentExemptMinimum(121), payer.Lamports)
}

func TestRuntimeRejectedInitializeLeavesNoState(t *testing.T) {
	h := newHarness(t)
	h.authority = key(9)
	require.NoError(t, h.ledger.PutAccount(h.authority, &types.Account{Lamports: 1_000_000_000}))

	err := h.initialize(context.Background())
	require.ErrorIs(t, err, transferhook.ErrIncorrectMintAuthority)

	metas, err := h.ledger.GetAccount(transferhook.ExtraAccountMetasAddress(h.transfer.Mint))
	require.NoError(t, err)
	require.Nil(t, metas)
}

func TestRuntimeRequiresSignature(t *testing.T) {
	h := newHarness(t)
	ix, err := transferhook.NewInitializeExtraAccountMetasInstruction(transferhook.ProgramID, h.transfer.Mint, h.authority, h.network)
	require.NoError(t, err)
	err = h.runtime.Execute(context.Background(), ix, nil)
	require.ErrorIs(t, err, ErrMissingSignature)
}

func TestRuntimeSecondInitializationKeepsFirstList(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.initialize(context.Background()))
	addr := transferhook.ExtraAccountMetasAddress(h.transfer.Mint)
	before, err := h.ledger.GetAccount(addr)
	require.NoError(t, err)
	require.NotNil(t, before)

	h.network = key(0x99)
	err = h.initialize(context.Background())
	require.ErrorIs(t, err, hookerrors.ErrAllocationConflict)

	after, err := h.ledger.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, before.Data, after.Data)
}

func TestRuntimeConcurrentInitialization(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.initialize(context.Background())
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, hookerrors.ErrAllocationConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, conflicted)

	acc, err := h.ledger.GetAccount(transferhook.ExtraAccountMetasAddress(h.transfer.Mint))
	require.NoError(t, err)
	require.NotNil(t, acc)
	metas, err := accountmeta.Decode(acc.Data, transferhook.ExecuteDiscriminator)
	require.NoError(t, err)
	require.Len(t, metas, 3)
}

func TestRuntimeTransferAdmitted(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.initialize(context.Background()))
	expiry := testNow + 60
	h.issueToken(t, gateway.StateActive, &expiry)

	require.NoError(t, h.runtime.ExecuteTransferHook(context.Background(), h.transferIx(t), nil))

	// Transfer flags never reach the ledger.
	for _, addr := range []solana.PublicKey{h.transfer.Source, h.transfer.Destination} {
		acc, err := h.ledger.GetAccount(addr)
		require.NoError(t, err)
		transferring, err := token.IsTransferring(acc.Data)
		require.NoError(t, err)
		require.False(t, transferring)
	}
}

func TestRuntimeTransferRejected(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.initialize(context.Background()))
	h.issueToken(t, gateway.StateFrozen, nil)

	err := h.runtime.ExecuteTransferHook(context.Background(), h.transferIx(t), nil)
	require.ErrorIs(t, err, gateway.ErrTokenFrozen)
	stage, ok := transferhook.RejectedAt(err)
	require.True(t, ok)
	require.Equal(t, transferhook.StageExtraAccountsVerified, stage)
}

func TestRuntimeTransferWithoutCredential(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.initialize(context.Background()))

	err := h.runtime.ExecuteTransferHook(context.Background(), h.transferIx(t), nil)
	require.ErrorIs(t, err, gateway.ErrTokenMissing)
	require.ErrorIs(t, err, hookerrors.ErrCredentialInvalid)
}

func TestRuntimeExecuteOutsideTransfer(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.initialize(context.Background()))
	h.issueToken(t, gateway.StateActive, nil)

	err := h.runtime.Execute(context.Background(), h.transferIx(t), nil)
	require.ErrorIs(t, err, transferhook.ErrProgramCalledOutsideOfTransfer)
}

func TestRuntimeUnknownProgram(t *testing.T) {
	h := newHarness(t)
	ix := solana.NewInstruction(key(0x77), solana.AccountMetaSlice{}, nil)
	err := h.runtime.Execute(context.Background(), ix, nil)
	require.ErrorIs(t, err, ErrUnknownProgram)
}

func TestRentExemptMinimum(t *testing.T) {
	require.Equal(t, uint64(890_880), RentExemptMinimum(0))
	require.Equal(t, uint64((128+121)*3480*2), RentExemptMinimum(121))
}
