package token

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
)

func key(fill byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{fill}, 32))
}

func TestMintRoundTrip(t *testing.T) {
	authority := key(1)
	hookProgram := key(9)
	mint := &Mint{
		MintAuthority: &authority,
		Supply:        1_000,
		Decimals:      6,
		IsInitialized: true,
		Extensions:    []Extension{TransferHookExtension(authority, hookProgram)},
	}
	data := PackMint(mint)
	if len(data) != AccountLength+1+4+64 {
		t.Fatalf("unexpected extended mint length %d", len(data))
	}
	decoded, err := UnpackMint(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if decoded.MintAuthority == nil || *decoded.MintAuthority != authority {
		t.Fatalf("mint authority not preserved")
	}
	if decoded.FreezeAuthority != nil || decoded.Supply != 1_000 || decoded.Decimals != 6 {
		t.Fatalf("unexpected mint: %+v", decoded)
	}
	if id, ok := decoded.TransferHookProgramID(); !ok || id != hookProgram {
		t.Fatalf("unexpected hook program %s", id)
	}
}

func TestUnpackMintBaseOnly(t *testing.T) {
	data := PackMint(&Mint{IsInitialized: true, Decimals: 2})
	if len(data) != MintLength {
		t.Fatalf("unexpected base mint length %d", len(data))
	}
	decoded, err := UnpackMint(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if decoded.MintAuthority != nil {
		t.Fatalf("expected no mint authority")
	}
}

func TestUnpackMintErrors(t *testing.T) {
	if _, err := UnpackMint(make([]byte, 10)); !errors.Is(err, hookerrors.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	if _, err := UnpackMint(PackMint(&Mint{})); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("expected ErrUninitialized, got %v", err)
	}
	account := PackAccount(&Account{State: AccountStateInitialized, Extensions: []Extension{TransferHookAccountExtension(true)}})
	if _, err := UnpackMint(account); !errors.Is(err, ErrInvalidAccountData) {
		t.Fatalf("expected account data to be rejected as mint, got %v", err)
	}
}

func TestAccountTransferringFlag(t *testing.T) {
	acc := &Account{
		Mint:       key(2),
		Owner:      key(3),
		Amount:     50,
		State:      AccountStateInitialized,
		Extensions: []Extension{{Type: ExtensionImmutableOwner}, TransferHookAccountExtension(false)},
	}
	data := PackAccount(acc)
	transferring, err := IsTransferring(data)
	if err != nil {
		t.Fatalf("is transferring: %v", err)
	}
	if transferring {
		t.Fatalf("expected transferring to be false")
	}
	if err := SetTransferring(data, true); err != nil {
		t.Fatalf("set transferring: %v", err)
	}
	transferring, err = IsTransferring(data)
	if err != nil || !transferring {
		t.Fatalf("expected transferring after set, got %v (%v)", transferring, err)
	}
	decoded, err := UnpackAccount(data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if decoded.Mint != key(2) || decoded.Owner != key(3) || decoded.Amount != 50 {
		t.Fatalf("unexpected account: %+v", decoded)
	}
}

func TestTransferringRequiresExtension(t *testing.T) {
	data := PackAccount(&Account{State: AccountStateInitialized})
	if len(data) != AccountLength {
		t.Fatalf("unexpected base account length %d", len(data))
	}
	if _, err := IsTransferring(data); !errors.Is(err, ErrExtensionNotFound) {
		t.Fatalf("expected ErrExtensionNotFound, got %v", err)
	}
	if err := SetTransferring(data, true); !errors.Is(err, ErrExtensionNotFound) {
		t.Fatalf("expected ErrExtensionNotFound, got %v", err)
	}
	if _, err := IsTransferring(PackAccount(&Account{})); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("expected ErrUninitialized, got %v", err)
	}
}
