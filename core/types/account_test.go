package types

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestNewAccountInfoCopiesData(t *testing.T) {
	owner := solana.PublicKeyFromBytes([]byte{9})
	acc := &Account{Owner: owner, Lamports: 10, Data: []byte{1, 2, 3}}
	info := NewAccountInfo(solana.PublicKeyFromBytes([]byte{1}), acc, true, false)
	info.Data[0] = 0xFF
	if acc.Data[0] != 1 {
		t.Fatalf("account data aliased by info")
	}
	if info.Owner != owner || info.Lamports != 10 || !info.IsSigner || info.IsWritable {
		t.Fatalf("unexpected info: %+v", info)
	}
	back := info.Account()
	if back.Data[0] != 0xFF || back.Owner != owner {
		t.Fatalf("unexpected account: %+v", back)
	}
}

func TestNewAccountInfoMissingAccount(t *testing.T) {
	info := NewAccountInfo(solana.PublicKeyFromBytes([]byte{1}), nil, false, true)
	if info.Owner != solana.SystemProgramID {
		t.Fatalf("expected system owner, got %s", info.Owner)
	}
	if len(info.Data) != 0 || info.Lamports != 0 {
		t.Fatalf("expected empty account: %+v", info)
	}
}

func TestKeys(t *testing.T) {
	a := solana.PublicKeyFromBytes([]byte{1})
	b := solana.PublicKeyFromBytes([]byte{2})
	keys := Keys([]*AccountInfo{{Key: a}, {Key: b}})
	if len(keys) != 2 || keys[0] != a || keys[1] != b {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
