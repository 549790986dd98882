package state

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"gatehook/core/types"
	"gatehook/storage"
)

func key(fill byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(bytes.Repeat([]byte{fill}, 32))
}

func TestLedgerAccountRoundTrip(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())

	missing, err := ledger.GetAccount(key(1))
	require.NoError(t, err)
	require.Nil(t, missing)

	acc := &types.Account{Owner: key(2), Lamports: 99, Data: []byte{1, 2, 3}, Executable: true}
	require.NoError(t, ledger.PutAccount(key(1), acc))

	loaded, err := ledger.GetAccount(key(1))
	require.NoError(t, err)
	require.Equal(t, acc.Owner, loaded.Owner)
	require.Equal(t, acc.Lamports, loaded.Lamports)
	require.Equal(t, acc.Data, loaded.Data)
	require.True(t, loaded.Executable)
}

func TestLedgerCommit(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	require.NoError(t, ledger.PutAccount(key(3), &types.Account{Owner: key(9), Lamports: 1}))

	err := ledger.Commit(map[solana.PublicKey]*types.Account{
		key(1): {Owner: key(9), Lamports: 10},
		key(2): {Owner: key(9), Lamports: 20},
		key(3): nil,
	})
	require.NoError(t, err)

	for fill, lamports := range map[byte]uint64{1: 10, 2: 20} {
		acc, err := ledger.GetAccount(key(fill))
		require.NoError(t, err)
		require.NotNil(t, acc)
		require.Equal(t, lamports, acc.Lamports)
	}
	deleted, err := ledger.GetAccount(key(3))
	require.NoError(t, err)
	require.Nil(t, deleted)

	require.NoError(t, ledger.Commit(nil))
}

func TestAccountKeysAreDistinct(t *testing.T) {
	require.NotEqual(t, accountKey(key(1)), accountKey(key(2)))
	require.Len(t, accountKey(key(1)), 32)
}
