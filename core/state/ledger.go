package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"gatehook/core/types"
	"gatehook/storage"
)

var accountPrefix = []byte("account:")

type accountRecord struct {
	Owner      []byte
	Lamports   uint64
	Data       []byte
	Executable bool
}

func accountKey(key solana.PublicKey) []byte {
	buf := make([]byte, len(accountPrefix)+len(key))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], key[:])
	return ethcrypto.Keccak256(buf)
}

// Ledger persists accounts keyed by address on top of a key-value store.
type Ledger struct {
	db storage.Database
}

func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

// GetAccount returns the account stored under key, or nil when none exists.
func (l *Ledger) GetAccount(key solana.PublicKey) (*types.Account, error) {
	raw, err := l.db.Get(accountKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", key, err)
	}
	var rec accountRecord
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", key, err)
	}
	if len(rec.Owner) != solana.PublicKeyLength {
		return nil, fmt.Errorf("decode account %s: owner is %d bytes", key, len(rec.Owner))
	}
	return &types.Account{
		Owner:      solana.PublicKeyFromBytes(rec.Owner),
		Lamports:   rec.Lamports,
		Data:       rec.Data,
		Executable: rec.Executable,
	}, nil
}

func encodeAccount(acc *types.Account) ([]byte, error) {
	return rlp.EncodeToBytes(&accountRecord{
		Owner:      acc.Owner.Bytes(),
		Lamports:   acc.Lamports,
		Data:       acc.Data,
		Executable: acc.Executable,
	})
}

// PutAccount stores acc under key.
func (l *Ledger) PutAccount(key solana.PublicKey, acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("nil account")
	}
	encoded, err := encodeAccount(acc)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", key, err)
	}
	return l.db.Put(accountKey(key), encoded)
}

// Commit writes every account in one batch. Either all of them become
// visible or none do.
func (l *Ledger) Commit(accounts map[solana.PublicKey]*types.Account) error {
	batch := l.db.NewBatch()
	for key, acc := range accounts {
		if acc == nil {
			batch.Delete(accountKey(key))
			continue
		}
		encoded, err := encodeAccount(acc)
		if err != nil {
			return fmt.Errorf("encode account %s: %w", key, err)
		}
		batch.Put(accountKey(key), encoded)
	}
	if batch.Len() == 0 {
		return nil
	}
	return batch.Write()
}
