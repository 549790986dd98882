package types

import "github.com/gagliardetto/solana-go"

// Account is the persisted record stored by the ledger for every address.
type Account struct {
	Owner      solana.PublicKey `json:"owner"`
	Lamports   uint64           `json:"lamports"`
	Data       []byte           `json:"data"`
	Executable bool             `json:"executable"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = append([]byte(nil), a.Data...)
	return &clone
}

// AccountInfo is the view of an account handed to a program for the duration
// of one instruction. Data is the live working buffer; the host decides
// whether modifications are committed.
type AccountInfo struct {
	Key        solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool
	Executable bool
}

// NewAccountInfo builds an instruction view of acc. A nil acc yields an empty
// system-owned account.
func NewAccountInfo(key solana.PublicKey, acc *Account, signer, writable bool) *AccountInfo {
	info := &AccountInfo{
		Key:        key,
		Owner:      solana.SystemProgramID,
		IsSigner:   signer,
		IsWritable: writable,
	}
	if acc != nil {
		info.Owner = acc.Owner
		info.Lamports = acc.Lamports
		info.Data = append([]byte(nil), acc.Data...)
		info.Executable = acc.Executable
	}
	return info
}

// Account converts the view back into a persisted record.
func (a *AccountInfo) Account() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Owner:      a.Owner,
		Lamports:   a.Lamports,
		Data:       append([]byte(nil), a.Data...),
		Executable: a.Executable,
	}
}

// Keys returns the addresses of infos in order.
func Keys(infos []*AccountInfo) []solana.PublicKey {
	keys := make([]solana.PublicKey, len(infos))
	for i, info := range infos {
		if info != nil {
			keys[i] = info.Key
		}
	}
	return keys
}
