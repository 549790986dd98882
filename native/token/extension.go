package token

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ExtensionType identifies a TLV extension entry.
type ExtensionType uint16

const (
	ExtensionUninitialized       ExtensionType = 0
	ExtensionImmutableOwner      ExtensionType = 7
	ExtensionTransferHook        ExtensionType = 14
	ExtensionTransferHookAccount ExtensionType = 15
)

// Extension is one raw TLV entry.
type Extension struct {
	Type  ExtensionType
	Value []byte
}

func parseExtensions(region []byte) ([]Extension, error) {
	if len(region) == 0 {
		return nil, nil
	}
	var out []Extension
	dec := bin.NewBinDecoder(region)
	for dec.Remaining() >= 4 {
		kind, err := dec.ReadUint16(binary.LittleEndian)
		if err != nil {
			return nil, err
		}
		length, err := dec.ReadUint16(binary.LittleEndian)
		if err != nil {
			return nil, err
		}
		if ExtensionType(kind) == ExtensionUninitialized {
			break
		}
		if int(length) > dec.Remaining() {
			return nil, fmt.Errorf("%w: extension %d length %d overruns data", ErrInvalidAccountData, kind, length)
		}
		value, err := dec.ReadNBytes(int(length))
		if err != nil {
			return nil, err
		}
		out = append(out, Extension{Type: ExtensionType(kind), Value: append([]byte(nil), value...)})
	}
	return out, nil
}

func writeExtensions(enc *bin.Encoder, exts []Extension) {
	for _, ext := range exts {
		_ = enc.WriteUint16(uint16(ext.Type), binary.LittleEndian)
		_ = enc.WriteUint16(uint16(len(ext.Value)), binary.LittleEndian)
		_ = enc.WriteBytes(ext.Value, false)
	}
}

func findExtension(exts []Extension, kind ExtensionType) (Extension, bool) {
	for _, ext := range exts {
		if ext.Type == kind {
			return ext, true
		}
	}
	return Extension{}, false
}

// TransferHookAccountExtension returns the account extension carrying the
// transferring flag.
func TransferHookAccountExtension(transferring bool) Extension {
	value := []byte{0}
	if transferring {
		value[0] = 1
	}
	return Extension{Type: ExtensionTransferHookAccount, Value: value}
}

// TransferHookExtension returns the mint extension naming the hook program.
// A zero authority or program id is stored as "none".
func TransferHookExtension(authority, programID solana.PublicKey) Extension {
	value := make([]byte, 64)
	copy(value[:32], authority[:])
	copy(value[32:], programID[:])
	return Extension{Type: ExtensionTransferHook, Value: value}
}

// TransferHookProgramID returns the hook program configured on the mint.
func (m *Mint) TransferHookProgramID() (solana.PublicKey, bool) {
	ext, ok := findExtension(m.Extensions, ExtensionTransferHook)
	if !ok || len(ext.Value) != 64 {
		return solana.PublicKey{}, false
	}
	id := solana.PublicKeyFromBytes(ext.Value[32:])
	if id.IsZero() {
		return solana.PublicKey{}, false
	}
	return id, true
}

// Transferring reports the transfer hook flag of the account.
func (a *Account) Transferring() (bool, error) {
	ext, ok := findExtension(a.Extensions, ExtensionTransferHookAccount)
	if !ok {
		return false, fmt.Errorf("%w: transfer hook account", ErrExtensionNotFound)
	}
	if len(ext.Value) != 1 {
		return false, fmt.Errorf("%w: transfer hook account extension is %d bytes", ErrInvalidAccountData, len(ext.Value))
	}
	return ext.Value[0] != 0, nil
}

// IsTransferring unpacks a token account and reports its transferring flag.
func IsTransferring(data []byte) (bool, error) {
	acc, err := UnpackAccount(data)
	if err != nil {
		return false, err
	}
	return acc.Transferring()
}

// SetTransferring flips the transferring flag of the token account in data in
// place. The token program sets it around the hook invocation.
func SetTransferring(data []byte, transferring bool) error {
	if len(data) <= accountTypeOffset {
		return fmt.Errorf("%w: transfer hook account", ErrExtensionNotFound)
	}
	if _, err := UnpackAccount(data); err != nil {
		return err
	}
	offset := accountTypeOffset + 1
	for offset+4 <= len(data) {
		kind := ExtensionType(binary.LittleEndian.Uint16(data[offset:]))
		length := int(binary.LittleEndian.Uint16(data[offset+2:]))
		if kind == ExtensionUninitialized {
			break
		}
		if kind == ExtensionTransferHookAccount && length == 1 {
			if transferring {
				data[offset+4] = 1
			} else {
				data[offset+4] = 0
			}
			return nil
		}
		offset += 4 + length
	}
	return fmt.Errorf("%w: transfer hook account", ErrExtensionNotFound)
}
