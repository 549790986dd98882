package transferhook

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"gatehook/crypto"
	"gatehook/native/accountmeta"
	"gatehook/native/gateway"
)

// ProgramID is the deployed address of the credential-gated transfer hook.
var ProgramID = crypto.MustDecodePublicKey("cto22FHACEgis1zXbY4QJo5Rj6soAQguh1686nZJfNY")

// ExtraAccountMetasSeed prefixes the seeds of a mint's descriptor account.
var ExtraAccountMetasSeed = []byte("extra-account-metas")

var (
	// ExecuteDiscriminator tags Execute instruction data and the stored list
	// of accounts Execute requires.
	ExecuteDiscriminator = accountmeta.NewDiscriminator("spl-transfer-hook-interface:execute")
	// InitializeExtraAccountMetasDiscriminator tags the initialization
	// instruction.
	InitializeExtraAccountMetasDiscriminator = accountmeta.NewDiscriminator("spl-transfer-hook-interface:initialize-extra-account-metas")
)

// Base account positions of the Execute instruction.
const (
	ExecuteSourceIndex = iota
	ExecuteMintIndex
	ExecuteDestinationIndex
	ExecuteAuthorityIndex
	ExecuteExtraAccountMetasIndex
	// ExecuteBaseAccounts is the number of accounts preceding the extras.
	ExecuteBaseAccounts
)

// Positions of the extras written by InitializeExtraAccountMetas.
const (
	extraGatekeeperNetwork = iota
	extraGatewayProgram
	extraGatewayToken
	extraAccountCount
)

// InstructionKind enumerates the instructions the program accepts.
type InstructionKind uint8

const (
	InstructionExecute InstructionKind = iota + 1
	InstructionInitializeExtraAccountMetas
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionExecute:
		return "execute"
	case InstructionInitializeExtraAccountMetas:
		return "initialize_extra_account_metas"
	default:
		return "unknown"
	}
}

// Instruction is a decoded program instruction. Amount is set for Execute and
// GatekeeperNetwork for InitializeExtraAccountMetas.
type Instruction struct {
	Kind              InstructionKind
	Amount            uint64
	GatekeeperNetwork solana.PublicKey
}

// ParseInstruction decodes instruction data. Execute is matched first; any
// data that matches neither instruction is rejected.
func ParseInstruction(data []byte) (Instruction, error) {
	if len(data) < accountmeta.DiscriminatorLength {
		return Instruction{}, fmt.Errorf("%w: %d bytes", ErrInvalidInstructionData, len(data))
	}
	var tag accountmeta.Discriminator
	copy(tag[:], data)
	dec := bin.NewBinDecoder(data[accountmeta.DiscriminatorLength:])
	switch tag {
	case ExecuteDiscriminator:
		amount, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return Instruction{}, fmt.Errorf("%w: execute amount: %v", ErrInvalidInstructionData, err)
		}
		return Instruction{Kind: InstructionExecute, Amount: amount}, nil
	case InitializeExtraAccountMetasDiscriminator:
		// Bytes past the network are ignored.
		if dec.Remaining() < solana.PublicKeyLength {
			return Instruction{}, fmt.Errorf("%w: gatekeeper network is %d bytes", ErrInvalidInstructionData, dec.Remaining())
		}
		raw, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return Instruction{}, fmt.Errorf("%w: gatekeeper network: %v", ErrInvalidInstructionData, err)
		}
		return Instruction{Kind: InstructionInitializeExtraAccountMetas, GatekeeperNetwork: solana.PublicKeyFromBytes(raw)}, nil
	default:
		return Instruction{}, fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstructionData, tag[:])
	}
}

// Pack encodes the instruction data.
func (ix Instruction) Pack() []byte {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	switch ix.Kind {
	case InstructionExecute:
		_ = enc.WriteBytes(ExecuteDiscriminator[:], false)
		_ = enc.WriteUint64(ix.Amount, binary.LittleEndian)
	case InstructionInitializeExtraAccountMetas:
		_ = enc.WriteBytes(InitializeExtraAccountMetasDiscriminator[:], false)
		_ = enc.WriteBytes(ix.GatekeeperNetwork[:], false)
	}
	return buf.Bytes()
}

// ExtraAccountMetasAddress returns the descriptor account of mint under the
// deployed program.
func ExtraAccountMetasAddress(mint solana.PublicKey) solana.PublicKey {
	addr, _, err := ExtraAccountMetasAddressAndBump(mint, ProgramID)
	if err != nil {
		panic(err)
	}
	return addr
}

// ExtraAccountMetasAddressAndBump derives the descriptor account of mint under
// programID together with its bump seed.
func ExtraAccountMetasAddressAndBump(mint, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return crypto.FindProgramAddress(extraAccountMetasSeeds(mint), programID)
}

func extraAccountMetasSeeds(mint solana.PublicKey) [][]byte {
	return [][]byte{ExtraAccountMetasSeed, mint[:]}
}

// ExtraAccountMetas returns the descriptor list stored for a mint gated by
// network: the network, the gateway program and the destination's gateway
// token derived under the gateway program.
func ExtraAccountMetas(network solana.PublicKey) []accountmeta.ExtraAccountMeta {
	gatewayToken, err := accountmeta.NewExternalDerived(
		ExecuteBaseAccounts+extraGatewayProgram,
		[]accountmeta.Seed{
			accountmeta.AccountKey(ExecuteDestinationIndex),
			accountmeta.Literal(gateway.TokenAddressSeed),
			accountmeta.Literal(make([]byte, 8)),
			accountmeta.AccountKey(ExecuteBaseAccounts + extraGatekeeperNetwork),
		},
		false, false,
	)
	if err != nil {
		panic(err)
	}
	return []accountmeta.ExtraAccountMeta{
		accountmeta.NewFixed(network, false, false),
		accountmeta.NewFixed(gateway.ProgramID, false, false),
		gatewayToken,
	}
}

// NewInitializeExtraAccountMetasInstruction builds the instruction that
// records the extra accounts of mint. authority must be the mint authority
// and pays for the descriptor account.
func NewInitializeExtraAccountMetasInstruction(programID, mint, authority, network solana.PublicKey) (*solana.GenericInstruction, error) {
	metas, _, err := ExtraAccountMetasAddressAndBump(mint, programID)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(metas, true, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	data := Instruction{Kind: InstructionInitializeExtraAccountMetas, GatekeeperNetwork: network}.Pack()
	return solana.NewInstruction(programID, accounts, data), nil
}

// TransferAccounts are the base accounts of a token transfer.
type TransferAccounts struct {
	Source      solana.PublicKey
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
}

func (t TransferAccounts) base(programID solana.PublicKey) ([]solana.PublicKey, error) {
	metas, _, err := ExtraAccountMetasAddressAndBump(t.Mint, programID)
	if err != nil {
		return nil, err
	}
	return []solana.PublicKey{t.Source, t.Mint, t.Destination, t.Authority, metas}, nil
}

// NewExecuteInstruction builds the Execute instruction the token program
// issues during a transfer. extras must already be resolved.
func NewExecuteInstruction(programID solana.PublicKey, accounts TransferAccounts, amount uint64, extras solana.AccountMetaSlice) (*solana.GenericInstruction, error) {
	base, err := accounts.base(programID)
	if err != nil {
		return nil, err
	}
	metas := make(solana.AccountMetaSlice, 0, len(base)+len(extras))
	for _, key := range base {
		metas = append(metas, solana.NewAccountMeta(key, false, false))
	}
	metas = append(metas, extras...)
	data := Instruction{Kind: InstructionExecute, Amount: amount}.Pack()
	return solana.NewInstruction(programID, metas, data), nil
}

// ResolveExtraAccounts resolves the extras a transfer must carry from the
// list stored in the mint's descriptor account.
func ResolveExtraAccounts(programID solana.PublicKey, list []byte, accounts TransferAccounts, amount uint64, fetch accountmeta.DataFetcher) (solana.AccountMetaSlice, error) {
	base, err := accounts.base(programID)
	if err != nil {
		return nil, err
	}
	data := Instruction{Kind: InstructionExecute, Amount: amount}.Pack()
	return accountmeta.Resolve(list, ExecuteDiscriminator, base, data, programID, fetch)
}

// TransferExtraAccounts resolves the extras for a transfer of a mint gated by
// network without reading the descriptor account.
func TransferExtraAccounts(programID solana.PublicKey, accounts TransferAccounts, network solana.PublicKey) (solana.AccountMetaSlice, error) {
	list := accountmeta.Encode(ExecuteDiscriminator, ExtraAccountMetas(network))
	return ResolveExtraAccounts(programID, list, accounts, 0, nil)
}
