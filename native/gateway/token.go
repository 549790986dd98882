package gateway

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	hookerrors "gatehook/core/errors"
	"gatehook/crypto"
)

// ProgramID owns every gateway token account.
var ProgramID = crypto.MustDecodePublicKey("gatem74V238djXdzWnJf94Wo1DcnuGkfijbf3AuBhfs")

// TokenAddressSeed is the literal seed of a gateway token address.
var TokenAddressSeed = []byte("gateway")

// State is the validity state recorded on a gateway token.
type State uint8

const (
	StateActive  State = 0
	StateFrozen  State = 1
	StateRevoked State = 2
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFrozen:
		return "frozen"
	case StateRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Feature flags carried in GatewayToken.Features.
const (
	FeatureExpirable uint8 = 1 << 0
)

var ErrInvalidTokenData = hookerrors.New(hookerrors.ErrCredentialInvalid, "gateway: invalid gateway token data")

// GatewayToken is the credential record issued by a gatekeeper network to a
// holder. Optional fields are nil when absent.
type GatewayToken struct {
	Features           uint8
	ParentGatewayToken *solana.PublicKey
	OwnerWallet        solana.PublicKey
	OwnerIdentity      *solana.PublicKey
	GatekeeperNetwork  solana.PublicKey
	IssuingGatekeeper  solana.PublicKey
	State              State
	ExpireTime         *int64
}

func readOption(dec *bin.Decoder) (bool, error) {
	tag, err := dec.ReadUint8()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: option tag %d", ErrInvalidTokenData, tag)
	}
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}

func readOptionalKey(dec *bin.Decoder) (*solana.PublicKey, error) {
	present, err := readOption(dec)
	if err != nil || !present {
		return nil, err
	}
	key, err := readKey(dec)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// Unpack decodes a gateway token. Trailing bytes beyond the record are
// ignored since token accounts may be allocated larger than the record.
func Unpack(data []byte) (*GatewayToken, error) {
	dec := bin.NewBorshDecoder(data)
	tok := &GatewayToken{}
	var err error
	wrap := func(field string, err error) error {
		if hookerrors.Kind(err) != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidTokenData, field, err)
	}
	if tok.Features, err = dec.ReadUint8(); err != nil {
		return nil, wrap("features", err)
	}
	if tok.ParentGatewayToken, err = readOptionalKey(dec); err != nil {
		return nil, wrap("parent", err)
	}
	if tok.OwnerWallet, err = readKey(dec); err != nil {
		return nil, wrap("owner wallet", err)
	}
	if tok.OwnerIdentity, err = readOptionalKey(dec); err != nil {
		return nil, wrap("owner identity", err)
	}
	if tok.GatekeeperNetwork, err = readKey(dec); err != nil {
		return nil, wrap("gatekeeper network", err)
	}
	if tok.IssuingGatekeeper, err = readKey(dec); err != nil {
		return nil, wrap("issuing gatekeeper", err)
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return nil, wrap("state", err)
	}
	tok.State = State(state)
	if tok.State > StateRevoked {
		return nil, fmt.Errorf("%w: state %d", ErrInvalidTokenData, state)
	}
	present, err := readOption(dec)
	if err != nil {
		return nil, wrap("expire time", err)
	}
	if present {
		expiry, err := dec.ReadInt64(binary.LittleEndian)
		if err != nil {
			return nil, wrap("expire time", err)
		}
		tok.ExpireTime = &expiry
	}
	return tok, nil
}

func writeOptionalKey(enc *bin.Encoder, key *solana.PublicKey) {
	if key == nil {
		_ = enc.WriteUint8(0)
		return
	}
	_ = enc.WriteUint8(1)
	_ = enc.WriteBytes(key[:], false)
}

// Pack encodes the token in the gateway program's borsh layout.
func (t *GatewayToken) Pack() []byte {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	_ = enc.WriteUint8(t.Features)
	writeOptionalKey(enc, t.ParentGatewayToken)
	_ = enc.WriteBytes(t.OwnerWallet[:], false)
	writeOptionalKey(enc, t.OwnerIdentity)
	_ = enc.WriteBytes(t.GatekeeperNetwork[:], false)
	_ = enc.WriteBytes(t.IssuingGatekeeper[:], false)
	_ = enc.WriteUint8(uint8(t.State))
	if t.ExpireTime == nil {
		_ = enc.WriteUint8(0)
	} else {
		_ = enc.WriteUint8(1)
		_ = enc.WriteInt64(*t.ExpireTime, binary.LittleEndian)
	}
	return buf.Bytes()
}

// DeriveTokenAddress returns the gateway token address for holder under
// network, using the zero seed index.
func DeriveTokenAddress(holder, network solana.PublicKey) (solana.PublicKey, uint8, error) {
	return DeriveTokenAddressWithIndex(holder, network, 0)
}

// DeriveTokenAddressWithIndex returns the gateway token address for holder
// under network at the given seed index.
func DeriveTokenAddressWithIndex(holder, network solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, index)
	return crypto.FindProgramAddress([][]byte{holder[:], TokenAddressSeed, seed, network[:]}, ProgramID)
}
