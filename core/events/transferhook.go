package events

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"gatehook/core/types"
)

const (
	// TypeMetasInitialized is emitted once a mint's extra account list is
	// written.
	TypeMetasInitialized = "transferhook.metas_initialized"
	// TypeTransferAdmitted is emitted when a transfer passes verification.
	TypeTransferAdmitted = "transferhook.transfer_admitted"
	// TypeTransferRejected is emitted when verification fails.
	TypeTransferRejected = "transferhook.transfer_rejected"
)

type MetasInitialized struct {
	Mint              solana.PublicKey
	ExtraAccountMetas solana.PublicKey
	GatekeeperNetwork solana.PublicKey
	Authority         solana.PublicKey
	Count             int
}

func (MetasInitialized) EventType() string { return TypeMetasInitialized }

func (e MetasInitialized) Event() *types.Event {
	return &types.Event{Type: TypeMetasInitialized, Attributes: map[string]string{
		"mint":              e.Mint.String(),
		"extraAccountMetas": e.ExtraAccountMetas.String(),
		"gatekeeperNetwork": e.GatekeeperNetwork.String(),
		"authority":         e.Authority.String(),
		"count":             strconv.Itoa(e.Count),
	}}
}

type TransferAdmitted struct {
	Mint        solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
}

func (TransferAdmitted) EventType() string { return TypeTransferAdmitted }

func (e TransferAdmitted) Event() *types.Event {
	return &types.Event{Type: TypeTransferAdmitted, Attributes: map[string]string{
		"mint":        e.Mint.String(),
		"source":      e.Source.String(),
		"destination": e.Destination.String(),
		"amount":      strconv.FormatUint(e.Amount, 10),
	}}
}

// TransferRejected carries the stage verification reached and the failure
// kind. Keys that were not supplied are left zero and omitted.
type TransferRejected struct {
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
	Stage       string
	Kind        string
	Reason      string
}

func (TransferRejected) EventType() string { return TypeTransferRejected }

func (e TransferRejected) Event() *types.Event {
	attrs := map[string]string{
		"amount": strconv.FormatUint(e.Amount, 10),
		"stage":  e.Stage,
		"kind":   e.Kind,
	}
	if !e.Mint.IsZero() {
		attrs["mint"] = e.Mint.String()
	}
	if !e.Destination.IsZero() {
		attrs["destination"] = e.Destination.String()
	}
	if e.Reason != "" {
		attrs["reason"] = e.Reason
	}
	return &types.Event{Type: TypeTransferRejected, Attributes: attrs}
}
