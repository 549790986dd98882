package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"

	"gatehook/crypto"
	"gatehook/native/transferhook"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "address":
		return runAddressCommand(args[1:], stdout, stderr)
	case "set":
		return runSetCommand(args[1:], stdout, stderr)
	case "accounts":
		return runAccountsCommand(args[1:], stdout, stderr)
	case "gateway-token":
		return runGatewayTokenCommand(args[1:], stdout, stderr)
	case "inspect":
		return runInspectCommand(args[1:], stdout, stderr)
	case "simulate":
		return runSimulateCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n%s\n", args[0], usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: hook-cli <command> [arguments]

Commands:
  address MINT                   - Derives the extra-account-metas address of a mint
  set MINT NETWORK               - Builds the instruction gating MINT behind NETWORK
  accounts MINT DEST NETWORK     - Lists the extra accounts a transfer must carry
  gateway-token HOLDER NETWORK   - Derives the gateway token address of a holder
  inspect DATA                   - Decodes an extra-account-metas list (hex or base64)
  simulate                       - Runs initialization and a transfer against a local ledger
`)
}

// parseKeyArg decodes a positional public key, naming it in the error.
func parseKeyArg(name, value string) (solana.PublicKey, error) {
	key, err := crypto.DecodePublicKey(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return key, nil
}

func parseProgramFlag(value string) (solana.PublicKey, error) {
	if strings.TrimSpace(value) == "" {
		return transferhook.ProgramID, nil
	}
	return parseKeyArg("--program", value)
}

func writeJSON(w io.Writer, v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

type accountMetaJSON struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

func formatAccountMetas(metas solana.AccountMetaSlice) []accountMetaJSON {
	out := make([]accountMetaJSON, 0, len(metas))
	for _, meta := range metas {
		out = append(out, accountMetaJSON{
			Pubkey:     meta.PublicKey.String(),
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		})
	}
	return out
}
