package main

import (
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"

	"gatehook/crypto"
	"gatehook/native/accountmeta"
	"gatehook/native/transferhook"
)

func runSetCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		program   string
		authority string
		keypair   string
	)
	fs.StringVar(&program, "program", "", "Transfer hook program id (defaults to the deployed program)")
	fs.StringVar(&authority, "authority", "", "Mint authority public key")
	fs.StringVar(&keypair, "keypair", "", "Path to the mint authority keypair (used when --authority is omitted)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, setUsage())
		return 1
	}
	mint, err := parseKeyArg("mint", fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	network, err := parseKeyArg("network", fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	programID, err := parseProgramFlag(program)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	authorityKey, err := resolveAuthority(authority, keypair)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ix, err := transferhook.NewInitializeExtraAccountMetasInstruction(programID, mint, authorityKey, network)
	if err != nil {
		fmt.Fprintf(stderr, "Error: build instruction: %v\n", err)
		return 1
	}
	data, err := ix.Data()
	if err != nil {
		fmt.Fprintf(stderr, "Error: encode instruction: %v\n", err)
		return 1
	}
	metas := transferhook.ExtraAccountMetas(network)
	described := make([]string, len(metas))
	for i, meta := range metas {
		described[i] = meta.String()
	}
	result := map[string]interface{}{
		"programId": ix.ProgramID().String(),
		"accounts":  formatAccountMetas(ix.Accounts()),
		"data":      base64.StdEncoding.EncodeToString(data),
		"dataHex":   hex.EncodeToString(data),
		"metas":     described,
		"space":     accountmeta.SizeOf(len(metas)),
	}
	if err := writeJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func resolveAuthority(authority, keypair string) (solana.PublicKey, error) {
	if strings.TrimSpace(authority) != "" {
		return parseKeyArg("--authority", authority)
	}
	if strings.TrimSpace(keypair) == "" {
		return solana.PublicKey{}, fmt.Errorf("--authority or --keypair is required")
	}
	key, err := crypto.LoadKeypair(keypair)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("load keypair: %w", err)
	}
	return key.PublicKey(), nil
}

func setUsage() string {
	return strings.TrimSpace(`
Usage: hook-cli set [--program PROGRAM] (--authority PUBKEY | --keypair FILE) MINT NETWORK
`)
}

func runAccountsCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("accounts", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		program   string
		source    string
		authority string
	)
	fs.StringVar(&program, "program", "", "Transfer hook program id (defaults to the deployed program)")
	fs.StringVar(&source, "source", "", "Source token account (optional)")
	fs.StringVar(&authority, "authority", "", "Transfer authority (optional)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 3 {
		fmt.Fprintln(stderr, accountsUsage())
		return 1
	}
	var transfer transferhook.TransferAccounts
	var err error
	if transfer.Mint, err = parseKeyArg("mint", fs.Arg(0)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if transfer.Destination, err = parseKeyArg("destination", fs.Arg(1)); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	network, err := parseKeyArg("network", fs.Arg(2))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if source != "" {
		if transfer.Source, err = parseKeyArg("--source", source); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if authority != "" {
		if transfer.Authority, err = parseKeyArg("--authority", authority); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	programID, err := parseProgramFlag(program)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	extras, err := transferhook.TransferExtraAccounts(programID, transfer, network)
	if err != nil {
		fmt.Fprintf(stderr, "Error: resolve extra accounts: %v\n", err)
		return 1
	}
	metasAddr, _, err := transferhook.ExtraAccountMetasAddressAndBump(transfer.Mint, programID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: derive address: %v\n", err)
		return 1
	}
	result := map[string]interface{}{
		"extraAccountMetas": metasAddr.String(),
		"extraAccounts":     formatAccountMetas(extras),
	}
	if err := writeJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func accountsUsage() string {
	return strings.TrimSpace(`
Usage: hook-cli accounts [--program PROGRAM] [--source ACCOUNT] [--authority PUBKEY] MINT DEST NETWORK
`)
}
