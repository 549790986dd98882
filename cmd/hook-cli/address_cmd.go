package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"gatehook/native/gateway"
	"gatehook/native/transferhook"
)

func runAddressCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var program string
	fs.StringVar(&program, "program", "", "Transfer hook program id (defaults to the deployed program)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, addressUsage())
		return 1
	}
	mint, err := parseKeyArg("mint", fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	programID, err := parseProgramFlag(program)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	addr, bump, err := transferhook.ExtraAccountMetasAddressAndBump(mint, programID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: derive address: %v\n", err)
		return 1
	}
	result := map[string]interface{}{
		"mint":              mint.String(),
		"program":           programID.String(),
		"extraAccountMetas": addr.String(),
		"bump":              bump,
	}
	if err := writeJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func addressUsage() string {
	return strings.TrimSpace(`
Usage: hook-cli address [--program PROGRAM] MINT
`)
}

func runGatewayTokenCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gateway-token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var index uint64
	fs.Uint64Var(&index, "index", 0, "Token index seed")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(stderr, gatewayTokenUsage())
		return 1
	}
	holder, err := parseKeyArg("holder", fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	network, err := parseKeyArg("network", fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	addr, bump, err := gateway.DeriveTokenAddressWithIndex(holder, network, index)
	if err != nil {
		fmt.Fprintf(stderr, "Error: derive gateway token: %v\n", err)
		return 1
	}
	result := map[string]interface{}{
		"holder":       holder.String(),
		"network":      network.String(),
		"index":        index,
		"gatewayToken": addr.String(),
		"bump":         bump,
	}
	if err := writeJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func gatewayTokenUsage() string {
	return strings.TrimSpace(`
Usage: hook-cli gateway-token [--index N] HOLDER NETWORK
`)
}
