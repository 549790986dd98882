package main

import (
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"

	"gatehook/native/accountmeta"
	"gatehook/native/transferhook"
)

type metaJSON struct {
	Index         int    `json:"index"`
	Variant       string `json:"variant"`
	Discriminator uint8  `json:"discriminator"`
	Description   string `json:"description"`
	IsSigner      bool   `json:"isSigner"`
	IsWritable    bool   `json:"isWritable"`
}

func runInspectCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		encoding string
		typeTag  string
	)
	fs.StringVar(&encoding, "encoding", "auto", "Input encoding: auto, hex or base64")
	fs.StringVar(&typeTag, "discriminator", "", "Instruction name the list is tagged with (defaults to execute)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, inspectUsage())
		return 1
	}
	raw, err := decodeInput(fs.Arg(0), encoding)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	discriminator := transferhook.ExecuteDiscriminator
	if strings.TrimSpace(typeTag) != "" {
		discriminator = accountmeta.NewDiscriminator(typeTag)
	}
	metas, err := accountmeta.Decode(raw, discriminator)
	if err != nil {
		fmt.Fprintf(stderr, "Error: decode list: %v\n", err)
		return 1
	}
	out := make([]metaJSON, len(metas))
	for i, meta := range metas {
		out[i] = metaJSON{
			Index:         transferhook.ExecuteBaseAccounts + i,
			Variant:       meta.Variant().String(),
			Discriminator: meta.Discriminator,
			Description:   meta.String(),
			IsSigner:      meta.IsSigner,
			IsWritable:    meta.IsWritable,
		}
	}
	result := map[string]interface{}{
		"length": len(raw),
		"count":  len(metas),
		"metas":  out,
	}
	if err := writeJSON(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func decodeInput(value, encoding string) ([]byte, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "hex":
		return hex.DecodeString(strings.TrimPrefix(value, "0x"))
	case "base64":
		return base64.StdEncoding.DecodeString(value)
	case "", "auto":
		if decoded, err := hex.DecodeString(strings.TrimPrefix(value, "0x")); err == nil {
			return decoded, nil
		}
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("input is neither hex nor base64")
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func inspectUsage() string {
	return strings.TrimSpace(`
Usage: hook-cli inspect [--encoding auto|hex|base64] [--discriminator NAME] DATA
`)
}
