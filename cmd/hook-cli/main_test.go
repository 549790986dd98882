package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"gatehook/crypto"
	"gatehook/native/accountmeta"
	"gatehook/native/gateway"
	"gatehook/native/transferhook"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	key, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PublicKey()
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decodeOutput(t *testing.T, out string, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "frobnicate")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Fatalf("unexpected stderr: %s", stderr)
	}
	if code, _, _ := runCLI(t); code != 1 {
		t.Fatalf("expected missing command to fail")
	}
}

func TestAddressCommand(t *testing.T) {
	mint := newKey(t)
	code, stdout, stderr := runCLI(t, "address", mint.String())
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	var out struct {
		ExtraAccountMetas string `json:"extraAccountMetas"`
		Program           string `json:"program"`
		Bump              uint8  `json:"bump"`
	}
	decodeOutput(t, stdout, &out)
	if out.ExtraAccountMetas != transferhook.ExtraAccountMetasAddress(mint).String() {
		t.Fatalf("unexpected address %s", out.ExtraAccountMetas)
	}
	if out.Program != transferhook.ProgramID.String() {
		t.Fatalf("unexpected program %s", out.Program)
	}
}

func TestAddressCommandRejectsBadMint(t *testing.T) {
	code, _, stderr := runCLI(t, "address", "not-a-key")
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr, "invalid mint") {
		t.Fatalf("unexpected stderr: %s", stderr)
	}
	if code, _, _ := runCLI(t, "address"); code != 1 {
		t.Fatalf("expected missing mint to fail")
	}
}

func TestGatewayTokenCommand(t *testing.T) {
	holder, network := newKey(t), newKey(t)
	code, stdout, stderr := runCLI(t, "gateway-token", holder.String(), network.String())
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	var out struct {
		GatewayToken string `json:"gatewayToken"`
	}
	decodeOutput(t, stdout, &out)
	want, _, err := gateway.DeriveTokenAddress(holder, network)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if out.GatewayToken != want.String() {
		t.Fatalf("expected %s, got %s", want, out.GatewayToken)
	}
}

func TestSetCommandRequiresAuthority(t *testing.T) {
	code, _, stderr := runCLI(t, "set", newKey(t).String(), newKey(t).String())
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr, "--authority or --keypair is required") {
		t.Fatalf("unexpected stderr: %s", stderr)
	}
}

func TestSetCommandEncodesInstruction(t *testing.T) {
	mint, network, authority := newKey(t), newKey(t), newKey(t)
	code, stdout, stderr := runCLI(t, "set", "--authority", authority.String(), mint.String(), network.String())
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	var out struct {
		ProgramID string            `json:"programId"`
		Accounts  []accountMetaJSON `json:"accounts"`
		Data      string            `json:"data"`
		DataHex   string            `json:"dataHex"`
		Metas     []string          `json:"metas"`
		Space     int               `json:"space"`
	}
	decodeOutput(t, stdout, &out)
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if hex.EncodeToString(data) != out.DataHex {
		t.Fatalf("hex and base64 encodings disagree")
	}
	ix, err := transferhook.ParseInstruction(data)
	if err != nil {
		t.Fatalf("parse instruction: %v", err)
	}
	if ix.Kind != transferhook.InstructionInitializeExtraAccountMetas || ix.GatekeeperNetwork != network {
		t.Fatalf("unexpected instruction %+v", ix)
	}
	if len(out.Accounts) != 4 {
		t.Fatalf("expected 4 accounts, got %d", len(out.Accounts))
	}
	if out.Accounts[0].Pubkey != transferhook.ExtraAccountMetasAddress(mint).String() || !out.Accounts[0].IsWritable {
		t.Fatalf("unexpected descriptor account %+v", out.Accounts[0])
	}
	if out.Accounts[2].Pubkey != authority.String() || !out.Accounts[2].IsSigner {
		t.Fatalf("unexpected authority account %+v", out.Accounts[2])
	}
	if len(out.Metas) != 3 || out.Space != 121 {
		t.Fatalf("unexpected metas %v (space %d)", out.Metas, out.Space)
	}
}

func TestSetCommandLoadsKeypair(t *testing.T) {
	key, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "authority.json")
	if err := crypto.SaveKeypair(path, key); err != nil {
		t.Fatalf("save: %v", err)
	}
	code, stdout, stderr := runCLI(t, "set", "--keypair", path, newKey(t).String(), newKey(t).String())
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if !strings.Contains(stdout, key.PublicKey().String()) {
		t.Fatalf("expected authority in output: %s", stdout)
	}
}

func TestAccountsCommand(t *testing.T) {
	mint, dest, network := newKey(t), newKey(t), newKey(t)
	code, stdout, stderr := runCLI(t, "accounts", mint.String(), dest.String(), network.String())
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	var out struct {
		ExtraAccounts []accountMetaJSON `json:"extraAccounts"`
	}
	decodeOutput(t, stdout, &out)
	if len(out.ExtraAccounts) != 3 {
		t.Fatalf("expected 3 extra accounts, got %d", len(out.ExtraAccounts))
	}
	token, _, err := gateway.DeriveTokenAddress(dest, network)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	want := []string{network.String(), gateway.ProgramID.String(), token.String()}
	for i, meta := range out.ExtraAccounts {
		if meta.Pubkey != want[i] {
			t.Fatalf("extra %d: expected %s, got %s", i, want[i], meta.Pubkey)
		}
		if meta.IsSigner || meta.IsWritable {
			t.Fatalf("extra %d should be read-only", i)
		}
	}
}

func TestInspectCommand(t *testing.T) {
	network := newKey(t)
	list := accountmeta.Encode(transferhook.ExecuteDiscriminator, transferhook.ExtraAccountMetas(network))

	for name, input := range map[string]string{
		"hex":    hex.EncodeToString(list),
		"base64": base64.StdEncoding.EncodeToString(list),
	} {
		code, stdout, stderr := runCLI(t, "inspect", input)
		if code != 0 {
			t.Fatalf("%s: expected success, got %d (%s)", name, code, stderr)
		}
		var out struct {
			Length int        `json:"length"`
			Count  int        `json:"count"`
			Metas  []metaJSON `json:"metas"`
		}
		decodeOutput(t, stdout, &out)
		if out.Length != 121 || out.Count != 3 {
			t.Fatalf("%s: unexpected summary %+v", name, out)
		}
		if out.Metas[0].Description != fmt.Sprintf("fixed(%s)", network) {
			t.Fatalf("%s: unexpected first meta %q", name, out.Metas[0].Description)
		}
		if out.Metas[2].Variant != "external_derived" || out.Metas[2].Index != 7 {
			t.Fatalf("%s: unexpected gateway token meta %+v", name, out.Metas[2])
		}
	}

	if code, _, _ := runCLI(t, "inspect", "--encoding", "hex", "zz"); code != 1 {
		t.Fatalf("expected invalid hex to fail")
	}
	if code, _, _ := runCLI(t, "inspect", hex.EncodeToString(list[:10])); code != 1 {
		t.Fatalf("expected truncated list to fail")
	}
}

func writeSimulateConfig(t *testing.T, network solana.PublicKey) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hook.toml")
	body := fmt.Sprintf("DataDir = %q\nGatekeeperNetwork = %q\n\n[Log]\nLevel = \"warn\"\n", filepath.Join(dir, "data"), network.String())
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestSimulateCommandAdmitsActiveCredential(t *testing.T) {
	path := writeSimulateConfig(t, newKey(t))
	code, stdout, stderr := runCLI(t, "simulate", "--config", path, "--expires-in", "1h")
	if code != 0 {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	var out simulateResult
	decodeOutput(t, stdout, &out)
	if !out.Admitted {
		t.Fatalf("expected transfer to be admitted: %+v", out)
	}
	if out.RunID == "" {
		t.Fatalf("expected a run id")
	}
	if _, err := os.Stat(out.Ledger); err != nil {
		t.Fatalf("expected ledger directory: %v", err)
	}
	if len(out.Events) != 2 || out.Events[0].Type != "transferhook.metas_initialized" || out.Events[1].Type != "transferhook.transfer_admitted" {
		t.Fatalf("unexpected events %+v", out.Events)
	}
}

func TestSimulateCommandRejectsInvalidCredential(t *testing.T) {
	path := writeSimulateConfig(t, newKey(t))
	cases := map[string][]string{
		"revoked": {"--token-state", "revoked"},
		"missing": {"--token-state", "none"},
		"expired": {"--expires-in", "-1m"},
	}
	for name, extra := range cases {
		args := append([]string{"simulate", "--config", path}, extra...)
		code, stdout, stderr := runCLI(t, args...)
		if code != 0 {
			t.Fatalf("%s: expected the simulation to complete, got %d (%s)", name, code, stderr)
		}
		var out simulateResult
		decodeOutput(t, stdout, &out)
		if out.Admitted {
			t.Fatalf("%s: expected rejection", name)
		}
		if out.Stage != transferhook.StageExtraAccountsVerified.String() || out.Kind != "credential_invalid" {
			t.Fatalf("%s: unexpected rejection %s/%s", name, out.Stage, out.Kind)
		}
	}
}

func TestSimulateCommandRequiresNetwork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hook.toml")
	body := fmt.Sprintf("DataDir = %q\n", filepath.Join(dir, "data"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	code, _, stderr := runCLI(t, "simulate", "--config", path)
	if code != 1 {
		t.Fatalf("expected failure, got %d", code)
	}
	if !strings.Contains(stderr, "--network is required") {
		t.Fatalf("unexpected stderr: %s", stderr)
	}
}
