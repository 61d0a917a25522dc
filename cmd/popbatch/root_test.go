package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/chains"
	"github.com/Bidon15/popbatch/internal/config"
	"github.com/Bidon15/popbatch/internal/contracts"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantContain []string
	}{
		{
			name:        "basic version",
			args:        []string{"version"},
			wantContain: []string{"popbatch"},
		},
		{
			name:        "verbose version",
			args:        []string{"--verbose", "version"},
			wantContain: []string{"popbatch", "commit:", "built:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetFlags()
			var buf bytes.Buffer
			SetOutput(&buf)

			err := ExecuteWithArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			output := buf.String()
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("output %q does not contain %q", output, want)
				}
			}
		})
	}
}

func TestRootCommand_Help(t *testing.T) {
	ResetFlags()
	var buf bytes.Buffer
	SetOutput(&buf)

	err := ExecuteWithArgs([]string{"--help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	expectedStrings := []string{
		"popbatch",
		"--config",
		"--env-file",
		"--environment",
		"--json",
		"--verbose",
		"bridge",
		"swap",
		"rebalance",
		"API_KEY_SECRET",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("help output missing %q", expected)
		}
	}
}

func TestDecodeCommand(t *testing.T) {
	spender := common.HexToAddress("0x4200000000000000000000000000000000000010")
	approve, err := contracts.Approve(spender, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("encode approve: %v", err)
	}

	t.Run("text", func(t *testing.T) {
		ResetFlags()
		var buf bytes.Buffer
		SetOutput(&buf)

		if err := ExecuteWithArgs([]string{"decode", hexutil.Encode(approve)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"ERC20.approve", "0x095ea7b3", spender.Hex(), "1000000"} {
			if !strings.Contains(output, want) {
				t.Errorf("output %q does not contain %q", output, want)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		ResetFlags()
		var buf bytes.Buffer
		SetOutput(&buf)

		if err := ExecuteWithArgs([]string{"--json", "decode", hexutil.Encode(approve)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var call contracts.DecodedCall
		if err := json.Unmarshal(buf.Bytes(), &call); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if call.Contract != "ERC20" || call.Method != "approve" {
			t.Errorf("got %s.%s, want ERC20.approve", call.Contract, call.Method)
		}
	})
}

func TestDecodeCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"not hex", []string{"decode", "0xzz"}, nil},
		{"unknown selector", []string{"decode", "0xdeadbeef"}, contracts.ErrUnknownSelector},
		{"missing argument", []string{"decode"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetFlags()
			var buf bytes.Buffer
			SetOutput(&buf)

			err := ExecuteWithArgs(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigInit(t *testing.T) {
	ResetFlags()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "popbatch.yaml")
	envPath := filepath.Join(dir, ".env")

	var buf bytes.Buffer
	SetOutput(&buf)

	err := ExecuteWithArgs([]string{"--config", cfgPath, "--env-file", envPath, "config", "init"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(content), "environment: testnet") {
		t.Errorf("config file %q missing environment", content)
	}

	values, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatalf("env file not written: %v", err)
	}
	if !strings.Contains(string(values), config.PlaceholderAPIKey) {
		t.Errorf("env file %q missing placeholder", values)
	}

	ResetFlags()
	buf.Reset()
	err = ExecuteWithArgs([]string{"--config", cfgPath, "--env-file", envPath, "config", "init"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "already exists") {
		t.Errorf("second init output %q should report existing file", buf.String())
	}
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "popbatch.yaml")
	if err := os.WriteFile(cfgPath, []byte("environment: mainnet\nlog_level: warn\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvAPIKey, "owlkey_1234567890abcd")

	tests := []struct {
		name    string
		args    []string
		wantEnv string
	}{
		{"from file", []string{"--json", "--config", cfgPath, "config", "show"}, "mainnet"},
		{"flag overrides file", []string{"--json", "--config", cfgPath, "--environment", "testnet", "config", "show"}, "testnet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetFlags()
			var buf bytes.Buffer
			SetOutput(&buf)

			args := append([]string{"--env-file", filepath.Join(dir, ".env")}, tt.args...)
			if err := ExecuteWithArgs(args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var shown map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &shown); err != nil {
				t.Fatalf("decode output %q: %v", buf.String(), err)
			}
			if shown["environment"] != tt.wantEnv {
				t.Errorf("environment = %v, want %s", shown["environment"], tt.wantEnv)
			}
			if shown["log_level"] != "warn" {
				t.Errorf("log_level = %v, want warn", shown["log_level"])
			}
			if shown["api_key"] != "owlkey_1...abcd" {
				t.Errorf("api_key = %v, want masked key", shown["api_key"])
			}
		})
	}
}

func TestPlanCommand_InvalidIntentFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "kind: swap\namount: \"10\"\nslippage: 5\n"},
		{"unknown kind", "kind: lend\n"},
		{"bad amount", "kind: bridge_erc20\namount: ten\n"},
		{"bad recipient", "kind: topup\ntarget_balance: \"1\"\nto: 0x123\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetFlags()
			var buf bytes.Buffer
			SetOutput(&buf)

			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}

			err := ExecuteWithArgs([]string{"plan", "--intent", path})
			if !errors.Is(err, config.ErrInvalidIntentFile) {
				t.Errorf("error = %v, want %v", err, config.ErrInvalidIntentFile)
			}
		})
	}
}

func TestPlanCommand_RequiresIntent(t *testing.T) {
	ResetFlags()
	var buf bytes.Buffer
	SetOutput(&buf)

	err := ExecuteWithArgs([]string{"plan"})
	if err == nil || !strings.Contains(err.Error(), "intent") {
		t.Errorf("error = %v, want missing --intent", err)
	}
}

func TestPrintPlan(t *testing.T) {
	bridge := common.HexToAddress("0xFBb0621E0B23b5478B630BD55a5f21f67730B0F1")
	approve, err := contracts.Approve(bridge, big.NewInt(1_000_000))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		plan        *batch.Plan
		wantContain []string
	}{
		{
			name: "satisfied",
			plan: &batch.Plan{
				Kind:       batch.KindBridgeERC20,
				ChainID:    chains.SepoliaID,
				Steps:      []batch.Step{},
				Completion: batch.CompletionCheck{AlreadySatisfied: true, CurrentBalance: big.NewInt(5)},
			},
			wantContain: []string{"bridge_erc20", "Sepolia", "nothing to submit"},
		},
		{
			name: "approval then call",
			plan: &batch.Plan{
				Kind:    batch.KindBridgeERC20,
				ChainID: chains.SepoliaID,
				Steps: []batch.Step{
					batch.NewStep(bridge, nil, approve),
					batch.NewStep(bridge, big.NewInt(7), []byte{0xde, 0xad, 0xbe, 0xef, 0x00}),
				},
				Allowance: &batch.AllowanceCheck{Current: big.NewInt(0), Required: big.NewInt(1_000_000), NeedsApproval: true},
			},
			wantContain: []string{"ERC20.approve", "0xdeadbeef", "needs 1000000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printPlan(&buf, tt.plan)

			output := buf.String()
			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("output %q does not contain %q", output, want)
				}
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "****"},
		{"owlkey_1234567890abcd", "owlkey_1...abcd"},
	}

	for _, tt := range tests {
		if got := maskAPIKey(tt.key); got != tt.want {
			t.Errorf("maskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
