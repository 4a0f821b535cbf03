package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestPrinter_JSON(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{Out: &out, JSON: true}
	ctx := &Context{Name: "dev", Model: "gpt-realtime"}

	if err := p.Result(ctx); err != nil {
		t.Fatalf("Result() error: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("Result() wrote invalid JSON: %v", err)
	}
	if result["model"] != "gpt-realtime" {
		t.Errorf("model = %v, want %q", result["model"], "gpt-realtime")
	}
	if _, ok := result["api_key"]; ok {
		t.Error("empty api_key should be omitted")
	}
}

func TestPrinter_DefaultYAML(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{Out: &out}
	if err := p.Result(map[string]string{"key": "value"}); err != nil {
		t.Fatalf("Result() error: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "key: value") {
		t.Errorf("Result() = %q, want YAML", got)
	}
}

func TestPrinter_StatusLines(t *testing.T) {
	tests := []struct {
		name       string
		json       bool
		wantOut    string
		wantErrOut string
	}{
		{"terminal", false, "✓ added dev\nswitching\n", "error: boom\n"},
		{"json keeps stdout clean", true, "", "✓ added dev\nswitching\nerror: boom\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			p := &Printer{Out: &out, Err: &errOut, JSON: tt.json}
			p.Success("added %s", "dev")
			p.Info("switching")
			p.Error("boom")

			if out.String() != tt.wantOut {
				t.Errorf("stdout = %q, want %q", out.String(), tt.wantOut)
			}
			if errOut.String() != tt.wantErrOut {
				t.Errorf("stderr = %q, want %q", errOut.String(), tt.wantErrOut)
			}
		})
	}
}
