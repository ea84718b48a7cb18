package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const validTestConfig = `
providers:
  default: anthropic
  anthropic:
    api_key: test-key
security:
  approval_timeout: 30s
`

func TestRunConfigValidateSucceeds(t *testing.T) {
	path := writeTestConfig(t, validTestConfig)

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runConfigValidate(cmd, path); err != nil {
		t.Fatalf("runConfigValidate() error = %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("config OK")) {
		t.Fatalf("expected success message, got %q", out.String())
	}
}

func TestRunConfigValidateSurfacesError(t *testing.T) {
	path := writeTestConfig(t, "providers:\n  default: openai\n")

	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runConfigValidate(cmd, path); err == nil {
		t.Fatal("expected validation error")
	}
}
