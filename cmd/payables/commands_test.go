package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeMemoryConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
database:
  driver: memory
storage:
  document_dir: %s
logger:
  level: error
  output_path: stderr
scheduler:
  timezone: UTC
`, filepath.Join(dir, "documents"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestTickCommand(t *testing.T) {
	cfg := writeMemoryConfig(t)

	out := execute(t, "--config", cfg, "tick", "--date", "2026-03-01")

	var report struct {
		Date      string `json:"date"`
		Generated int    `json:"generated"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 0, report.Generated)
}

func TestExportRegistryCommand(t *testing.T) {
	cfg := writeMemoryConfig(t)
	target := filepath.Join(t.TempDir(), "registry.xlsx")

	out := execute(t, "--config", cfg, "export-registry", "--out", target)
	assert.Contains(t, out, "Wrote 0 invoices")

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Registry")
}

func TestMigrateCommand_RejectsMemoryDriver(t *testing.T) {
	cfg := writeMemoryConfig(t)

	rootCmd.SetArgs([]string{"--config", cfg, "migrate"})
	assert.Error(t, rootCmd.Execute())
}
