package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "checkscan/pkg/domain-errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ResolvesPlaceholders(t *testing.T) {
	path := writeConfig(t, `
scan:
  storagePath: /srv/scans
remote:
  baseUrl: https://ledger.example.com
  scannedItemsUrl: ${baseUrl}/checks
  revertScannedItemsUrl: ${scannedItemsUrl}/revert
  pageItems: 50
  requestTimeout: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/scans", cfg.Scan.StoragePath)
	assert.Equal(t, "https://ledger.example.com/checks", cfg.Remote.ScannedItemsURL)
	assert.Equal(t, "https://ledger.example.com/checks/revert", cfg.Remote.RevertScannedItemsURL)
	assert.Equal(t, 50, cfg.Remote.PageItems)
	assert.Equal(t, 10*time.Second, cfg.Remote.RequestTimeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/scanned-items", cfg.Remote.ScannedItemsURL)
	assert.Equal(t, "text", cfg.OCR.Mode)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "remote: [unterminated"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CHECKSCAN_SCAN_PATH":          "/mnt/drop",
		"CHECKSCAN_SUBMIT_CONCURRENCY": "8",
		"CHECKSCAN_PAGE_ITEMS":         "not-a-number",
		"KAFKA_BROKERS":                "k1:9092,k2:9092",
	}
	cfg := Default()
	applyEnv(&cfg, func(k string) string { return env[k] })

	assert.Equal(t, "/mnt/drop", cfg.Scan.StoragePath)
	assert.Equal(t, 8, cfg.Remote.Concurrency)
	assert.Equal(t, 20, cfg.Remote.PageItems, "unparseable ints keep the default")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	t.Run("unknown ocr mode", func(t *testing.T) {
		cfg := Default()
		cfg.Remote.resolvePlaceholders()
		cfg.OCR.Mode = "magic"
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unresolved placeholder", func(t *testing.T) {
		cfg := Default()
		cfg.Remote.ScannedItemsURL = "${nowhere}/checks"
		cfg.Remote.resolvePlaceholders()
		assert.Error(t, cfg.Validate())
	})

	t.Run("blank storage path", func(t *testing.T) {
		cfg := Default()
		cfg.Remote.resolvePlaceholders()
		cfg.Scan.StoragePath = "  "
		assert.Error(t, cfg.Validate())
	})
}
