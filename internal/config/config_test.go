package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirWithConfig points the loader at a fresh directory, optionally
// seeding configs/config.yaml with content.
func chdirWithConfig(t *testing.T, content string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	if content != "" {
		require.NoError(t, os.Mkdir(filepath.Join(dir, "configs"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(content), 0o644))
	}
	t.Chdir(dir)
}

func TestLoad_Defaults(t *testing.T) {
	chdirWithConfig(t, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.Solana.RPCURL)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, ":8080", cfg.Runtime.ListenAddr)
	assert.Equal(t, 100, cfg.Executor.SlippageBps)
}

func TestLoad_FileOverridesAndEnvSubstitution(t *testing.T) {
	chdirWithConfig(t, `
solana:
  rpc_url: http://localhost:8899
  signer_secret: ${TEST_SIGNER_SECRET}
storage:
  backend: postgres
`)
	t.Setenv("TEST_SIGNER_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8899", cfg.Solana.RPCURL)
	assert.Equal(t, "s3cret", cfg.Solana.SignerSecret)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	// Untouched keys keep their defaults.
	assert.Equal(t, ":8080", cfg.Runtime.ListenAddr)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	chdirWithConfig(t, "solana: [unclosed\n")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	chdirWithConfig(t, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}
