package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for env files:
// - Missing files are skipped without error
// - .env.local wins over .env, and both lose to variables already set
// - Loaded values reach Load through the environment

func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Cleanup(func() { os.Unsetenv(k) })
	}
}

func TestLoadEnvFiles_NoFiles(t *testing.T) {
	t.Parallel()

	loaded, err := LoadEnvFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadEnvFiles_Precedence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"),
		[]byte("SMOLEX_DOTENV_A=from-env\nSMOLEX_DOTENV_B=from-env\nSMOLEX_DOTENV_C=from-env\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env.local"),
		[]byte("SMOLEX_DOTENV_A=from-local\n"), 0o644))

	t.Setenv("SMOLEX_DOTENV_C", "from-process")
	unsetAfter(t, "SMOLEX_DOTENV_A", "SMOLEX_DOTENV_B")

	loaded, err := LoadEnvFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, ".env.local"), filepath.Join(root, ".env")}, loaded)

	assert.Equal(t, "from-local", os.Getenv("SMOLEX_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("SMOLEX_DOTENV_B"))
	assert.Equal(t, "from-process", os.Getenv("SMOLEX_DOTENV_C"))
}

func TestLoadEnvFiles_FeedsLoader(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"),
		[]byte("SMOLEX_SEMANTIC_TOP_K=9\n"), 0o644))
	unsetAfter(t, "SMOLEX_SEMANTIC_TOP_K")

	_, err := LoadEnvFiles(root)
	require.NoError(t, err)

	cfg, err := LoadConfigFromDir(root)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Semantic.TopK)
}
