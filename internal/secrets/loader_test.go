package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  from-file\n"), 0o600))
	t.Setenv("TEST_SECRET", "from-env")

	secret, err := Load(Source{Name: "token", Value: "inline", File: path, Env: "TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", secret)
}

func TestLoadInlineBeforeEnv(t *testing.T) {
	t.Setenv("TEST_SECRET", "from-env")

	secret, err := Load(Source{Value: " inline ", Env: "TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "inline", secret)
}

func TestLoadFallsBackToEnv(t *testing.T) {
	t.Setenv("TEST_SECRET", "from-env")

	secret, err := Load(Source{Env: "TEST_SECRET"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", secret)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Source{Name: "crm token"})
	assert.ErrorContains(t, err, "crm token is not configured")

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = Load(Source{Name: "smtp password", File: empty})
	assert.ErrorContains(t, err, "is empty")

	_, err = Load(Source{File: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}
