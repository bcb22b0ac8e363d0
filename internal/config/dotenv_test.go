package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnvWalksUp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("PATHWAYS_DOTENV_TEST=from-file\nPATHWAYS_DOTENV_SET=from-file\n"), 0o644))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("PATHWAYS_DOTENV_TEST", "")
	os.Unsetenv("PATHWAYS_DOTENV_TEST")
	t.Setenv("PATHWAYS_DOTENV_SET", "from-env")

	path := LoadDotEnv()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	expected, err := filepath.EvalSymlinks(filepath.Join(root, ".env"))
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
	assert.Equal(t, "from-file", os.Getenv("PATHWAYS_DOTENV_TEST"))
	assert.Equal(t, "from-env", os.Getenv("PATHWAYS_DOTENV_SET"))
}
