package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-01")
	t.Cleanup(func() { SetVersionInfo("dev", "none", "unknown") })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "sociofi 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
}

func TestIndexRequiresFile(t *testing.T) {
	rootCmd.SetArgs([]string{"index"})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
	})
	assert.Error(t, rootCmd.Execute())
}
