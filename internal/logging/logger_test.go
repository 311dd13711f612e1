package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sociofi/internal/config"
)

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	logger, err := New(config.LogConfig{FilePath: path, Level: "debug"}, true)
	require.NoError(t, err)

	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"hello"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, false)
	require.Error(t, err)
}
