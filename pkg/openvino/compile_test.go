package openvino

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/stretchr/testify/require"
)

func TestCheckModelFile(t *testing.T) {
	dir := t.TempDir()
	require.ErrorIs(t, checkModelFile(filepath.Join(dir, "missing.xml")), nn.ErrModelLoad)
	require.ErrorIs(t, checkModelFile(dir), nn.ErrModelLoad)

	path := filepath.Join(dir, "model.xml")
	require.NoError(t, os.WriteFile(path, []byte("<net/>"), 0644))
	require.NoError(t, checkModelFile(path))
}

func TestStageError(t *testing.T) {
	require.ErrorIs(t, stageError(stageRead), nn.ErrModelLoad)
	require.ErrorIs(t, stageError(stageCompile), nn.ErrDevice)
	require.ErrorIs(t, stageError(stageAlloc), nn.ErrDevice)
}
