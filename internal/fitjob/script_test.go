package fitjob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zqa-pipeline/internal/model"
)

func TestWriteScripts(t *testing.T) {
	outDir := t.TempDir()
	sample := &model.SampleResult{
		Conditions:  []string{"SEEING"},
		Combos:      [][]int{{0}, {1}, {2}},
		TileIDs:     []int64{1001, 1002, 1001}, // tile 1001 drawn twice
		MatchCounts: []int{2, 2, 2},
	}
	cfg := Config{
		Fitter:      "rrdesi",
		TemplateDir: "/templates/v2",
		OutDir:      outDir,
		Account:     "desi",
		Walltime:    "00:30:00",
	}

	paths, err := WriteScripts(sample, cfg, false)
	require.NoError(t, err)

	// Duplicate tiles collapse to one script each.
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(outDir, "fit-tile-1001.sh"), paths[0])
	assert.Equal(t, filepath.Join(outDir, "fit-tile-1002.sh"), paths[1])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	script := string(data)
	assert.Contains(t, script, "#SBATCH --account=desi")
	assert.Contains(t, script, "#SBATCH --time=00:30:00")
	assert.Contains(t, script, "export RR_TEMPLATE_DIR=/templates/v2")
	assert.Contains(t, script, "rrdesi --tile 1001")

	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestWriteScriptsSkipsExisting(t *testing.T) {
	outDir := t.TempDir()
	sample := &model.SampleResult{TileIDs: []int64{1001}}
	cfg := Config{Fitter: "rrdesi", OutDir: outDir, Account: "desi", Walltime: "00:30:00"}

	paths, err := WriteScripts(sample, cfg, false)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	// Scribble on the script; a non-overwrite pass must keep it.
	require.NoError(t, os.WriteFile(paths[0], []byte("edited"), 0755))

	paths, err = WriteScripts(sample, cfg, false)
	require.NoError(t, err)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))

	// Overwrite regenerates it.
	_, err = WriteScripts(sample, cfg, true)
	require.NoError(t, err)
	data, err = os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "#SBATCH")
}

func TestWriteScriptsRequiresFitter(t *testing.T) {
	_, err := WriteScripts(&model.SampleResult{TileIDs: []int64{1}}, Config{OutDir: t.TempDir()}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fitter executable")
}
