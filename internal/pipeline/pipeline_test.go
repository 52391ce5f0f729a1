package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KaramelBytes/cosinor-cli/internal/config"
	"github.com/KaramelBytes/cosinor-cli/internal/dataset"
)

func writeGene(t *testing.T, dir, gene string, mesor, amp, acro float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("ZT\texpression ratio (goi/hk)\n")
	noise := []float64{0.02, -0.015, 0.01}
	for zt := 0; zt < 24; zt += 4 {
		for r := 0; r < 3; r++ {
			v := mesor + amp*math.Cos(2*math.Pi*float64(zt)/24-acro) + noise[r]
			fmt.Fprintf(&b, "%d\t%.5f\n", zt, v)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, gene+".tsv"), []byte(b.String()), 0o644))
}

func testOptions(t *testing.T, dir string) Options {
	t.Helper()
	opt, err := OptionsFromConfig(config.Default())
	require.NoError(t, err)
	opt.InputDir = dir
	opt.Plot.Width, opt.Plot.Height = 600, 400
	return opt
}

func TestRunWritesFiguresAndSummary(t *testing.T) {
	dir := t.TempDir()
	writeGene(t, dir, "Per2", 1.0, 0.5, 2.0)
	writeGene(t, dir, "Bmal1", 2.0, 0.8, 5.0)

	var out bytes.Buffer
	res, err := Run(context.Background(), testOptions(t, dir), zap.NewNop(), &out)
	require.NoError(t, err)

	require.Equal(t, 2, res.Table.Len())
	assert.Equal(t, "Bmal1", res.Table.Rows[0].Gene)
	assert.Equal(t, "Per2", res.Table.Rows[1].Gene)
	assert.InDelta(t, 0.8, res.Table.Rows[0].Amplitude, 0.05)
	assert.Less(t, res.Table.Rows[1].PValue, 0.001)

	for _, gene := range []string{"Bmal1", "Per2"} {
		_, err := os.Stat(filepath.Join(dir, gene+"_cosinor.png"))
		assert.NoError(t, err, gene)
	}
	_, err = os.Stat(filepath.Join(dir, "cosinor_summary.csv"))
	require.NoError(t, err)

	s := out.String()
	assert.Contains(t, s, "Saved figure: "+filepath.Join(dir, "Bmal1_cosinor.png"))
	assert.Contains(t, s, "=== COSINOR SUMMARY ===")
	assert.Contains(t, s, "Saved cosinor summary to: "+filepath.Join(dir, "cosinor_summary.csv"))
}

func TestRunOutputDirFormatAndManifest(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "results")
	writeGene(t, in, "Cry1", 1.5, 0.4, 1.0)

	opt := testOptions(t, in)
	opt.OutputDir = out
	opt.Plot.Format = "svg"
	opt.SummaryXLSX = true
	opt.Manifest = true
	opt.Quiet = true

	var buf bytes.Buffer
	res, err := Run(context.Background(), opt, zap.NewNop(), &buf)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	assert.FileExists(t, filepath.Join(out, "Cry1_cosinor.svg"))
	assert.FileExists(t, filepath.Join(out, "cosinor_summary.xlsx"))
	require.Equal(t, filepath.Join(out, ManifestName), res.ManifestPath)

	b, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Len(t, m["outputs"], 3)
	assert.Len(t, m["genes"], 1)
}

func TestManifestStartTimeIsRunStart(t *testing.T) {
	dir := t.TempDir()
	writeGene(t, dir, "Per2", 1.0, 0.5, 2.0)
	writeGene(t, dir, "Cry2", 1.2, 0.3, 4.0)
	opt := testOptions(t, dir)
	opt.Manifest = true
	opt.Quiet = true

	before := time.Now()
	res, err := Run(context.Background(), opt, zap.NewNop(), nil)
	require.NoError(t, err)

	b, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	var m struct {
		StartedAt  time.Time `json:"started_at"`
		FinishedAt time.Time `json:"finished_at"`
	}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.True(t, m.StartedAt.Equal(res.StartedAt.Round(0)), "started_at %v, run start %v", m.StartedAt, res.StartedAt)
	assert.False(t, m.StartedAt.Before(before.Round(0)))
	assert.True(t, m.StartedAt.Before(m.FinishedAt), "started_at %v not before finished_at %v", m.StartedAt, m.FinishedAt)
}

func TestRunNoSummaryNoFigures(t *testing.T) {
	dir := t.TempDir()
	writeGene(t, dir, "Dbp", 1, 0.3, 0)
	opt := testOptions(t, dir)
	opt.SaveFigures = false
	opt.SaveSummary = false

	res, err := Run(context.Background(), opt, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Len())
	assert.Empty(t, res.Figures)
	assert.NoFileExists(t, filepath.Join(dir, "cosinor_summary.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "Dbp_cosinor.png"))
}

func TestRunFailingGene(t *testing.T) {
	dir := t.TempDir()
	writeGene(t, dir, "Per1", 1, 0.5, 1)
	short := "ZT\texpression ratio (goi/hk)\n0\t1.0\n6\t1.2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Short.tsv"), []byte(short), 0o644))

	opt := testOptions(t, dir)
	opt.SaveFigures = false
	_, err := Run(context.Background(), opt, zap.NewNop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Short")

	opt.KeepGoing = true
	res, err := Run(context.Background(), opt, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Len())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Short")
}

func TestRunNoInputs(t *testing.T) {
	_, err := Run(context.Background(), testOptions(t, t.TempDir()), zap.NewNop(), nil)
	assert.True(t, errors.Is(err, dataset.ErrNoInputs))
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeGene(t, dir, "Per3", 1, 0.5, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, testOptions(t, dir), zap.NewNop(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestXLSXName(t *testing.T) {
	assert.Equal(t, "cosinor_summary.xlsx", xlsxName(""))
	assert.Equal(t, "run1.xlsx", xlsxName("run1.csv"))
}
