// Package fitjob renders batch-submission scripts for the external
// redshift fitter, one per sampled tile. Submitting the scripts and
// scheduling them across the cluster is the site batch system's job, not
// ours; we only generate the files and can run the fitter locally for
// smoke tests.
package fitjob

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"zqa-pipeline/internal/model"
)

// Config describes how to invoke the fitter for one template set
type Config struct {
	Fitter      string // fitter executable
	TemplateDir string // template-set directory passed to the fitter
	OutDir      string // per-tile outputs land under here
	Account     string // batch allocation account
	Walltime    string // e.g. "00:30:00"
}

const batchScriptTemplate = `#!/bin/bash
#SBATCH --account={{.Account}}
#SBATCH --qos=regular
#SBATCH --nodes=1
#SBATCH --time={{.Walltime}}
#SBATCH --job-name=zqa-fit-{{.TileID}}
#SBATCH --output={{.OutDir}}/fit-{{.TileID}}-%j.log

export RR_TEMPLATE_DIR={{.TemplateDir}}

mkdir -p {{.OutDir}}/{{.TileID}}
{{.Fitter}} --tile {{.TileID}} --outdir {{.OutDir}}/{{.TileID}}
`

type scriptParams struct {
	Config
	TileID int64
}

// WriteScripts renders one submission script per sampled tile and returns
// the script paths in sample order. Existing scripts are kept unless
// overwrite is set.
func WriteScripts(sample *model.SampleResult, cfg Config, overwrite bool) ([]string, error) {
	if cfg.Fitter == "" {
		return nil, fmt.Errorf("fitter executable is required")
	}
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create fit output directory: %w", err)
	}

	tmpl, err := template.New("batch").Parse(batchScriptTemplate)
	if err != nil {
		return nil, fmt.Errorf("bad batch script template: %w", err)
	}

	// The same tile can represent several band combinations; render its
	// script once.
	seen := make(map[int64]bool)
	var paths []string
	for _, tileID := range sample.TileIDs {
		if seen[tileID] {
			continue
		}
		seen[tileID] = true

		path := filepath.Join(cfg.OutDir, fmt.Sprintf("fit-tile-%d.sh", tileID))
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
				continue
			}
		}

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create script %s: %w", path, err)
		}
		execErr := tmpl.Execute(file, scriptParams{Config: cfg, TileID: tileID})
		closeErr := file.Close()
		if execErr != nil {
			return nil, fmt.Errorf("failed to render script %s: %w", path, execErr)
		}
		if closeErr != nil {
			return nil, closeErr
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// RunLocal invokes the fitter directly for one tile, bypassing the batch
// system. Used for smoke-testing a template set before a full submission.
func RunLocal(ctx context.Context, cfg Config, tileID int64) error {
	tileDir := filepath.Join(cfg.OutDir, fmt.Sprintf("%d", tileID))
	if err := os.MkdirAll(tileDir, 0755); err != nil {
		return fmt.Errorf("failed to create tile output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, cfg.Fitter,
		"--tile", fmt.Sprintf("%d", tileID),
		"--outdir", tileDir)
	cmd.Env = append(os.Environ(), "RR_TEMPLATE_DIR="+cfg.TemplateDir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("🔧 Running fitter for tile %d\n", tileID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("fitter failed for tile %d: %w", tileID, err)
	}
	return nil
}
