package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"zqa-pipeline/internal/fitjob"
	"zqa-pipeline/internal/model"
	"zqa-pipeline/internal/pipeline"
	"zqa-pipeline/internal/store"
	"zqa-pipeline/pkg/utils"
)

var dbPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "zqa",
		Short: "Redshift template-set QA pipeline",
		Long: `zqa runs the redshift quality-assurance pipeline: draw a stratified
tile sample from an observing-conditions catalog, generate batch scripts
for the external redshift fitter, and compare the fitted catalogs against
a truth table as purity/completeness/outlier grids.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return store.InitDB(dbPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "zqa.db", "sqlite database for run tracking")

	rootCmd.AddCommand(newSampleCmd())
	rootCmd.AddCommand(newFitJobsCmd())
	rootCmd.AddCommand(newQACmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newSampleCmd() *cobra.Command {
	var (
		tilesURL   string
		conditions []string
		seed       uint64
		survey     string
		program    string
		minEffTime float64
		outFile    string
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw a stratified tile sample from a tiles catalog",
		Long: `Reads a tiles catalog, splits each observing condition into three
percentile bands and selects one random tile for every band combination.
The sample is written as a CSV table and recorded in the run database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tilesURL == "" {
				return fmt.Errorf("--tiles is required")
			}
			if len(conditions) == 0 {
				return fmt.Errorf("--conditions is required")
			}

			spec := model.SampleSpec{
				Tiles:      model.CatalogSource{Type: sourceTypeFor(tilesURL), URL: tilesURL},
				Conditions: conditions,
				Seed:       seed,
				Survey:     survey,
				Program:    program,
				MinEffTime: minEffTime,
				OutFile:    outFile,
				Overwrite:  overwrite,
			}

			runID := uuid.New().String()
			if err := store.SaveSampleRun(runID, spec); err != nil {
				return fmt.Errorf("failed to record run: %w", err)
			}

			_, err := pipeline.RunSample(cmd.Context(), runID, spec)
			return err
		},
	}

	cmd.Flags().StringVar(&tilesURL, "tiles", "", "tiles catalog (file path or URL)")
	cmd.Flags().StringSliceVar(&conditions, "conditions", nil, "observing-condition columns to stratify on, in order")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for tile selection")
	cmd.Flags().StringVar(&survey, "survey", "", "restrict to tiles from this survey")
	cmd.Flags().StringVar(&program, "program", "", "restrict to tiles from this program")
	cmd.Flags().Float64Var(&minEffTime, "min-efftime", 0, "minimum effective exposure time")
	cmd.Flags().StringVar(&outFile, "out", "sample.csv", "output CSV path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "regenerate outputs that already exist")

	return cmd
}

func newFitJobsCmd() *cobra.Command {
	var (
		samplePath  string
		outDir      string
		fitter      string
		templateDir string
		account     string
		walltime    string
		overwrite   bool
		runTile     int64
	)

	cmd := &cobra.Command{
		Use:   "fitjobs",
		Short: "Generate fitter batch scripts for a tile sample",
		Long: `Reads a sample table produced by "zqa sample" and writes one batch
submission script per distinct tile. With --run, invokes the fitter
locally for a single tile instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := fitjob.Config{
				Fitter:      fitter,
				TemplateDir: templateDir,
				OutDir:      outDir,
				Account:     account,
				Walltime:    walltime,
			}

			if runTile != 0 {
				return fitjob.RunLocal(cmd.Context(), cfg, runTile)
			}

			sample, err := pipeline.ReadSampleCSV(samplePath)
			if err != nil {
				return err
			}

			paths, err := fitjob.WriteScripts(sample, cfg, overwrite)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Wrote %d batch scripts to %s\n", len(paths), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&samplePath, "sample", "sample.csv", "sample table from \"zqa sample\"")
	cmd.Flags().StringVar(&outDir, "outdir", "fitjobs", "directory for batch scripts and fit outputs")
	cmd.Flags().StringVar(&fitter, "fitter", "rrdesi", "fitter executable")
	cmd.Flags().StringVar(&templateDir, "template-dir", "", "template-set directory for the fitter")
	cmd.Flags().StringVar(&account, "account", "desi", "batch allocation account")
	cmd.Flags().StringVar(&walltime, "walltime", "00:30:00", "batch walltime limit")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "regenerate scripts that already exist")
	cmd.Flags().Int64Var(&runTile, "run", 0, "run the fitter locally for this tile instead of writing scripts")

	return cmd
}

func newQACmd() *cobra.Command {
	var (
		specPath  string
		outDir    string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "qa",
		Short: "Compare fitted catalogs against truth and build QA grids",
		Long: `Reads a JSON run configuration describing a truth catalog and one or
more fitted catalogs, cross-matches them by TARGETID, builds
purity/completeness/outlier grids per template set and delta grids
against the reference set, and exports the results.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(specPath)
			if err != nil {
				return fmt.Errorf("failed to read run config: %w", err)
			}

			var spec model.QARunSpec
			if err := json.Unmarshal(data, &spec); err != nil {
				return fmt.Errorf("invalid run config: %w", err)
			}
			if overwrite {
				spec.Overwrite = true
			}

			runID := uuid.New().String()
			if err := store.SaveRun(runID, spec); err != nil {
				return fmt.Errorf("failed to record run: %w", err)
			}

			om := utils.NewOutputManager(outDir)
			if err := om.EnsureOutputDirExists(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(),
				utils.ParseDuration(spec.Concurrency.RunTimeout, 10*time.Minute))
			defer cancel()

			return pipeline.Run(ctx, runID, spec, om)
		},
	}

	cmd.Flags().StringVar(&specPath, "spec", "qa-run.json", "JSON run configuration")
	cmd.Flags().StringVar(&outDir, "outdir", "output", "base directory for run outputs")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "regenerate outputs that already exist")

	return cmd
}

func sourceTypeFor(url string) string {
	switch {
	case strings.HasSuffix(url, ".json"):
		return "json"
	default:
		return "csv"
	}
}
