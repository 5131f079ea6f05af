package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"zqa-pipeline/internal/model"
	"zqa-pipeline/internal/stats"
	"zqa-pipeline/internal/store"
	"zqa-pipeline/pkg/utils"
)

// ------------------- Export -------------------

// ExportGrids writes the run's grid sets to the configured export targets.
// Grid cells are always persisted to sqlite by the grid stage; this stage
// handles the flat-file outputs and the output-file bookkeeping.
func ExportGrids(ctx context.Context, in <-chan *stats.GridSet, spec model.QARunSpec, runID string, om *utils.OutputManager) <-chan model.ExportResult {
	out := make(chan model.ExportResult, 10)

	go func() {
		defer close(out)

		// Collect all grid sets first; the file formats need the full run.
		var gridSets []*stats.GridSet
		for gs := range in {
			select {
			case <-ctx.Done():
				return
			default:
				gridSets = append(gridSets, gs)
			}
		}

		if len(gridSets) == 0 {
			return
		}

		fileName := "grids.csv"
		if spec.Export != nil && spec.Export.File != "" {
			fileName = spec.Export.File
		}

		path, err := om.GetOutputFilePath(runID, fileName)
		if err != nil {
			out <- model.ExportResult{Type: "file", Path: fileName, Error: err.Error(), ExportedAt: time.Now()}
			return
		}

		result := exportGridsToFile(path, gridSets, spec.Overwrite)
		if result.Success && !result.Skipped {
			size, _ := om.GetFileSize(path)
			store.SaveOutputFile(runID, filepath.Base(path), path, om.GetFileType(path), size)
		}
		out <- result
	}()

	return out
}

// exportGridsToFile writes grid cells to CSV or JSON based on extension
func exportGridsToFile(path string, gridSets []*stats.GridSet, overwrite bool) model.ExportResult {
	result := model.ExportResult{
		Type:       "file",
		Path:       path,
		ExportedAt: time.Now(),
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			result.Skipped = true
			result.Success = true
			return result
		}
	}

	var recordCount int
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		recordCount, err = writeGridsJSON(path, gridSets)
	default:
		recordCount, err = writeGridsCSV(path, gridSets)
	}

	result.RecordCount = recordCount
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// writeGridsCSV writes one row per (template set, statistic, cell)
func writeGridsCSV(path string, gridSets []*stats.GridSet) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"template_set", "statistic", "spectype", "target_class", "value"}
	if err := writer.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	recordCount := 0
	for _, gs := range gridSets {
		grids := []struct {
			name string
			grid stats.Grid
		}{
			{"count", gs.Count},
			{"purity", gs.Purity},
			{"completeness", gs.Completeness},
			{"outlier_frac", gs.OutlierFrac},
		}
		for _, g := range grids {
			for i, row := range g.grid.Rows {
				for j, col := range g.grid.Cols {
					record := []string{
						gs.TemplateSet,
						g.name,
						row,
						col,
						strconv.FormatFloat(g.grid.Cells[i][j], 'g', -1, 64),
					}
					if err := writer.Write(record); err != nil {
						return recordCount, fmt.Errorf("failed to write row: %w", err)
					}
					recordCount++
				}
			}
		}
	}

	return recordCount, nil
}

// writeGridsJSON writes the grid sets with export metadata
func writeGridsJSON(path string, gridSets []*stats.GridSet) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := map[string]interface{}{
		"export_info": map[string]interface{}{
			"exported_at": time.Now().UTC(),
			"grid_sets":   len(gridSets),
			"export_type": "qa_grids",
		},
		"data": gridSets,
	}

	if err := encoder.Encode(exportData); err != nil {
		return 0, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return len(gridSets), nil
}

// WriteSampleCSV writes the stratified sample as a flat table, one row per
// band combination: the band index for each condition, then the selected
// tile and the number of candidates that matched the combination.
func WriteSampleCSV(path string, res *model.SampleResult, overwrite bool) (model.ExportResult, error) {
	result := model.ExportResult{
		Type:       "csv",
		Path:       path,
		ExportedAt: time.Now(),
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			result.Skipped = true
			result.Success = true
			return result, nil
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return result, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return result, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := make([]string, 0, len(res.Conditions)+2)
	for _, cond := range res.Conditions {
		header = append(header, "BAND_"+cond)
	}
	header = append(header, "TILEID", "MATCH_COUNT")
	if err := writer.Write(header); err != nil {
		return result, fmt.Errorf("failed to write header: %w", err)
	}

	for i := range res.TileIDs {
		record := make([]string, 0, len(header))
		for _, band := range res.Combos[i] {
			record = append(record, strconv.Itoa(band))
		}
		record = append(record,
			strconv.FormatInt(res.TileIDs[i], 10),
			strconv.Itoa(res.MatchCounts[i]))
		if err := writer.Write(record); err != nil {
			return result, fmt.Errorf("failed to write row: %w", err)
		}
		result.RecordCount++
	}

	result.Success = true
	return result, nil
}

// ReadSampleCSV reads a sample table written by WriteSampleCSV. The band
// columns are identified by their BAND_ prefix so extra columns appended
// by hand do not break the parse.
func ReadSampleCSV(path string) (*model.SampleResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample table: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse sample table: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sample table %s is empty", path)
	}

	header := rows[0]
	tileCol, matchCol := -1, -1
	var bandCols []int
	res := &model.SampleResult{}
	for i, name := range header {
		switch {
		case strings.HasPrefix(name, "BAND_"):
			bandCols = append(bandCols, i)
			res.Conditions = append(res.Conditions, strings.TrimPrefix(name, "BAND_"))
		case name == "TILEID":
			tileCol = i
		case name == "MATCH_COUNT":
			matchCol = i
		}
	}
	if tileCol < 0 {
		return nil, fmt.Errorf("sample table %s has no TILEID column", path)
	}

	for _, row := range rows[1:] {
		combo := make([]int, len(bandCols))
		for j, col := range bandCols {
			band, convErr := strconv.Atoi(row[col])
			if convErr != nil {
				return nil, fmt.Errorf("bad band index %q in %s: %w", row[col], path, convErr)
			}
			combo[j] = band
		}
		tileID, convErr := strconv.ParseInt(row[tileCol], 10, 64)
		if convErr != nil {
			return nil, fmt.Errorf("bad tile ID %q in %s: %w", row[tileCol], path, convErr)
		}

		matches := 0
		if matchCol >= 0 {
			matches, _ = strconv.Atoi(row[matchCol])
		}

		res.Combos = append(res.Combos, combo)
		res.TileIDs = append(res.TileIDs, tileID)
		res.MatchCounts = append(res.MatchCounts, matches)
	}

	return res, nil
}
