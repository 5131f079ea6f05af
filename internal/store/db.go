package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"zqa-pipeline/internal/model"
	"zqa-pipeline/internal/stats"
)

var db *sql.DB

// InitDB opens the run database and creates the schema if needed
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			spec TEXT,
			status TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			error_message TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS run_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			level TEXT,
			message TEXT,
			details TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS stage_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			stage TEXT,
			status TEXT,
			started_at DATETIME,
			ended_at DATETIME,
			record_count INTEGER,
			error_count INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS grid_cells (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			template_set TEXT,
			statistic TEXT,
			spectype TEXT,
			target_class TEXT,
			value REAL
		);`,
		`CREATE TABLE IF NOT EXISTS sample_tiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			combo TEXT,
			tileid INTEGER,
			match_count INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS run_metrics (
			run_id TEXT PRIMARY KEY,
			metrics TEXT,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS output_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			file_name TEXT,
			file_path TEXT,
			file_type TEXT,
			file_size INTEGER,
			created_at DATETIME
		);`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return err
		}
	}

	return nil
}

// SaveRun stores a new QA run
func SaveRun(runID string, spec model.QARunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, specJSON, "pending", now, now)
	return err
}

// SaveSampleRun stores a new tile-sampling run
func SaveSampleRun(runID string, spec model.SampleSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, specJSON, "pending", now, now)
	return err
}

// UpdateRunStatus updates run status
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run
func SaveRunError(runID string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// GetRunErrors returns all recorded errors for a run
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var msg string
		var createdAt time.Time
		if err := rows.Scan(&msg, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"message":   msg,
			"createdAt": createdAt,
		})
	}
	return out, rows.Err()
}

// ListRuns returns all runs with basic info
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and status
func GetRun(runID string) (map[string]interface{}, error) {
	var specJSON string
	var status string
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.QARunSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// GetRunSpec fetches just the decoded run spec
func GetRunSpec(runID string) (model.QARunSpec, error) {
	var specJSON string
	var spec model.QARunSpec

	err := db.QueryRow(`SELECT spec FROM runs WHERE id = ?`, runID).Scan(&specJSON)
	if err != nil {
		return spec, err
	}
	err = json.Unmarshal([]byte(specJSON), &spec)
	return spec, err
}

// DeleteRun removes a run and all its derived rows
func DeleteRun(runID string) error {
	stmts := []string{
		`DELETE FROM grid_cells WHERE run_id = ?`,
		`DELETE FROM sample_tiles WHERE run_id = ?`,
		`DELETE FROM output_files WHERE run_id = ?`,
		`DELETE FROM stage_progress WHERE run_id = ?`,
		`DELETE FROM run_logs WHERE run_id = ?`,
		`DELETE FROM run_errors WHERE run_id = ?`,
		`DELETE FROM runs WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt, runID); err != nil {
			return err
		}
	}
	return nil
}

// SaveRunLog stores a structured log line for a run stage
func SaveRunLog(runID, stage, level, message string, details map[string]interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO run_logs (run_id, stage, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, stage, level, message, detailsJSON, now)
	return err
}

// GetRunLogs returns up to limit log lines for a run
func GetRunLogs(runID string, limit int) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT stage, level, message, details, created_at FROM run_logs
		WHERE run_id = ? ORDER BY created_at DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []map[string]interface{}
	for rows.Next() {
		var stage, level, message, detailsJSON string
		var createdAt time.Time
		if err := rows.Scan(&stage, &level, &message, &detailsJSON, &createdAt); err != nil {
			return nil, err
		}
		var details map[string]interface{}
		json.Unmarshal([]byte(detailsJSON), &details)
		logs = append(logs, map[string]interface{}{
			"stage":     stage,
			"level":     level,
			"message":   message,
			"details":   details,
			"createdAt": createdAt,
		})
	}
	return logs, rows.Err()
}

// SaveStageProgress records a stage transition for a run
func SaveStageProgress(runID, stage, status string, startedAt, endedAt *time.Time, recordCount, errorCount int) error {
	_, err := db.Exec(`INSERT INTO stage_progress (run_id, stage, status, started_at, ended_at, record_count, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stage, status, startedAt, endedAt, recordCount, errorCount)
	return err
}

// GetStageProgress returns stage transitions for a run in order
func GetStageProgress(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT stage, status, started_at, ended_at, record_count, error_count
		FROM stage_progress WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []map[string]interface{}
	for rows.Next() {
		var stage, status string
		var startedAt, endedAt sql.NullTime
		var recordCount, errorCount int
		if err := rows.Scan(&stage, &status, &startedAt, &endedAt, &recordCount, &errorCount); err != nil {
			return nil, err
		}
		entry := map[string]interface{}{
			"stage":       stage,
			"status":      status,
			"recordCount": recordCount,
			"errorCount":  errorCount,
		}
		if startedAt.Valid {
			entry["startedAt"] = startedAt.Time
		}
		if endedAt.Valid {
			entry["endedAt"] = endedAt.Time
		}
		progress = append(progress, entry)
	}
	return progress, rows.Err()
}

// SaveGridSet flattens one template set's grids into grid_cells rows
func SaveGridSet(runID string, gs *stats.GridSet) error {
	grids := map[string]stats.Grid{
		"count":        gs.Count,
		"purity":       gs.Purity,
		"completeness": gs.Completeness,
		"outlier_frac": gs.OutlierFrac,
	}
	for statistic, grid := range grids {
		for i, row := range grid.Rows {
			for j, col := range grid.Cols {
				_, err := db.Exec(`INSERT INTO grid_cells (run_id, template_set, statistic, spectype, target_class, value)
					VALUES (?, ?, ?, ?, ?, ?)`,
					runID, gs.TemplateSet, statistic, row, col, grid.Cells[i][j])
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// GetGridCells returns every stored grid cell for a run
func GetGridCells(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT template_set, statistic, spectype, target_class, value
		FROM grid_cells WHERE run_id = ? ORDER BY template_set, statistic, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []map[string]interface{}
	for rows.Next() {
		var templateSet, statistic, spectype, targetClass string
		var value float64
		if err := rows.Scan(&templateSet, &statistic, &spectype, &targetClass, &value); err != nil {
			return nil, err
		}
		cells = append(cells, map[string]interface{}{
			"templateSet": templateSet,
			"statistic":   statistic,
			"spectype":    spectype,
			"targetClass": targetClass,
			"value":       value,
		})
	}
	return cells, rows.Err()
}

// SaveSampleResult stores a stratified sample, one row per band combination
func SaveSampleResult(runID string, res *model.SampleResult) error {
	for i := range res.TileIDs {
		comboJSON, err := json.Marshal(res.Combos[i])
		if err != nil {
			return err
		}
		_, err = db.Exec(`INSERT INTO sample_tiles (run_id, combo, tileid, match_count) VALUES (?, ?, ?, ?)`,
			runID, comboJSON, res.TileIDs[i], res.MatchCounts[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// GetSampleTiles returns a run's sampled tiles in enumeration order
func GetSampleTiles(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT combo, tileid, match_count FROM sample_tiles WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiles []map[string]interface{}
	for rows.Next() {
		var comboJSON string
		var tileID int64
		var matchCount int
		if err := rows.Scan(&comboJSON, &tileID, &matchCount); err != nil {
			return nil, err
		}
		var combo []int
		json.Unmarshal([]byte(comboJSON), &combo)
		tiles = append(tiles, map[string]interface{}{
			"combo":      combo,
			"tileid":     tileID,
			"matchCount": matchCount,
		})
	}
	return tiles, rows.Err()
}

// SaveRunMetrics upserts the metrics snapshot for a run
func SaveRunMetrics(runID string, metrics interface{}) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO run_metrics (run_id, metrics, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET metrics = excluded.metrics, updated_at = excluded.updated_at`,
		runID, metricsJSON, now)
	return err
}

// GetRunMetrics returns the stored metrics snapshot for a run
func GetRunMetrics(runID string) (map[string]interface{}, error) {
	var metricsJSON string
	err := db.QueryRow(`SELECT metrics FROM run_metrics WHERE run_id = ?`, runID).Scan(&metricsJSON)
	if err != nil {
		return nil, err
	}
	var metrics map[string]interface{}
	if err := json.Unmarshal([]byte(metricsJSON), &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// SaveOutputFile records an output artifact produced by a run
func SaveOutputFile(runID, fileName, filePath, fileType string, fileSize int64) error {
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO output_files (run_id, file_name, file_path, file_type, file_size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, fileName, filePath, fileType, fileSize, now)
	return err
}

// GetOutputFiles lists a run's recorded output artifacts
func GetOutputFiles(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, file_name, file_path, file_type, file_size, created_at
		FROM output_files WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []map[string]interface{}
	for rows.Next() {
		var id int
		var fileName, filePath, fileType string
		var fileSize int64
		var createdAt time.Time
		if err := rows.Scan(&id, &fileName, &filePath, &fileType, &fileSize, &createdAt); err != nil {
			return nil, err
		}
		files = append(files, map[string]interface{}{
			"id":        id,
			"file_name": fileName,
			"file_path": filePath,
			"file_type": fileType,
			"file_size": fileSize,
			"createdAt": createdAt,
		})
	}
	return files, rows.Err()
}

// GetOutputFileByID fetches one output artifact row
func GetOutputFileByID(fileID int) (map[string]interface{}, error) {
	var runID, fileName, filePath, fileType string
	var fileSize int64
	var createdAt time.Time

	err := db.QueryRow(`SELECT run_id, file_name, file_path, file_type, file_size, created_at
		FROM output_files WHERE id = ?`, fileID).
		Scan(&runID, &fileName, &filePath, &fileType, &fileSize, &createdAt)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        fileID,
		"run_id":    runID,
		"file_name": fileName,
		"file_path": filePath,
		"file_type": fileType,
		"file_size": fileSize,
		"createdAt": createdAt,
	}, nil
}

// GetRunSummary assembles run status, stage progress, grids and files
func GetRunSummary(runID string) (map[string]interface{}, error) {
	run, err := GetRun(runID)
	if err != nil {
		return nil, err
	}
	progress, _ := GetStageProgress(runID)
	cells, _ := GetGridCells(runID)
	files, _ := GetOutputFiles(runID)
	errors, _ := GetRunErrors(runID)

	return map[string]interface{}{
		"run":        run,
		"progress":   progress,
		"gridCells":  cells,
		"files":      files,
		"errors":     errors,
		"errorCount": len(errors),
	}, nil
}
