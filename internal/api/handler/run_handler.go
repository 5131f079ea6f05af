package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"zqa-pipeline/internal/model"
	"zqa-pipeline/internal/pipeline"
	"zqa-pipeline/internal/store"
	"zqa-pipeline/pkg/utils"
)

// Handler serves the QA-run API. The output manager is injected so the
// download paths follow whatever base directory the server was started
// with.
type Handler struct {
	OM *utils.OutputManager
}

func New(om *utils.OutputManager) *Handler {
	return &Handler{OM: om}
}

// runIDFromPath extracts the run ID between a prefix and an optional suffix
func runIDFromPath(path, suffix string) (string, bool) {
	prefix := "/api/v1/runs/"
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	runID := path[len(prefix) : len(path)-len(suffix)]
	return runID, runID != ""
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// CreateRun creates a new QA comparison run
// @Summary Create a new QA run
// @Description Create and start a template-set comparison run with the provided configuration
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.QARunSpec true "Run configuration"
// @Success 200 {object} map[string]interface{} "Run created successfully"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.QARunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	// 1. Validate payload
	if spec.Truth.URL == "" {
		http.Error(w, "A truth catalog is required", http.StatusBadRequest)
		return
	}
	if len(spec.Fits) == 0 {
		http.Error(w, "At least one fit catalog is required", http.StatusBadRequest)
		return
	}

	// 2. Generate run ID
	runID := uuid.New().String()

	// 3. Save run to DB
	if err := store.SaveRun(runID, spec); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	// 4. Start the run asynchronously
	ctx, cancel := context.WithTimeout(context.Background(),
		utils.ParseDuration(spec.Concurrency.RunTimeout, 10*time.Minute))

	go func() {
		defer cancel() // cancel context when the run completes
		if err := pipeline.Run(ctx, runID, spec, h.OM); err != nil {
			store.SaveRunError(runID, err)
		}
	}()

	// 5. Return response
	writeJSON(w, map[string]interface{}{
		"message":   "QA run created successfully!",
		"runID":     runID,
		"status":    "pending",
		"createdAt": time.Now().UTC(),
	})
}

// ListRuns retrieves all QA runs
// @Summary List all runs
// @Description Get a list of all QA runs with their current status
// @Tags runs
// @Produce json
// @Success 200 {array} map[string]interface{} "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// GetRun retrieves a specific QA run
// @Summary Get run
// @Description Retrieve details of a specific QA run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, run)
}

// GetRunErrors retrieves errors for a run
// @Summary Get run errors
// @Description Retrieve all errors recorded during a QA run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/errors")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	errors, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": runID,
		"errors": errors,
		"count":  len(errors),
	})
}

// GetRunGrids retrieves the QA grid cells for a run
// @Summary Get run grids
// @Description Retrieve every grid cell (per template set and statistic) for a QA run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Grid cells"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/grids [get]
func (h *Handler) GetRunGrids(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/grids")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	cells, err := store.GetGridCells(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve grids", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": runID,
		"cells":  cells,
		"count":  len(cells),
	})
}

// GetRunSample retrieves the sampled tiles for a run
// @Summary Get sampled tiles
// @Description Retrieve the stratified tile sample drawn by a sampling run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Sampled tiles"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/sample [get]
func (h *Handler) GetRunSample(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/sample")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	tiles, err := store.GetSampleTiles(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve sample", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": runID,
		"tiles":  tiles,
		"count":  len(tiles),
	})
}

// GET /api/v1/runs/{id}/logs
func (h *Handler) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/logs")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	logs, err := store.GetRunLogs(runID, limit)
	if err != nil {
		http.Error(w, "Failed to retrieve logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": runID,
		"logs":   logs,
		"count":  len(logs),
		"limit":  limit,
	})
}

// GET /api/v1/runs/{id}/metrics
func (h *Handler) GetRunMetrics(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/metrics")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	metrics, err := store.GetRunMetrics(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve metrics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id":  runID,
		"metrics": metrics,
	})
}

// GET /api/v1/runs/{id}/progress
func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/progress")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	progress, err := store.GetStageProgress(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id":   runID,
		"progress": progress,
		"count":    len(progress),
	})
}

// GetRunSummary retrieves the full run summary
func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/summary")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	summary, err := store.GetRunSummary(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

// RetryRun re-executes a run with its stored configuration
// @Summary Retry run
// @Description Re-execute a QA run with the same configuration, overwriting its outputs
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Retry initiated"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/retry [post]
func (h *Handler) RetryRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/retry")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	spec, err := store.GetRunSpec(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	// Retrying regenerates outputs regardless of the stored flag.
	spec.Overwrite = true

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			utils.ParseDuration(spec.Concurrency.RunTimeout, 10*time.Minute))
		defer cancel()
		if err := pipeline.Run(ctx, runID, spec, h.OM); err != nil {
			fmt.Printf("❌ Retry failed for run %s: %v\n", runID, err)
		} else {
			fmt.Printf("✅ Retry successful for run %s\n", runID)
		}
	}()

	writeJSON(w, map[string]interface{}{
		"message": "Retry initiated",
		"run_id":  runID,
		"status":  "retrying",
	})
}

// CancelRun cancels a running QA run
// @Summary Cancel run
// @Description Mark a pending or running QA run as cancelled
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run cancelled"
// @Failure 400 {object} map[string]interface{} "Run not cancellable"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id}/cancel [patch]
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "/cancel")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	status, ok := run["status"].(string)
	if !ok {
		http.Error(w, "Invalid run status", http.StatusInternalServerError)
		return
	}
	if status == "completed" || status == "failed" || status == "cancelled" {
		http.Error(w, fmt.Sprintf("Run is already %s and cannot be cancelled", status), http.StatusBadRequest)
		return
	}

	if err := store.UpdateRunStatus(runID, "cancelled"); err != nil {
		http.Error(w, "Failed to cancel run", http.StatusInternalServerError)
		return
	}

	store.SaveRunLog(runID, "run", "info", "Run cancelled by user", map[string]interface{}{
		"cancelled_at":    time.Now(),
		"previous_status": status,
	})

	writeJSON(w, map[string]interface{}{
		"message": "Run cancelled successfully",
		"run_id":  runID,
		"status":  "cancelled",
	})
}

// DeleteRun deletes a run and its artifacts
// @Summary Delete run
// @Description Delete a QA run and all its associated files and data
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run deleted"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [delete]
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(r.URL.Path, "")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	if _, err := store.GetRun(runID); err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	files, err := store.GetOutputFiles(runID)
	if err != nil {
		store.SaveRunLog(runID, "run", "warning", "Failed to list files for deletion", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for _, file := range files {
		if filePath, ok := file["file_path"].(string); ok {
			if err := os.Remove(filePath); err != nil {
				store.SaveRunLog(runID, "run", "warning", "Failed to delete file", map[string]interface{}{
					"file_path": filePath,
					"error":     err.Error(),
				})
			}
		}
	}

	if runDir, err := h.OM.CreateRunOutputDir(runID); err == nil {
		os.RemoveAll(runDir)
	}

	if err := store.DeleteRun(runID); err != nil {
		http.Error(w, "Failed to delete run from database", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"message":       "Run and all artifacts deleted successfully",
		"run_id":        runID,
		"files_deleted": len(files),
	})
}

// DownloadFile serves a run output file for download
// @Summary Download file
// @Description Download a specific output file from a QA run
// @Tags files
// @Produce application/octet-stream
// @Param runID path string true "Run ID"
// @Param filename path string true "File name"
// @Success 200 {file} file "File download"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /download/{runID}/{filename} [get]
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	// URL format: /api/v1/download/runID/filename
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 5 {
		http.Error(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	runID := pathParts[3]
	fileName := pathParts[4]

	filePath, err := h.OM.GetOutputFilePath(runID, fileName)
	if err != nil {
		http.Error(w, "Failed to resolve file path", http.StatusInternalServerError)
		return
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, filePath)
}

// GetFileInfo retrieves information about one output file or a run's files
// @Summary Get file information
// @Description Get information about a file by numeric ID, or all files for a run ID
// @Tags files
// @Produce json
// @Param id path string true "File ID (numeric) or Run ID (UUID)"
// @Success 200 {object} map[string]interface{} "File information"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /files/{id} [get]
func (h *Handler) GetFileInfo(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 {
		http.Error(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	idStr := pathParts[3]

	if fileID, err := strconv.Atoi(idStr); err == nil {
		fileInfo, err := store.GetOutputFileByID(fileID)
		if err != nil {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		writeJSON(w, fileInfo)
		return
	}

	// Not a numeric ID: treat as run ID and list its files
	files, err := store.GetOutputFiles(idStr)
	if err != nil {
		http.Error(w, "Failed to retrieve files", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"run_id": idStr,
		"files":  files,
		"count":  len(files),
	})
}
