package catalog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"zqa-pipeline/internal/model"
	"zqa-pipeline/pkg/utils"
)

// GenericRecord is a schema-agnostic row from any catalog source
type GenericRecord map[string]interface{}

// ------------------- Ingestion -------------------

// IngestSource starts ingestion for a single catalog source (CSV/JSON/API)
func IngestSource(ctx context.Context, source model.CatalogSource, out chan<- GenericRecord, errs chan<- error) {
	fmt.Printf("➡️ Starting ingestion for catalog: %s (%s)\n", source.URL, source.Type)
	defer fmt.Printf("✅ Finished ingestion for catalog: %s (%s)\n", source.URL, source.Type)

	switch strings.ToLower(source.Type) {
	case "csv":
		ingestCSV(ctx, source.URL, out, errs)
	case "json", "api":
		ingestJSON(ctx, source.URL, out, errs)
	default:
		errs <- fmt.Errorf("unknown catalog source type: %s", source.Type)
	}
}

// StartIngestion ingests all catalog sources in parallel
func StartIngestion(ctx context.Context, sources []model.CatalogSource, out chan<- GenericRecord, errs chan<- error) {
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		go func(s model.CatalogSource) {
			defer wg.Done()
			IngestSource(ctx, s, out, errs)
		}(src)
	}

	wg.Wait() // wait for all ingestion goroutines
}

// ReadRecords ingests a single source synchronously and returns its rows.
// Used by the CLI paths that need the whole catalog in memory (tile
// sampling, gather).
func ReadRecords(ctx context.Context, source model.CatalogSource) ([]GenericRecord, error) {
	out := make(chan GenericRecord, 256)
	errCh := make(chan error, 16)

	go func() {
		IngestSource(ctx, source, out, errCh)
		close(out)
		close(errCh)
	}()

	// Ingestion reports row-level problems as it goes; the first one is
	// enough to fail a synchronous read.
	var firstErr error
	var errWg sync.WaitGroup
	errWg.Add(1)
	go func() {
		defer errWg.Done()
		for err := range errCh {
			if firstErr == nil {
				firstErr = err
			}
		}
	}()

	var records []GenericRecord
	for rec := range out {
		records = append(records, rec)
	}
	errWg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

// openSource opens a local file or an HTTP URL for reading
func openSource(pathOrURL string) (io.ReadCloser, error) {
	if strings.HasPrefix(pathOrURL, "http") {
		resp, err := http.Get(pathOrURL)
		if err != nil {
			return nil, fmt.Errorf("failed to GET catalog: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("catalog fetch returned %s for %s", resp.Status, pathOrURL)
		}
		return resp.Body, nil
	}
	file, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	return file, nil
}

// ------------------- CSV Ingestion -------------------
func ingestCSV(ctx context.Context, pathOrURL string, out chan<- GenericRecord, errs chan<- error) {
	reader, err := openSource(pathOrURL)
	if err != nil {
		errs <- err
		return
	}
	defer reader.Close()

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	headers, err := csvReader.Read()
	if err != nil {
		errs <- fmt.Errorf("failed to read CSV header: %w", err)
		return
	}

	recordCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
			record, err := csvReader.Read()
			if err == io.EOF {
				fmt.Printf("📄 CSV ingestion done: %d records read from %s\n", recordCount, pathOrURL)
				return
			} else if err != nil {
				errs <- fmt.Errorf("CSV read error: %w", err)
				continue
			}

			recMap := make(GenericRecord)
			for i, h := range headers {
				// Clean header names: trim whitespace and quotes,
				// uppercase to match survey column conventions
				cleanHeader := strings.TrimSpace(h)
				cleanHeader = strings.ReplaceAll(cleanHeader, `"`, "")
				cleanHeader = strings.ToUpper(cleanHeader)
				recMap[cleanHeader] = utils.ParseValue(record[i])
			}
			recMap["SOURCE_URL"] = pathOrURL

			select {
			case <-ctx.Done():
				return
			case out <- recMap:
				recordCount++
				if recordCount%500 == 0 {
					fmt.Printf("📄 CSV: Processed %d records from %s\n", recordCount, pathOrURL)
				}
			}
		}
	}
}

// ------------------- JSON / API Ingestion -------------------
func ingestJSON(ctx context.Context, url string, out chan<- GenericRecord, errs chan<- error) {
	reader, err := openSource(url)
	if err != nil {
		errs <- err
		return
	}
	defer reader.Close()

	bodyBytes, err := io.ReadAll(reader)
	if err != nil {
		errs <- fmt.Errorf("failed to read JSON body: %w", err)
		return
	}

	var raw interface{}
	if err := json.Unmarshal(bodyBytes, &raw); err != nil {
		errs <- fmt.Errorf("failed to decode JSON: %w", err)
		return
	}

	recordCount := 0
	switch data := raw.(type) {
	case []interface{}:
		for _, item := range data {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			rec := make(GenericRecord, len(m)+1)
			for k, v := range m {
				rec[strings.ToUpper(strings.TrimSpace(k))] = v
			}
			rec["SOURCE_URL"] = url
			select {
			case <-ctx.Done():
				return
			case out <- rec:
				recordCount++
			}
		}
	default:
		errs <- fmt.Errorf("unexpected JSON structure in %s: want an array of records", url)
		return
	}

	fmt.Printf("🌐 JSON ingestion done: %d records read from %s\n", recordCount, url)
}
