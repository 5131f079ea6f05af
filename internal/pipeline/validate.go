package pipeline

import (
	"context"
	"fmt"
	"sync"

	"zqa-pipeline/internal/catalog"
)

// Redshifts outside this window are catalog damage, not physics: the
// survey's deepest quasars sit well below z=10.
const (
	minValidZ = -0.01
	maxValidZ = 10.0
)

// ValidateRecords converts raw catalog rows into typed object records and
// drops the ones that fail sanity checks. Truth rows and fit rows carry
// different required columns, so conversion dispatches on the catalog tag.
func ValidateRecords(
	ctx context.Context,
	in <-chan taggedRecord,
	out chan<- taggedObject,
	errs chan<- error,
	workerCount int,
	tracker *RunTracker,
) {
	var wg sync.WaitGroup
	wg.Add(workerCount)

	// Track validation stats
	var validCount, invalidCount int64
	var mu sync.Mutex

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			defer wg.Done()
			workerValidCount := 0
			workerInvalidCount := 0

			for rec := range in {
				select {
				case <-ctx.Done():
					return
				default:
					obj, err := convertRecord(rec)
					if err == nil {
						err = validateObject(obj)
					}
					if err != nil {
						workerInvalidCount++
						tracker.RecordInvalid(rec.catalogName, err)
						if workerInvalidCount <= 5 {
							fmt.Printf("❌ Validation Worker %d: Invalid record from %s - %v\n", workerID, rec.catalogName, err)
						}
						errs <- fmt.Errorf("validation failed for catalog %s: %w", rec.catalogName, err)
						continue
					}

					select {
					case <-ctx.Done():
						return
					case out <- obj:
						workerValidCount++
						tracker.RecordValid(rec.catalogName)
					}
				}
			}

			// Update global counters
			mu.Lock()
			validCount += int64(workerValidCount)
			invalidCount += int64(workerInvalidCount)
			mu.Unlock()
		}(i)
	}

	// Close the output channel only AFTER all workers finish
	go func() {
		wg.Wait()
		mu.Lock()
		fmt.Printf("🔍 Validation Summary: %d valid records, %d invalid records\n", validCount, invalidCount)
		mu.Unlock()
		close(out)
	}()
}

// convertRecord dispatches row conversion on the catalog the row came from
func convertRecord(rec taggedRecord) (taggedObject, error) {
	if rec.catalogName == truthCatalog {
		obj, err := catalog.TruthFromRecord(rec.rec)
		return taggedObject{catalogName: rec.catalogName, obj: obj}, err
	}
	obj, err := catalog.FitFromRecord(rec.rec, rec.catalogName)
	return taggedObject{catalogName: rec.catalogName, obj: obj}, err
}

// validateObject applies sanity checks shared by truth and fit records
func validateObject(t taggedObject) error {
	if t.obj.TargetID <= 0 {
		return fmt.Errorf("non-positive TARGETID %d", t.obj.TargetID)
	}
	if t.catalogName == truthCatalog {
		if t.obj.ZTrue < minValidZ || t.obj.ZTrue > maxValidZ {
			return fmt.Errorf("truth redshift %g out of range for TARGETID %d", t.obj.ZTrue, t.obj.TargetID)
		}
		return nil
	}
	if t.obj.Z < minValidZ || t.obj.Z > maxValidZ {
		return fmt.Errorf("measured redshift %g out of range for TARGETID %d", t.obj.Z, t.obj.TargetID)
	}
	if t.obj.ZWarn < 0 {
		return fmt.Errorf("negative ZWARN %d for TARGETID %d", t.obj.ZWarn, t.obj.TargetID)
	}
	return nil
}
