package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zqa-pipeline/internal/model"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadRecordsCSV(t *testing.T) {
	path := writeTempFile(t, "tiles.csv",
		"tileid,survey,exptime\n1001,main,1200.5\n1002,main,900\n")

	records, err := ReadRecords(context.Background(), model.CatalogSource{Type: "csv", URL: path})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Headers are uppercased, cells typed, provenance stamped.
	assert.Equal(t, 1001, records[0]["TILEID"])
	assert.Equal(t, "main", records[0]["SURVEY"])
	assert.Equal(t, 1200.5, records[0]["EXPTIME"])
	assert.Equal(t, path, records[0]["SOURCE_URL"])
	assert.Equal(t, 900, records[1]["EXPTIME"])
}

func TestReadRecordsJSON(t *testing.T) {
	path := writeTempFile(t, "fits.json",
		`[{"targetid": 42, "z": 0.85, "zwarn": 0}]`)

	records, err := ReadRecords(context.Background(), model.CatalogSource{Type: "json", URL: path})
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, 42.0, records[0]["TARGETID"])
	assert.Equal(t, 0.85, records[0]["Z"])
}

func TestReadRecordsHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"targetid": 7, "z": 1.4}]`))
	}))
	defer srv.Close()

	records, err := ReadRecords(context.Background(), model.CatalogSource{Type: "api", URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7.0, records[0]["TARGETID"])
	assert.Equal(t, srv.URL, records[0]["SOURCE_URL"])
}

func TestReadRecordsErrors(t *testing.T) {
	_, err := ReadRecords(context.Background(), model.CatalogSource{Type: "csv", URL: "does-not-exist.csv"})
	require.Error(t, err)

	_, err = ReadRecords(context.Background(), model.CatalogSource{Type: "fits", URL: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown catalog source type")

	path := writeTempFile(t, "bad.json", `{"not": "an array"}`)
	_, err = ReadRecords(context.Background(), model.CatalogSource{Type: "json", URL: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array of records")
}
