package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streetCSV = "Crime ID,Month,Reported by,Falls within,Longitude,Latitude,Location,LSOA code,LSOA name,Crime type,Last outcome category,Context\n" +
	"abc,2024-01,Kent Police,Kent Police,0.521,51.272,On or near High Street,E01024000,Maidstone 001A,Burglary,Under investigation,\n" +
	",2024-01,Kent Police,Kent Police,,,No location,,,Anti-social behaviour,,\n"

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2024-01-kent-street.csv")
	require.NoError(t, os.WriteFile(path, []byte(streetCSV), 0o644))
	return path
}

func TestImportFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	path := writeCSV(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM _crime_records WHERE source_file").
		WithArgs("2024-01-kent-street.csv").
		WillReturnResult(sqlmock.NewResult(0, 7))
	prep := mock.ExpectPrepare("COPY")
	prep.ExpectExec().
		WithArgs("2024-01", "Kent Police", 0.521, 51.272, "Burglary", "2024-01-kent-street.csv").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("2024-01", "Kent Police", nil, nil, "Anti-social behaviour", "2024-01-kent-street.csv").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := ImportFile(context.Background(), db, path)
	require.NoError(t, err)
	assert.Equal(t, Result{File: "2024-01-kent-street.csv", Rows: 2, Replaced: 7}, res)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportFileRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	path := writeCSV(t)

	full := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM _crime_records").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare("COPY")
	prep.ExpectExec().WillReturnError(full)
	mock.ExpectRollback()

	_, err = ImportFile(context.Background(), db, path)
	assert.ErrorIs(t, err, full)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportFileRejectsBadHeader(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	path := filepath.Join(t.TempDir(), "bad-street.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	_, err = ImportFile(context.Background(), db, path)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
