package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"cellscript/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(ref string) types.Address { return types.MustParseAddress(ref, "Sheet1") }

// exercise runs the SourceStore contract against s.
func exercise(t *testing.T, s SourceStore) {
	t.Helper()

	_, err := s.Read(addr("A1"))
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Write(addr("B2"), "y = x * 2"))
	require.NoError(t, s.Write(addr("A1"), "x = 5"))
	require.NoError(t, s.Write(addr("A10"), "z = 1"))
	require.NoError(t, s.Write(addr("Sheet2!A1"), "w = 0"))

	text, err := s.Read(addr("A1"))
	require.NoError(t, err)
	assert.Equal(t, "x = 5", text)

	require.NoError(t, s.Write(addr("A1"), "x = 6"))
	text, _ = s.Read(addr("A1"))
	assert.Equal(t, "x = 6", text)

	list, err := s.List("Sheet1")
	require.NoError(t, err)
	want := []types.Address{addr("A1"), addr("B2"), addr("A10")}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	containers, err := s.Containers()
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Sheet2"}, containers)

	ok, err := s.Exists(addr("B2"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(addr("B2")))
	ok, _ = s.Exists(addr("B2"))
	assert.False(t, ok)
	require.NoError(t, s.Delete(addr("B2")), "deleting a missing cell is not an error")

	if ns, ok := s.(NameStore); ok {
		require.NoError(t, ns.DefineName("prices", "Sheet1!A1:A3"))
		require.NoError(t, ns.DefineName("prices", "Sheet1!A1:A4"))
		names, err := ns.Names()
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"prices": "Sheet1!A1:A4"}, names)

		require.NoError(t, ns.RemoveName("prices"))
		require.NoError(t, ns.RemoveName("prices"))
		names, _ = ns.Names()
		assert.Empty(t, names)
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	for _, driver := range []string{DriverCgo, DriverPure} {
		t.Run(driver, func(t *testing.T) {
			s, err := NewSQLiteStore(driver, ":memory:")
			require.NoError(t, err)
			defer s.Close()
			assert.Equal(t, driver, s.Driver())
			exercise(t, s)
		})
	}
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cells.db")

	s, err := NewSQLiteStore(DriverPure, path)
	require.NoError(t, err)
	require.NoError(t, s.Write(addr("C3"), "c = 3"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(DriverPure, path)
	require.NoError(t, err)
	defer s.Close()
	text, err := s.Read(addr("C3"))
	require.NoError(t, err)
	assert.Equal(t, "c = 3", text)
}

func TestSQLiteStore_Revision(t *testing.T) {
	s, err := NewSQLiteStore(DriverPure, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Revision(addr("A1"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Write(addr("A1"), "x = 1"))
	require.NoError(t, s.Write(addr("A1"), "x = 2"))
	rev, err := s.Revision(addr("A1"))
	require.NoError(t, err)
	assert.Equal(t, 2, rev)
}

func TestSQLiteStore_MigratesOlderDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open(DriverPure, path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE cell_sources (
		container TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		col_index INTEGER NOT NULL,
		source TEXT NOT NULL,
		PRIMARY KEY (container, row_index, col_index)
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO cell_sources VALUES ('Sheet1', 0, 0, 'x = 1')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := NewSQLiteStore(DriverPure, path)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, columnExists(s.db, "cell_sources", "revision"))
	assert.True(t, columnExists(s.db, "cell_sources", "updated_at"))

	rev, err := s.Revision(addr("A1"))
	require.NoError(t, err)
	assert.Equal(t, 1, rev)

	require.NoError(t, s.Write(addr("A1"), "x = 2"))
	rev, _ = s.Revision(addr("A1"))
	assert.Equal(t, 2, rev)
	require.NoError(t, RunMigrations(s.db), "migrations are idempotent")
}

func TestSQLiteStore_UnknownDriver(t *testing.T) {
	_, err := NewSQLiteStore("postgres", ":memory:")
	require.Error(t, err)
}

func TestFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFileStore(fs, "/wb/book.yaml")
	require.NoError(t, err)
	exercise(t, s)

	reopened, err := NewFileStore(fs, "/wb/book.yaml")
	require.NoError(t, err)
	text, err := reopened.Read(addr("A1"))
	require.NoError(t, err)
	assert.Equal(t, "x = 6", text)

	exists, _ := afero.Exists(fs, "/wb/book.yaml.tmp")
	assert.False(t, exists)
}

func TestFileStore_LooseKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/book.yaml", []byte(`
sheets:
  Sheet1:
    a1: "x = 1"
    $B$2: "y = 2"
`), 0644))

	s, err := NewFileStore(fs, "/book.yaml")
	require.NoError(t, err)

	text, err := s.Read(addr("A1"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1", text)

	require.NoError(t, s.Write(addr("B2"), "y = 3"))
	doc, err := ReadDocument(fs, "/book.yaml")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a1": "x = 1", "$B$2": "y = 3"}, doc.Sheets["Sheet1"])
}

func TestParseDocument_ReportsEveryProblem(t *testing.T) {
	_, err := ParseDocument([]byte(`
sheets:
  Sheet1:
    A1: "x = 1"
    nope: "y"
    "3C": "z"
names:
  bad: "A1:B2:C3"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 errors occurred")
}

func TestDocument_Cells(t *testing.T) {
	doc, err := ParseDocument([]byte(`
sheets:
  Sheet1:
    A1: "x = 1"
  Data:
    B2: "y = 2"
names:
  prices: Sheet1!A1:A3
`))
	require.NoError(t, err)

	want := map[types.Address]string{
		types.At("Sheet1", 0, 0): "x = 1",
		types.At("Data", 1, 1):   "y = 2",
	}
	if diff := cmp.Diff(want, doc.Cells()); diff != "" {
		t.Errorf("Cells mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Data", "Sheet1"}, doc.SheetNames())
	assert.Equal(t, "Sheet1!A1:A3", doc.Names["prices"])
}

func TestReadDocument_Missing(t *testing.T) {
	doc, err := ReadDocument(afero.NewMemMapFs(), "/none.yaml")
	require.NoError(t, err)
	assert.Empty(t, doc.Sheets)
}
