package retention

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fgeck/localbackup/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testSettings() models.LogSettings {
	return models.LogSettings{KeepPerGroup: 2, PrefixLen: 4}
}

// writeLog creates name in dir with the given modification time.
func writeLog(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("log"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestGroupKey(t *testing.T) {
	assert.Equal(t, "acct", GroupKey("acct_2024-01-01.log", 4))
	assert.Equal(t, "ab", GroupKey("ab", 4))
	assert.Equal(t, "", GroupKey("", 4))
	assert.Equal(t, "Sich", GroupKey("Sicherung.log", 4))
	assert.Equal(t, "äöüß", GroupKey("äöüß-run.log", 4))
}

func TestPrune_KeepsNewestPerGroup(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	writeLog(t, dir, "acctA.log", base.Add(1*time.Hour))
	writeLog(t, dir, "acctB.log", base.Add(2*time.Hour))
	writeLog(t, dir, "acctC.log", base.Add(3*time.Hour))
	writeLog(t, dir, "docsA.log", base.Add(1*time.Hour))

	svc := New(testLogger(), testSettings())
	result, err := svc.Prune(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"acctA.log"}, result.Deleted)
	assert.ElementsMatch(t, []string{"acctB.log", "acctC.log", "docsA.log"}, result.Kept)
	assert.Empty(t, result.Errors)
	assert.ElementsMatch(t, []string{"acctB.log", "acctC.log", "docsA.log"}, listDir(t, dir))
}

func TestPrune_Idempotent(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"run_1.log", "run_2.log", "run_3.log", "run_4.log"} {
		writeLog(t, dir, name, base.Add(time.Duration(i)*time.Hour))
	}

	svc := New(testLogger(), testSettings())

	first, err := svc.Prune(context.Background(), dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"run_1.log", "run_2.log"}, first.Deleted)

	second, err := svc.Prune(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, second.Deleted)
	assert.ElementsMatch(t, []string{"run_3.log", "run_4.log"}, listDir(t, dir))
}

func TestPrune_ShortNamesGroupByWholeName(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	writeLog(t, dir, "ab", base)
	writeLog(t, dir, "abc", base.Add(time.Hour))
	writeLog(t, dir, "x", base.Add(2*time.Hour))

	svc := New(testLogger(), models.LogSettings{KeepPerGroup: 1, PrefixLen: 4})
	result, err := svc.Prune(context.Background(), dir)

	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Len(t, result.Kept, 3)
}

func TestPrune_IgnoresSubdirectories(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sub := filepath.Join(dir, "acct_archive")
	require.NoError(t, os.Mkdir(sub, 0o750))
	writeLog(t, sub, "acct_old.log", base)

	writeLog(t, dir, "acct_1.log", base.Add(1*time.Hour))
	writeLog(t, dir, "acct_2.log", base.Add(2*time.Hour))

	svc := New(testLogger(), testSettings())
	result, err := svc.Prune(context.Background(), dir)

	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.DirExists(t, sub)
	assert.FileExists(t, filepath.Join(sub, "acct_old.log"))
}

func TestPrune_EmptyDirectory(t *testing.T) {
	svc := New(testLogger(), testSettings())
	result, err := svc.Prune(context.Background(), t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Kept)
}

func TestPrune_MissingDirectory(t *testing.T) {
	svc := New(testLogger(), testSettings())
	_, err := svc.Prune(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read log directory")
}

func TestPlan_DoesNotDelete(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	writeLog(t, dir, "acctA.log", base.Add(1*time.Hour))
	writeLog(t, dir, "acctB.log", base.Add(2*time.Hour))
	writeLog(t, dir, "acctC.log", base.Add(3*time.Hour))

	svc := New(testLogger(), testSettings())
	decisions, err := svc.Plan(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, "acctC.log", decisions[0].Record.FileName)
	assert.Equal(t, 1, decisions[0].Position)
	assert.True(t, decisions[0].Keep)

	assert.Equal(t, "acctB.log", decisions[1].Record.FileName)
	assert.Equal(t, 2, decisions[1].Position)
	assert.True(t, decisions[1].Keep)

	assert.Equal(t, "acctA.log", decisions[2].Record.FileName)
	assert.Equal(t, 3, decisions[2].Position)
	assert.False(t, decisions[2].Keep)

	assert.Len(t, listDir(t, dir), 3)
}

func TestDecide_GroupsAreOrderedByKey(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []models.LogFileRecord{
		{FileName: "zzzz1", GroupKey: "zzzz", LastModified: base},
		{FileName: "aaaa1", GroupKey: "aaaa", LastModified: base},
		{FileName: "aaaa2", GroupKey: "aaaa", LastModified: base.Add(time.Hour)},
	}

	svc := New(testLogger(), models.LogSettings{KeepPerGroup: 1, PrefixLen: 4})
	decisions := svc.Decide(records)

	require.Len(t, decisions, 3)
	assert.Equal(t, "aaaa2", decisions[0].Record.FileName)
	assert.True(t, decisions[0].Keep)
	assert.Equal(t, "aaaa1", decisions[1].Record.FileName)
	assert.False(t, decisions[1].Keep)
	assert.Equal(t, "zzzz1", decisions[2].Record.FileName)
	assert.Equal(t, 1, decisions[2].Position)
	assert.True(t, decisions[2].Keep)
}
