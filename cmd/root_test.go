package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/report"
	"github.com/sells-group/portfolio-cli/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"scrape", "show", "history", "export", "serve", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "portfolio-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		def  string
	}{
		{"scrape", "save", "false"},
		{"scrape", "format", "table"},
		{"show", "at", ""},
		{"history", "from", ""},
		{"history", "to", ""},
		{"export", "format", "xlsx"},
		{"export", "out", "portfolio.xlsx"},
		{"serve", "port", "0"},
		{"serve", "schedule", "false"},
	}
	for _, tt := range tests {
		c, _, err := rootCmd.Find([]string{tt.cmd})
		require.NoError(t, err)
		f := c.Flags().Lookup(tt.flag)
		require.NotNil(t, f, "%s should have --%s", tt.cmd, tt.flag)
		assert.Equal(t, tt.def, f.DefValue, "%s --%s", tt.cmd, tt.flag)
	}
}

func TestParseDateRange(t *testing.T) {
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	from, to, err := parseDateRange("2025-03-01", "2025-03-03", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 3, 3, 23, 59, 59, 999_000_000, time.UTC), to)

	from, to, err = parseDateRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), from.Unix())
	assert.Equal(t, time.Date(2025, 3, 5, 23, 59, 59, 999_000_000, time.UTC), to)

	_, _, err = parseDateRange("03/01/2025", "", now)
	assert.Error(t, err)

	_, _, err = parseDateRange("2025-03-04", "2025-03-01", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is after")
}

// setupWorkspace points the CLI at a fresh SQLite database in a temp dir.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	dbPath := filepath.Join(dir, "portfolio.db")
	t.Setenv("PORTFOLIO_STORE_DRIVER", "sqlite")
	t.Setenv("PORTFOLIO_STORE_DATABASE_URL", dbPath)
	t.Setenv("PORTFOLIO_LOG_LEVEL", "error")
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func seedSnapshot(t *testing.T, dbPath string, at time.Time) {
	t.Helper()
	repo, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer repo.Close() //nolint:errcheck
	require.NoError(t, repo.Migrate(context.Background()))

	h, err := model.NewStock(model.Position{
		TickerCode:       "9432",
		Name:             "日本電信電話",
		Quantity:         1000,
		AcquisitionPrice: 150,
		CurrentPrice:     160,
		AccountType:      model.AccountNISAGrowth,
	}, model.StockDetails{})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), model.NewPortfolio([]model.Holding{h}, at)))
}

func TestMigrateThenEmptyHistory(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "migrate")
	require.NoError(t, err)

	out, err := execute(t, "history", "--from", "2025-01-01", "--to", "2025-01-31", "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "No snapshots found.")
}

func TestShow_NoSnapshot(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "show", "--at", "", "--format", "table")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestShow_Latest(t *testing.T) {
	dbPath := setupWorkspace(t)
	seedSnapshot(t, dbPath, time.Date(2025, 3, 3, 6, 30, 0, 0, time.UTC))

	out, err := execute(t, "show", "--at", "", "--format", "json")
	require.NoError(t, err)

	var s report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 160000.0, s.TotalValue)
	assert.Equal(t, "nisa_growth", s.Positions[0].AccountType)
}

func TestShow_BadAt(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "show", "--at", "yesterday", "--format", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --at")
}

func TestExport_JSONFile(t *testing.T) {
	dbPath := setupWorkspace(t)
	seedSnapshot(t, dbPath, time.Date(2025, 3, 3, 6, 30, 0, 0, time.UTC))
	seedSnapshot(t, dbPath, time.Date(2025, 3, 4, 6, 30, 0, 0, time.UTC))

	outPath := filepath.Join(filepath.Dir(dbPath), "exports", "history.json")
	_, err := execute(t, "export", "--format", "json", "--from", "2025-03-01", "--to", "2025-03-31", "--out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var ss []report.Summary
	require.NoError(t, json.Unmarshal(data, &ss))
	require.Len(t, ss, 2)
	assert.True(t, ss[0].SnapshotAt.Before(ss[1].SnapshotAt))
}

func TestExport_RejectsTable(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "export", "--format", "table", "--from", "", "--to", "", "--out", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table output")
}

func TestScrape_RejectsXLSX(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "scrape", "--format", "xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export command")
}
