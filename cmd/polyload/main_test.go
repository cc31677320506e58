package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/sink"
	"github.com/ajitpratap0/polyload/pkg/testutil"
)

var (
	memMu    sync.Mutex
	memSinks []*testutil.RecordingSink
)

func init() {
	sink.MustRegister("memory", func(cfg config.SinkConfig) (sink.Sink, error) {
		s := testutil.NewRecordingSink(cfg.Name)
		s.Graph = cfg.Database == "graph"
		memMu.Lock()
		memSinks = append(memSinks, s)
		memMu.Unlock()
		return s, nil
	})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "polyload v"+version)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polyload.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Sinks, cfg.Sinks)
	assert.Equal(t, config.Default().BatchSize, cfg.BatchSize)
	assert.NoError(t, cfg.Validate())

	_, err = execute(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")
}

func TestDiagram(t *testing.T) {
	dir := t.TempDir()
	schema := testutil.WriteFile(t, dir, "schema.sql", `
CREATE TABLE books (book_id INT PRIMARY KEY, title TEXT);
CREATE TABLE ratings (user_id INT, book_id INT, FOREIGN KEY (book_id) REFERENCES books(book_id));
`)
	dot := filepath.Join(dir, "er.dot")

	_, err := execute(t, "diagram", schema, "--output", dot)
	require.NoError(t, err)

	data, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ratings" -> "books"`)
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	for _, kind := range []string{"clickhouse", "mongodb", "mysql", "neo4j", "postgres", "sqlserver"} {
		assert.Contains(t, out, "  - "+kind)
	}
	assert.Contains(t, out, "mssql")
}

func TestRun_LoadsDirectoryIntoSinks(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "tags.csv", testutil.TagsCSV(3))
	cfgPath := testutil.WriteFile(t, t.TempDir(), "polyload.yaml", strings.Join([]string{
		"download_dir: " + dir,
		"batch_size: 2",
		"logging:",
		"  level: error",
		"sinks:",
		"  - name: rows",
		"    type: memory",
		"    uri: memory://rows",
		"  - name: graph",
		"    type: memory",
		"    uri: memory://graph",
		"    database: graph",
		"",
	}, "\n"))

	memMu.Lock()
	memSinks = nil
	memMu.Unlock()

	out, err := execute(t, "run", "--config", cfgPath, "--summary", "-")
	require.NoError(t, err)

	memMu.Lock()
	sinks := memSinks
	memMu.Unlock()
	require.Len(t, sinks, 2)
	assert.Len(t, sinks[0].Stored("tags"), 3)
	assert.Len(t, sinks[1].Stored("Tag"), 3)
	assert.True(t, sinks[0].Closed())

	var summary struct {
		Files []struct {
			Batches int `json:"batches"`
			Records int `json:"records"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary.Files, 1)
	assert.Equal(t, 2, summary.Files[0].Batches)
	assert.Equal(t, 3, summary.Files[0].Records)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfgPath := testutil.WriteFile(t, t.TempDir(), "polyload.yaml", "batch_size: 0\n")
	_, err := execute(t, "run", "--config", cfgPath)
	assert.ErrorContains(t, err, "batch_size must be positive")
}
