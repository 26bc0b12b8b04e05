package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stupiduntilnot/csast/internal/db"
	"github.com/stupiduntilnot/csast/internal/knowledge"
)

// execute runs the root command with args and returns what it wrote to
// stdout. Logs go to the discarded stderr buffer.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// writeKnowledge writes a workbook holding every required table.
func writeKnowledge(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, src := range knowledge.RequiredSources {
		name := src.Sheets[0]
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(name, "A1", &[]any{"question", "answer"}))
		require.NoError(t, f.SetSheetRow(name, "A2", &[]any{"q" + string(rune('1'+i)), "a" + string(rune('1'+i))}))
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func dummyEnv(t *testing.T, script string) string {
	t.Helper()
	chdir(t, t.TempDir())
	data := writeKnowledge(t)
	t.Setenv("MODEL", "test-model")
	t.Setenv("MODEL_PROVIDER", "dummy")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATA_DIR", data)
	t.Setenv("DUMMY_PROVIDER_SCRIPT", script)
	t.Setenv("CSAST_DB_PATH", "")
	t.Setenv("CSAST_INSTRUCTIONS_FILE", "")
	t.Setenv("LOG_LEVEL", "error")
	return data
}

func TestAsk_PrintsReply(t *testing.T) {
	dummyEnv(t, "msg:Try restarting the hub.")
	out, err := execute(t, "ask", "--raw", "device", "won't", "connect")
	require.NoError(t, err)
	assert.Equal(t, "Try restarting the hub.\n", out)
}

func TestAsk_PromptOnly(t *testing.T) {
	dummyEnv(t, "err:should_not_be_called")
	out, err := execute(t, "ask", "--prompt-only", "device won't connect")
	require.NoError(t, err)
	assert.Contains(t, out, "--- E-housekeeper knowledge base ---\nquestion,answer\nq1,a1")
	assert.Contains(t, out, "--- pre/mid/post-installation issues knowledge base ---")
	assert.Contains(t, out, "# customer question: device won't connect")
	assert.Contains(t, out, "# conversation history: ")
}

func TestAsk_UpstreamErrorFails(t *testing.T) {
	dummyEnv(t, "err:quota")
	_, err := execute(t, "ask", "--raw", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class=quota")
}

func TestAsk_InstructionsFile(t *testing.T) {
	dummyEnv(t, "ok")
	path := filepath.Join(t.TempDir(), "instructions.txt")
	require.NoError(t, os.WriteFile(path, []byte("Answer briefly.{knowledge}END"), 0o644))
	t.Setenv("CSAST_INSTRUCTIONS_FILE", path)

	out, err := execute(t, "ask", "--prompt-only", "hi")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Answer briefly.\n--- E-housekeeper knowledge base ---"))
	assert.Contains(t, out, "a3\nEND")
}

func TestAsk_MissingKnowledgeIsFatal(t *testing.T) {
	dummyEnv(t, "ok")
	_, err := execute(t, "ask", "--data", filepath.Join(t.TempDir(), "absent.xlsx"), "hi")
	require.Error(t, err)

	var loadErr *knowledge.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestAsk_RequiresModel(t *testing.T) {
	dummyEnv(t, "ok")
	t.Setenv("MODEL", "")
	_, err := execute(t, "ask", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MODEL")
}

func TestAsk_RecordsTurnLog(t *testing.T) {
	dummyEnv(t, "msg:hello")
	dbPath := filepath.Join(t.TempDir(), "turns.db")
	t.Setenv("CSAST_DB_PATH", dbPath)

	_, err := execute(t, "ask", "--raw", "hi")
	require.NoError(t, err)

	database, err := db.OpenReadOnly(dbPath)
	require.NoError(t, err)
	defer database.Close()

	root, err := db.LatestProcessRoot(database)
	require.NoError(t, err)
	events, err := db.QuerySubtree(database, root)
	require.NoError(t, err)

	var types []string
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []string{
		db.EventProcessStarted,
		db.EventKnowledgeLoaded,
		db.EventSessionStarted,
		db.EventTurnStarted,
		db.EventTurnCompleted,
		db.EventProcessStopped,
	}, types)
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	dummyEnv(t, "ok")
	_, err := execute(t, "--log-level", "loud", "ask", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir for Go < 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
