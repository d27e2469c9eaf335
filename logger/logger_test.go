package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"fin-nlp/config"
)

func TestFilePath(t *testing.T) {
	day := time.Date(2024, 3, 28, 17, 4, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("logs", "logfile_2024-03-28.txt"), FilePath("logs", day))
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(zapcore.AddSync(&buf))

	WriteHeader(log, Header{
		RunID:       "run-1",
		Program:     "ingest",
		Source:      "wsb.ndjson",
		Destination: "submissions.db",
		Tables:      []string{"submissions"},
	}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	out := buf.String()
	assert.Contains(t, out, "Starting log: 2024-01-02 03:04:05")
	assert.Contains(t, out, "Run ID: run-1")
	assert.Contains(t, out, "Running program: ingest")
	assert.Contains(t, out, "Tables: submissions")
}

func TestNewAppendsToDatedFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		log, cleanup, err := New(config.LoggingConfig{Dir: dir, Level: "info"}, now)
		require.NoError(t, err)
		log.Infof("run %d", i)
		cleanup()
	}

	data, err := os.ReadFile(FilePath(dir, now))
	require.NoError(t, err)
	assert.Contains(t, string(data), "run 0")
	assert.Contains(t, string(data), "run 1")
}
