package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/models"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestPGHandlerPersistsErrors(t *testing.T) {
	db := testutil.TempDB(t)
	pg := NewPGHandler(db)
	logger := slog.New(pg).With("service", "identity")

	logger.Info("not persisted")
	logger.Error("merge failed",
		"unified_user_id", "3f8e7c1a-0000-0000-0000-000000000001",
		"action", "merge",
		"trace_id", "req-1",
		"error", "boom",
		"latency_ms", 12.4,
		"source_unified_user_id", "abc",
	)
	pg.Stop()

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	l := logs[0]
	require.Equal(t, "ERROR", l.Level)
	require.Equal(t, "identity", l.Service)
	require.Equal(t, "merge", l.Action)
	require.Equal(t, "req-1", l.TraceID)
	require.Equal(t, "boom", l.Error)
	require.Equal(t, 12, l.LatencyMs)
	require.NotNil(t, l.UnifiedUserID)
	require.Contains(t, string(l.Extra), "source_unified_user_id")
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	require.True(t, h.Enabled(context.Background(), slog.LevelInfo))

	logger := slog.New(h).With("service", "identity")
	logger.Info("hello")
	logger.Error("bad")

	require.Contains(t, a.String(), "hello")
	require.Contains(t, a.String(), "bad")
	require.NotContains(t, b.String(), "hello")
	require.Contains(t, b.String(), "service=identity")
}

func TestCleanupDeletesOldLogs(t *testing.T) {
	db := testutil.TempDB(t)
	require.NoError(t, db.Create(&models.SystemLog{Timestamp: time.Now().UTC().AddDate(0, 0, -40), Level: "ERROR", Message: "old"}).Error)
	require.NoError(t, db.Create(&models.SystemLog{Timestamp: time.Now().UTC(), Level: "ERROR", Message: "new"}).Error)

	n, err := Cleanup(db, 30)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, int64(1), testutil.CountRows(t, db, &models.SystemLog{}))
}
