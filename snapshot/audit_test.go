package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func auditLog(t *testing.T) *AuditLog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	log, err := NewAuditLog(db, zap.NewNop())
	require.NoError(t, err)
	return log
}

func TestAuditLog_RecordAndHistory(t *testing.T) {
	t.Parallel()
	log := auditLog(t)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, sampleSnapshot("snap-1", time.Unix(1700000000, 0).UTC())))
	require.NoError(t, log.Record(ctx, sampleSnapshot("snap-2", time.Unix(1700003600, 0).UTC())))

	history, err := log.History(ctx, "test-agent", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "snap-2", history[0].SnapshotID, "newest first")
	assert.Equal(t, "snap-1", history[1].SnapshotID)

	n, err := log.Count(ctx, "test-agent")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestAuditLog_HistoryLimit(t *testing.T) {
	t.Parallel()
	log := auditLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		snap := sampleSnapshot("snap", time.Unix(1700000000+int64(i), 0).UTC())
		snap.SnapshotID = snap.SnapshotID + "-" + string(rune('a'+i))
		require.NoError(t, log.Record(ctx, snap))
	}

	history, err := log.History(ctx, "test-agent", 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestAuditLog_UnknownAgent(t *testing.T) {
	t.Parallel()
	log := auditLog(t)

	history, err := log.History(context.Background(), "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWithAudit_SaveRecordsBoth(t *testing.T) {
	t.Parallel()
	log := auditLog(t)
	ctx := context.Background()

	store := WithAudit(NewFileStore(t.TempDir(), zap.NewNop()), log, zap.NewNop())
	snap := sampleSnapshot("snap-audited", time.Unix(1700000000, 0).UTC())
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx, snap.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, snap.SnapshotID, loaded.SnapshotID)

	n, err := log.Count(ctx, snap.AgentName)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
