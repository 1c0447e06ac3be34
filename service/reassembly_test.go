package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"session-capture/constant"
	"session-capture/dto"
	"session-capture/storage"
)

func putChunk(t *testing.T, store *storage.MemoryStore, recordingId, sessionId string, idx int, events ...string) {
	t.Helper()
	chunk := dto.StoredChunk{
		RecordingId: recordingId,
		SessionId:   sessionId,
		ChunkIndex:  idx,
		EventCount:  len(events),
		Events:      rawEvents(events...),
		UploadedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), storage.ChunkKey(recordingId, sessionId, idx), data))
}

func getMerged(t *testing.T, store *storage.MemoryStore, recordingId, sessionId string) dto.MergedArtifact {
	t.Helper()
	data, err := store.Get(context.Background(), storage.MergedKey(recordingId, sessionId))
	require.NoError(t, err)
	var artifact dto.MergedArtifact
	require.NoError(t, json.Unmarshal(data, &artifact))
	return artifact
}

func resultFor(summary *dto.ReassemblySummary, recordingId, sessionId string) *dto.SessionResult {
	for i := range summary.Results {
		if summary.Results[i].RecordingId == recordingId && summary.Results[i].SessionId == sessionId {
			return &summary.Results[i]
		}
	}
	return nil
}

func TestRunMergesChunksInIndexOrder(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	// inserted out of order on purpose, including a double-digit index that
	// would sort wrong lexically
	putChunk(t, store, "rec", "sess", 10, `{"seq":5}`)
	putChunk(t, store, "rec", "sess", 0, `{"seq":0}`, `{"seq":1}`)
	putChunk(t, store, "rec", "sess", 2, `{"seq":2}`, `{"seq":3}`, `{"seq":4}`)

	svc := NewReassemblyService(store, 2)
	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.SessionsProcessed)

	result := resultFor(summary, "rec", "sess")
	require.NotNil(t, result)
	assert.Equal(t, constant.MergeStatusSuccess, result.Status)
	assert.Equal(t, 6, result.TotalEvents)

	artifact := getMerged(t, store, "rec", "sess")
	assert.Equal(t, 6, artifact.TotalEvents)
	assert.Equal(t, 3, artifact.ChunkCount)
	require.Len(t, artifact.Events, 6)
	for i, ev := range artifact.Events {
		var decoded struct {
			Seq int `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(ev, &decoded))
		assert.Equal(t, i, decoded.Seq)
	}
}

func TestRunSkipsSingleChunkSessions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	putChunk(t, store, "rec", "solo", 0, `{"seq":0}`)

	svc := NewReassemblyService(store, 2)
	summary, err := svc.Run(ctx)
	require.NoError(t, err)

	result := resultFor(summary, "rec", "solo")
	require.NotNil(t, result)
	assert.Equal(t, constant.MergeStatusSkipped, result.Status)
	assert.Equal(t, constant.SkipReasonInsufficientChunks, result.Reason)

	_, err = store.Get(ctx, storage.MergedKey("rec", "solo"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	putChunk(t, store, "rec", "sess", 0, `{"seq":0}`)
	putChunk(t, store, "rec", "sess", 1, `{"seq":1}`)

	svc := NewReassemblyService(store, 2)
	_, err := svc.Run(ctx)
	require.NoError(t, err)
	first, err := store.Get(ctx, storage.MergedKey("rec", "sess"))
	require.NoError(t, err)

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	result := resultFor(summary, "rec", "sess")
	require.NotNil(t, result)
	assert.Equal(t, constant.MergeStatusSkipped, result.Status)
	assert.Equal(t, constant.SkipReasonAlreadyMerged, result.Reason)

	// the artifact was not rewritten
	second, err := store.Get(ctx, storage.MergedKey("rec", "sess"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunDrainsPaginatedListingBeforeGrouping(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.PageLimit = 2 // chunks arrive across several listing pages
	for i := 0; i < 5; i++ {
		putChunk(t, store, "rec", "sess", i, `{"seq":0}`)
	}

	svc := NewReassemblyService(store, 2)
	summary, err := svc.Run(ctx)
	require.NoError(t, err)

	// one group of five, not several partial groups
	require.Equal(t, 1, summary.SessionsProcessed)
	result := resultFor(summary, "rec", "sess")
	require.NotNil(t, result)
	assert.Equal(t, constant.MergeStatusSuccess, result.Status)
	assert.Equal(t, 5, getMerged(t, store, "rec", "sess").ChunkCount)
}

func TestRunIsolatesPerSessionFailures(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	putChunk(t, store, "rec", "good", 0, `{"seq":0}`)
	putChunk(t, store, "rec", "good", 1, `{"seq":1}`)
	require.NoError(t, store.Put(ctx, storage.ChunkKey("rec", "bad", 0), []byte("{not json")))
	require.NoError(t, store.Put(ctx, storage.ChunkKey("rec", "bad", 1), []byte("{not json")))

	svc := NewReassemblyService(store, 2)
	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.SessionsProcessed)

	good := resultFor(summary, "rec", "good")
	require.NotNil(t, good)
	assert.Equal(t, constant.MergeStatusSuccess, good.Status)

	bad := resultFor(summary, "rec", "bad")
	require.NotNil(t, bad)
	assert.Equal(t, constant.MergeStatusFailed, bad.Status)
	assert.NotEmpty(t, bad.Reason)
	_, err = store.Get(ctx, storage.MergedKey("rec", "bad"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunGroupsRecordingsIndependently(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	putChunk(t, store, "rec-a", "sess", 0, `{"seq":0}`)
	putChunk(t, store, "rec-a", "sess", 1, `{"seq":1}`)
	putChunk(t, store, "rec-b", "sess", 0, `{"seq":0}`)

	svc := NewReassemblyService(store, 2)
	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, summary.SessionsProcessed)

	assert.Equal(t, constant.MergeStatusSuccess, resultFor(summary, "rec-a", "sess").Status)
	assert.Equal(t, constant.MergeStatusSkipped, resultFor(summary, "rec-b", "sess").Status)
}

func TestMergeSessionTargetsOneGroup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	putChunk(t, store, "rec", "sess", 0, `{"seq":0}`)
	putChunk(t, store, "rec", "sess", 1, `{"seq":1}`, `{"seq":2}`)
	putChunk(t, store, "rec", "other", 0, `{"seq":0}`)
	putChunk(t, store, "rec", "other", 1, `{"seq":1}`)

	svc := NewReassemblyService(store, 2)
	result, err := svc.MergeSession(ctx, "rec", "sess")
	require.NoError(t, err)
	assert.Equal(t, constant.MergeStatusSuccess, result.Status)
	assert.Equal(t, 3, result.TotalEvents)

	// the other session is untouched
	_, err = store.Get(ctx, storage.MergedKey("rec", "other"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	result, err = svc.MergeSession(ctx, "rec", "sess")
	require.NoError(t, err)
	assert.Equal(t, constant.MergeStatusSkipped, result.Status)
	assert.Equal(t, constant.SkipReasonAlreadyMerged, result.Reason)
}
