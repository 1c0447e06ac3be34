package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"session-capture/constant"
	"session-capture/dto"
	"session-capture/storage"
)

// ReassemblyService turns a session's committed chunks into one canonical
// merged artifact. Merging is an optimization, not a correctness
// requirement: an unmerged session stays fully reconstructable from its
// chunks, so a sweep can be re-run, skipped, or run concurrently with
// ongoing ingestion for the same recording.
type ReassemblyService interface {
	// Run sweeps the whole recordings namespace and merges every eligible
	// session. Per-session failures are reported in the summary, never
	// returned.
	Run(ctx context.Context) (*dto.ReassemblySummary, error)
	// MergeSession applies the same rules to one session, for
	// queue-triggered merges.
	MergeSession(ctx context.Context, recordingId, sessionId string) (*dto.SessionResult, error)
}

type reassemblyService struct {
	store     storage.ObjectStore
	minChunks int
}

func NewReassemblyService(store storage.ObjectStore, minChunks int) ReassemblyService {
	if minChunks < 2 {
		minChunks = 2
	}
	return &reassemblyService{
		store:     store,
		minChunks: minChunks,
	}
}

type chunkRef struct {
	key   string
	index int
}

type sessionGroup struct {
	recordingId string
	sessionId   string
	chunks      []chunkRef
	merged      bool
}

func (s *reassemblyService) Run(ctx context.Context) (*dto.ReassemblySummary, error) {
	// the listing must be fully drained before grouping: a partial listing
	// would undercount a session and must not be treated as complete
	keys, err := storage.ListAll(ctx, s.store, storage.RecordingsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list recordings namespace: %w", err)
	}

	groups := groupSessionKeys(keys)
	summary := &dto.ReassemblySummary{Results: make([]dto.SessionResult, 0, len(groups))}
	for _, g := range groups {
		summary.Results = append(summary.Results, s.mergeGroup(ctx, g))
	}
	summary.SessionsProcessed = len(summary.Results)

	zerolog.Ctx(ctx).Info().
		Int("sessions_processed", summary.SessionsProcessed).
		Msg("reassembly sweep finished")
	return summary, nil
}

func (s *reassemblyService) MergeSession(ctx context.Context, recordingId, sessionId string) (*dto.SessionResult, error) {
	keys, err := storage.ListAll(ctx, s.store, storage.SessionPrefix(recordingId, sessionId))
	if err != nil {
		return nil, fmt.Errorf("list session %s/%s: %w", recordingId, sessionId, err)
	}

	g := &sessionGroup{recordingId: recordingId, sessionId: sessionId}
	for _, key := range keys {
		if storage.IsMergedKey(key) {
			g.merged = true
			continue
		}
		if _, _, idx, ok := storage.ParseChunkKey(key); ok {
			g.chunks = append(g.chunks, chunkRef{key: key, index: idx})
		}
	}

	result := s.mergeGroup(ctx, g)
	return &result, nil
}

// groupSessionKeys buckets chunk keys by (recordingId, sessionId), keeping
// first-seen order so summaries are deterministic for a given listing. A
// merged key marks its group as already done.
func groupSessionKeys(keys []string) []*sessionGroup {
	byId := make(map[string]*sessionGroup)
	var ordered []*sessionGroup
	for _, key := range keys {
		recordingId, sessionId, ok := storage.ParseSessionKey(key)
		if !ok {
			continue
		}
		id := recordingId + "/" + sessionId
		g := byId[id]
		if g == nil {
			g = &sessionGroup{recordingId: recordingId, sessionId: sessionId}
			byId[id] = g
			ordered = append(ordered, g)
		}
		if storage.IsMergedKey(key) {
			g.merged = true
			continue
		}
		if _, _, idx, valid := storage.ParseChunkKey(key); valid {
			g.chunks = append(g.chunks, chunkRef{key: key, index: idx})
		}
	}
	return ordered
}

// mergeGroup merges one session. Failures are folded into the result so one
// bad session never aborts the rest of a sweep.
func (s *reassemblyService) mergeGroup(ctx context.Context, g *sessionGroup) dto.SessionResult {
	result := dto.SessionResult{
		RecordingId: g.recordingId,
		SessionId:   g.sessionId,
	}

	if g.merged {
		result.Status = constant.MergeStatusSkipped
		result.Reason = constant.SkipReasonAlreadyMerged
		return result
	}
	if len(g.chunks) < s.minChunks {
		result.Status = constant.MergeStatusSkipped
		result.Reason = constant.SkipReasonInsufficientChunks
		return result
	}

	sort.Slice(g.chunks, func(i, j int) bool { return g.chunks[i].index < g.chunks[j].index })

	events := make([]json.RawMessage, 0, len(g.chunks))
	for _, ref := range g.chunks {
		data, err := s.store.Get(ctx, ref.key)
		if err != nil {
			return s.failGroup(ctx, result, fmt.Errorf("fetch %s: %w", ref.key, err))
		}
		var chunk dto.StoredChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return s.failGroup(ctx, result, fmt.Errorf("parse %s: %w", ref.key, err))
		}
		events = append(events, chunk.Events...)
	}

	artifact := dto.MergedArtifact{
		RecordingId: g.recordingId,
		SessionId:   g.sessionId,
		Events:      events,
		TotalEvents: len(events),
		ChunkCount:  len(g.chunks),
		MergedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return s.failGroup(ctx, result, fmt.Errorf("marshal merged artifact: %w", err))
	}

	mergedKey := storage.MergedKey(g.recordingId, g.sessionId)
	if err := s.store.Put(ctx, mergedKey, data); err != nil {
		return s.failGroup(ctx, result, fmt.Errorf("write %s: %w", mergedKey, err))
	}

	zerolog.Ctx(ctx).Info().
		Str("recording_id", g.recordingId).
		Str("session_id", g.sessionId).
		Int("chunk_count", artifact.ChunkCount).
		Int("total_events", artifact.TotalEvents).
		Msg("session merged")

	result.Status = constant.MergeStatusSuccess
	result.TotalEvents = artifact.TotalEvents
	return result
}

func (s *reassemblyService) failGroup(ctx context.Context, result dto.SessionResult, err error) dto.SessionResult {
	zerolog.Ctx(ctx).Error().Err(err).
		Str("recording_id", result.RecordingId).
		Str("session_id", result.SessionId).
		Msg("failed to merge session")
	result.Status = constant.MergeStatusFailed
	result.Reason = err.Error()
	return result
}
