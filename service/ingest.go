// Package service holds the server-side pipeline stages: chunk ingestion,
// session reassembly, and retrieval. Every stage works off the object store
// facade; no other state is shared between requests or with the sweep job.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"session-capture/dto"
	"session-capture/storage"
)

// ErrValidation marks malformed input. Callers map it to a 4xx response;
// nothing behind it is retried.
var ErrValidation = errors.New("validation error")

// ErrNonRetryable marks failures that retrying cannot fix, such as a
// malformed queue message. Consumers dead-letter these immediately instead
// of burning retry attempts on them.
var ErrNonRetryable = errors.New("non-retryable error")

type IngestService interface {
	StoreChunk(ctx context.Context, req dto.UploadChunkRequest) (*dto.UploadChunkResponse, error)
}

type ingestService struct {
	store storage.ObjectStore
}

func NewIngestService(store storage.ObjectStore) IngestService {
	return &ingestService{store: store}
}

// StoreChunk writes one chunk to its deterministic key. The same logical
// chunk always maps to the same key, so a re-sent chunk is a harmless
// identical overwrite. No ordering or cross-chunk validation happens here;
// that is reassembly's job.
func (s *ingestService) StoreChunk(ctx context.Context, req dto.UploadChunkRequest) (*dto.UploadChunkResponse, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	chunk := dto.StoredChunk{
		RecordingId: req.RecordingId,
		SessionId:   req.SessionId,
		ChunkIndex:  *req.ChunkIndex,
		EventCount:  len(req.Events),
		Events:      req.Events,
		UploadedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("marshal chunk: %w", err)
	}

	key := storage.ChunkKey(req.RecordingId, req.SessionId, *req.ChunkIndex)
	if err := s.store.Put(ctx, key, data); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to store chunk")
		return nil, fmt.Errorf("store chunk %s: %w", key, err)
	}

	zerolog.Ctx(ctx).Info().
		Str("key", key).
		Int("chunk_index", chunk.ChunkIndex).
		Int("event_count", chunk.EventCount).
		Msg("chunk stored")

	return &dto.UploadChunkResponse{
		ChunkIndex: chunk.ChunkIndex,
		StorageKey: key,
		EventCount: chunk.EventCount,
	}, nil
}

func validateUpload(req dto.UploadChunkRequest) error {
	if req.RecordingId == "" || req.SessionId == "" {
		return fmt.Errorf("%w: recordingId and sessionId are required", ErrValidation)
	}
	// ids are embedded in key paths
	if strings.ContainsAny(req.RecordingId, "/") || strings.ContainsAny(req.SessionId, "/") {
		return fmt.Errorf("%w: identifiers must not contain '/'", ErrValidation)
	}
	if req.ChunkIndex == nil {
		return fmt.Errorf("%w: chunkIndex is required", ErrValidation)
	}
	if *req.ChunkIndex < 0 {
		return fmt.Errorf("%w: chunkIndex must not be negative", ErrValidation)
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("%w: events must not be empty", ErrValidation)
	}
	return nil
}
