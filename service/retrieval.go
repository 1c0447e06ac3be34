package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"session-capture/dto"
	"session-capture/storage"
)

var ErrSessionNotFound = errors.New("session not found")

type RetrievalService interface {
	// Sessions returns the distinct session ids under a recording, most
	// recent first.
	Sessions(ctx context.Context, recordingId string) ([]string, error)
	// Session resolves one session to its merged artifact reference or, if
	// none exists yet, the ordered list of chunk references.
	Session(ctx context.Context, recordingId, sessionId string) (*dto.SessionLookupResponse, error)
	// Download returns the raw bytes of one stored object after validating
	// the key against the recordings namespace.
	Download(ctx context.Context, key string) ([]byte, error)
}

type retrievalService struct {
	store storage.ObjectStore
}

func NewRetrievalService(store storage.ObjectStore) RetrievalService {
	return &retrievalService{store: store}
}

func (s *retrievalService) Sessions(ctx context.Context, recordingId string) ([]string, error) {
	keys, err := storage.ListAll(ctx, s.store, storage.RecordingPrefix(recordingId))
	if err != nil {
		return nil, fmt.Errorf("list recording %s: %w", recordingId, err)
	}

	seen := make(map[string]struct{})
	sessions := make([]string, 0)
	for _, key := range keys {
		_, sessionId, ok := storage.ParseSessionKey(key)
		if !ok {
			continue
		}
		if _, dup := seen[sessionId]; dup {
			continue
		}
		seen[sessionId] = struct{}{}
		sessions = append(sessions, sessionId)
	}

	// session ids are timestamp-prefixed, so descending lexical order is
	// most-recent first
	sort.Sort(sort.Reverse(sort.StringSlice(sessions)))
	return sessions, nil
}

func (s *retrievalService) Session(ctx context.Context, recordingId, sessionId string) (*dto.SessionLookupResponse, error) {
	keys, err := storage.ListAll(ctx, s.store, storage.SessionPrefix(recordingId, sessionId))
	if err != nil {
		return nil, fmt.Errorf("list session %s/%s: %w", recordingId, sessionId, err)
	}
	if len(keys) == 0 {
		return nil, ErrSessionNotFound
	}

	var chunks []chunkRef
	for _, key := range keys {
		if storage.IsMergedKey(key) {
			// the merged artifact is authoritative once present
			return &dto.SessionLookupResponse{Type: "merged", Ref: key}, nil
		}
		if _, _, idx, ok := storage.ParseChunkKey(key); ok {
			chunks = append(chunks, chunkRef{key: key, index: idx})
		}
	}
	if len(chunks) == 0 {
		return nil, ErrSessionNotFound
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })
	refs := make([]string, 0, len(chunks))
	for _, ref := range chunks {
		refs = append(refs, ref.key)
	}
	return &dto.SessionLookupResponse{Type: "chunks", Refs: refs}, nil
}

func (s *retrievalService) Download(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateObjectKey(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.store.Get(ctx, key)
}
