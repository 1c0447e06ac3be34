package dto

import (
	"encoding/json"
	"time"

	"session-capture/constant"
)

// UploadChunkRequest is the ingestion payload: one ordered batch of opaque
// events for a single (recording, session, chunkIndex). ChunkIndex is a
// pointer so that a present index 0 can be told apart from a missing field.
type UploadChunkRequest struct {
	RecordingId string            `json:"recordingId" binding:"required"`
	SessionId   string            `json:"sessionId" binding:"required"`
	ChunkIndex  *int              `json:"chunkIndex" binding:"required"`
	Events      []json.RawMessage `json:"events" binding:"required,min=1"`
}

type UploadChunkResponse struct {
	ChunkIndex int    `json:"chunkIndex"`
	StorageKey string `json:"storageKey"`
	EventCount int    `json:"eventCount"`
}

// StoredChunk is the object written at a chunk key. Event payloads are kept
// verbatim; the pipeline never interprets them.
type StoredChunk struct {
	RecordingId string            `json:"recordingId"`
	SessionId   string            `json:"sessionId"`
	ChunkIndex  int               `json:"chunkIndex"`
	EventCount  int               `json:"eventCount"`
	Events      []json.RawMessage `json:"events"`
	UploadedAt  time.Time         `json:"uploadedAt"`
}

// MergedArtifact is the object written at a session's merged key: the
// canonical concatenation of all of its chunks in index order. Once present
// it is authoritative for the session.
type MergedArtifact struct {
	RecordingId string            `json:"recordingId"`
	SessionId   string            `json:"sessionId"`
	Events      []json.RawMessage `json:"events"`
	TotalEvents int               `json:"totalEvents"`
	ChunkCount  int               `json:"chunkCount"`
	MergedAt    time.Time         `json:"mergedAt"`
}

type SessionResult struct {
	RecordingId string               `json:"recordingId"`
	SessionId   string               `json:"sessionId"`
	Status      constant.MergeStatus `json:"status"`
	Reason      string               `json:"reason,omitempty"`
	TotalEvents int                  `json:"totalEvents,omitempty"`
}

type ReassemblySummary struct {
	SessionsProcessed int             `json:"sessionsProcessed"`
	Results           []SessionResult `json:"results"`
}

// ReassembleMessage asks the worker to merge one specific session. Published
// by the backend when a session is known to be closed.
type ReassembleMessage struct {
	RecordingId string `json:"recordingId"`
	SessionId   string `json:"sessionId"`
}

type SessionListResponse struct {
	Type     string   `json:"type"`
	Sessions []string `json:"sessions"`
}

// SessionLookupResponse carries either the merged artifact reference
// (type "merged") or the ordered chunk references (type "chunks") for
// client-side concatenation.
type SessionLookupResponse struct {
	Type string   `json:"type"`
	Ref  string   `json:"ref,omitempty"`
	Refs []string `json:"refs,omitempty"`
}
