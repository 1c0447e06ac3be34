package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkKeyRoundTrip(t *testing.T) {
	key := ChunkKey("rec-1", "0001700000000000-abcd1234", 12)
	assert.Equal(t, "recordings/rec-1/0001700000000000-abcd1234/chunk-12", key)

	recordingId, sessionId, idx, ok := ParseChunkKey(key)
	require.True(t, ok)
	assert.Equal(t, "rec-1", recordingId)
	assert.Equal(t, "0001700000000000-abcd1234", sessionId)
	assert.Equal(t, 12, idx)
}

func TestParseChunkKeyRejects(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"merged key", "recordings/rec/sess/merged"},
		{"outside namespace", "uploads/rec/sess/chunk-0"},
		{"missing segment", "recordings/rec/chunk-0"},
		{"extra segment", "recordings/rec/sess/extra/chunk-0"},
		{"negative index", "recordings/rec/sess/chunk--1"},
		{"non-numeric index", "recordings/rec/sess/chunk-abc"},
		{"empty session", "recordings/rec//chunk-0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, ok := ParseChunkKey(tc.key)
			assert.False(t, ok)
		})
	}
}

func TestParseChunkKeyAcceptsPaddedIndex(t *testing.T) {
	recordingId, sessionId, idx, ok := ParseChunkKey("recordings/rec/sess/chunk-007")
	require.True(t, ok)
	assert.Equal(t, "rec", recordingId)
	assert.Equal(t, "sess", sessionId)
	assert.Equal(t, 7, idx)
}

func TestParseSessionKeyCoversChunkAndMerged(t *testing.T) {
	for _, key := range []string{
		ChunkKey("rec", "sess", 0),
		MergedKey("rec", "sess"),
	} {
		recordingId, sessionId, ok := ParseSessionKey(key)
		require.True(t, ok, key)
		assert.Equal(t, "rec", recordingId)
		assert.Equal(t, "sess", sessionId)
	}
}

func TestIsMergedKey(t *testing.T) {
	assert.True(t, IsMergedKey(MergedKey("rec", "sess")))
	assert.False(t, IsMergedKey(ChunkKey("rec", "sess", 0)))
	assert.False(t, IsMergedKey("recordings/rec/merged"))
}

func TestValidateObjectKey(t *testing.T) {
	valid := []string{
		"recordings/rec/sess/chunk-0",
		"recordings/rec/sess/merged",
	}
	for _, key := range valid {
		assert.NoError(t, ValidateObjectKey(key), key)
	}

	invalid := []string{
		"../../etc/passwd",
		"/etc/passwd",
		"secrets/api-key",
		"recordings/../secrets/api-key",
		"recordings/rec/sess/../../../etc/passwd",
		"recordings/rec/./chunk-0",
		"recordings//chunk-0",
		"recordings/rec/sess/",
		"",
	}
	for _, key := range invalid {
		assert.Error(t, ValidateObjectKey(key), key)
	}
}
