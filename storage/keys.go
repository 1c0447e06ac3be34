package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Key layout, the stable contract every component depends on:
//
//	recordings/{recordingId}/{sessionId}/chunk-{index}
//	recordings/{recordingId}/{sessionId}/merged
const (
	RecordingsPrefix = "recordings/"
	mergedName       = "merged"
	chunkPrefix      = "chunk-"
)

func ChunkKey(recordingId, sessionId string, chunkIndex int) string {
	return fmt.Sprintf("%s%s/%s/%s%d", RecordingsPrefix, recordingId, sessionId, chunkPrefix, chunkIndex)
}

func MergedKey(recordingId, sessionId string) string {
	return fmt.Sprintf("%s%s/%s/%s", RecordingsPrefix, recordingId, sessionId, mergedName)
}

func RecordingPrefix(recordingId string) string {
	return RecordingsPrefix + recordingId + "/"
}

func SessionPrefix(recordingId, sessionId string) string {
	return RecordingsPrefix + recordingId + "/" + sessionId + "/"
}

// ParseChunkKey recovers the identifiers embedded in a chunk key. Merged
// keys and anything else under the namespace report ok=false. ChunkKey
// never writes leading zeros, but a padded index like chunk-007 is still a
// chunk key; the numeric value wins.
func ParseChunkKey(key string) (recordingId, sessionId string, chunkIndex int, ok bool) {
	recordingId, sessionId, name, valid := splitSessionKey(key)
	if !valid {
		return "", "", 0, false
	}
	raw, found := strings.CutPrefix(name, chunkPrefix)
	if !found {
		return "", "", 0, false
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return "", "", 0, false
	}
	return recordingId, sessionId, idx, true
}

// ParseSessionKey recovers (recordingId, sessionId) from any key under a
// session, chunk and merged keys alike.
func ParseSessionKey(key string) (recordingId, sessionId string, ok bool) {
	recordingId, sessionId, _, ok = splitSessionKey(key)
	return recordingId, sessionId, ok
}

func IsMergedKey(key string) bool {
	_, _, name, ok := splitSessionKey(key)
	return ok && name == mergedName
}

func splitSessionKey(key string) (recordingId, sessionId, name string, ok bool) {
	rest, found := strings.CutPrefix(key, RecordingsPrefix)
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// ValidateObjectKey guards the download surface: only keys inside the
// recordings namespace, no empty or dot segments. Must be called before any
// store read on a caller-supplied key.
func ValidateObjectKey(key string) error {
	if !strings.HasPrefix(key, RecordingsPrefix) {
		return fmt.Errorf("key %q is outside the recordings namespace", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("key %q contains an invalid path segment", key)
		}
	}
	return nil
}
