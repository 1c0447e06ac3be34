// Package capture implements the client-resident side of the pipeline: an
// in-memory event buffer with debounced and periodic flushing, a single
// in-flight upload per session, and a best-effort teardown send. One
// Recorder owns one session; two recorders never share state and may upload
// concurrently.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultDebounceInterval = 3 * time.Second
	DefaultFlushInterval    = 30 * time.Second
	DefaultBeaconGrace      = 2 * time.Second
)

// Chunk is one ordered batch of events bound for the ingestion endpoint.
type Chunk struct {
	RecordingId string
	SessionId   string
	ChunkIndex  int
	Events      []json.RawMessage
}

// Uploader delivers one chunk and reports whether the server acknowledged
// it. A nil error means the chunk is durably stored.
type Uploader interface {
	UploadChunk(ctx context.Context, chunk Chunk) error
}

// Beacon performs an unawaited send that can outlive the caller. Nothing is
// retried and no result is observable; this is the last-gasp delivery path
// used when the surrounding process is about to go away.
type Beacon interface {
	Send(chunk Chunk)
}

// Recorder buffers events for one session and cuts them into chunks. The
// debounce timer flushes after a quiet period; the periodic ticker bounds
// staleness during continuous activity, when appends would keep resetting
// the debounce timer forever.
type Recorder struct {
	recordingId string
	sessionId   string

	uploader Uploader
	beacon   Beacon
	logger   zerolog.Logger

	debounceInterval time.Duration
	flushInterval    time.Duration

	mu            sync.Mutex
	idle          *sync.Cond        // signaled when an in-flight upload settles
	pending       []json.RawMessage // unacknowledged tail; acked events are evicted
	uploadedIndex int               // absolute count of acknowledged events
	chunkIndex    int
	uploading     bool
	stopped       bool
	debounce      *time.Timer

	ticker   *time.Ticker
	done     chan struct{}
	loopDone chan struct{}
}

type Option func(*Recorder)

func WithDebounceInterval(d time.Duration) Option {
	return func(r *Recorder) { r.debounceInterval = d }
}

func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) { r.flushInterval = d }
}

func WithBeacon(b Beacon) Option {
	return func(r *Recorder) { r.beacon = b }
}

func WithSessionId(id string) Option {
	return func(r *Recorder) { r.sessionId = id }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func NewRecorder(recordingId string, uploader Uploader, opts ...Option) *Recorder {
	r := &Recorder{
		recordingId:      recordingId,
		sessionId:        NewSessionId(),
		uploader:         uploader,
		logger:           zerolog.Nop(),
		debounceInterval: DefaultDebounceInterval,
		flushInterval:    DefaultFlushInterval,
		done:             make(chan struct{}),
		loopDone:         make(chan struct{}),
	}
	r.idle = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	if r.beacon == nil {
		r.beacon = NewGraceBeacon(uploader, DefaultBeaconGrace, r.logger)
	}
	r.ticker = time.NewTicker(r.flushInterval)
	go r.flushLoop()
	return r
}

// NewSessionId builds a session identifier whose lexical order matches its
// creation order: millisecond timestamp first, random suffix for uniqueness
// across simultaneous mounts.
func NewSessionId() string {
	return fmt.Sprintf("%013d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func (r *Recorder) RecordingId() string { return r.recordingId }

func (r *Recorder) SessionId() string { return r.sessionId }

// UploadedIndex reports how many leading events have been acknowledged.
func (r *Recorder) UploadedIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uploadedIndex
}

// ChunkIndex reports the index the next chunk will be uploaded under.
func (r *Recorder) ChunkIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunkIndex
}

// PendingCount reports how many events are buffered but not yet acknowledged.
func (r *Recorder) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Append buffers one opaque event and arms the debounce timer. It never
// blocks and never fails; delivery is the flush path's problem.
func (r *Recorder) Append(event json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.pending = append(r.pending, event)
	if r.debounce == nil {
		r.debounce = time.AfterFunc(r.debounceInterval, func() {
			r.Flush(context.Background())
		})
		return
	}
	r.debounce.Reset(r.debounceInterval)
}

func (r *Recorder) flushLoop() {
	defer close(r.loopDone)
	for {
		select {
		case <-r.ticker.C:
			r.Flush(context.Background())
		case <-r.done:
			return
		}
	}
}

// Flush uploads the unacknowledged tail as the next chunk, reporting
// whether a chunk was uploaded and acknowledged. At most one upload is in
// flight per recorder; a trigger that arrives while one is running is a
// no-op, as is flushing an empty tail. A failed upload leaves all
// bookkeeping untouched so the exact same range, plus anything appended
// since, rides the next trigger (at-least-once). If an acknowledgment is
// lost in transit the same events can be re-sent under the next chunk
// index; the pipeline accepts that duplication.
func (r *Recorder) Flush(ctx context.Context) bool {
	r.mu.Lock()
	if r.uploading || len(r.pending) == 0 {
		r.mu.Unlock()
		return false
	}
	r.uploading = true
	batch := r.pending[:len(r.pending):len(r.pending)]
	chunk := Chunk{
		RecordingId: r.recordingId,
		SessionId:   r.sessionId,
		ChunkIndex:  r.chunkIndex,
		Events:      batch,
	}
	r.mu.Unlock()

	err := r.uploader.UploadChunk(ctx, chunk)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploading = false
	r.idle.Broadcast()
	if err != nil {
		r.logger.Error().Err(err).
			Str("session_id", r.sessionId).
			Int("chunk_index", chunk.ChunkIndex).
			Int("event_count", len(batch)).
			Msg("chunk upload failed, will retry")
		return false
	}
	r.uploadedIndex += len(batch)
	r.chunkIndex++
	r.pending = r.pending[len(batch):]
	return true
}

// TeardownFlush fires one best-effort send of whatever is still
// unacknowledged. It does not wait, does not retry, and does not touch any
// bookkeeping: if the process survives after all, the regular flush path
// still owns the tail. A session that dies before the beacon lands loses
// that tail; that is the accepted cost of last-gasp delivery.
func (r *Recorder) TeardownFlush() {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return
	}
	chunk := Chunk{
		RecordingId: r.recordingId,
		SessionId:   r.sessionId,
		ChunkIndex:  r.chunkIndex,
		Events:      r.pending[:len(r.pending):len(r.pending)],
	}
	r.mu.Unlock()
	r.beacon.Send(chunk)
}

// Stop cancels both timers and performs one final awaited flush of the
// remaining tail. The recorder accepts no appends afterwards. An upload
// already in flight from an earlier trigger is waited out, not abandoned:
// events appended while it ran must still go out before Stop returns. A
// failed final attempt ends the shutdown; there is no next trigger to
// retry on.
func (r *Recorder) Stop(ctx context.Context) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.mu.Unlock()

	r.ticker.Stop()
	close(r.done)
	<-r.loopDone

	for {
		r.mu.Lock()
		for r.uploading {
			r.idle.Wait()
		}
		empty := len(r.pending) == 0
		r.mu.Unlock()
		if empty {
			return
		}
		if r.Flush(ctx) {
			continue
		}
		// No progress: either the attempt failed, or a timer goroutine that
		// fired before the stop won the upload mutex and is now in flight.
		r.mu.Lock()
		racing := r.uploading
		r.mu.Unlock()
		if !racing {
			return
		}
	}
}
