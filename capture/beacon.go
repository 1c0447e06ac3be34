package capture

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GraceBeacon implements Beacon as a detached goroutine with a short
// grace-period context: the non-browser stand-in for a fire-and-forget
// transport send that outlives its caller.
type GraceBeacon struct {
	uploader Uploader
	grace    time.Duration
	logger   zerolog.Logger
}

func NewGraceBeacon(uploader Uploader, grace time.Duration, logger zerolog.Logger) *GraceBeacon {
	if grace <= 0 {
		grace = DefaultBeaconGrace
	}
	return &GraceBeacon{
		uploader: uploader,
		grace:    grace,
		logger:   logger,
	}
}

func (b *GraceBeacon) Send(chunk Chunk) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.grace)
		defer cancel()
		if err := b.uploader.UploadChunk(ctx, chunk); err != nil {
			b.logger.Debug().Err(err).
				Str("session_id", chunk.SessionId).
				Int("chunk_index", chunk.ChunkIndex).
				Msg("teardown send dropped")
		}
	}()
}
