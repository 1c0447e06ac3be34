package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"session-capture/capture"
	"session-capture/config"
)

// record streams newline-delimited JSON events from stdin through the
// capture recorder to a running server, one session per invocation.
func record(_ *config.Config) *cobra.Command {
	var serverURL, recordingId string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "stream JSONL events from stdin to the capture endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if recordingId == "" {
				return fmt.Errorf("--recording-id is required")
			}

			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			uploader := capture.NewHTTPUploader(serverURL)
			recorder := capture.NewRecorder(recordingId, uploader, capture.WithLogger(logger))

			logger.Info().
				Str("recording_id", recordingId).
				Str("session_id", recorder.SessionId()).
				Msg("recording session started")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}
				if !json.Valid(line) {
					logger.Warn().Str("line", string(line)).Msg("skipping invalid JSON event")
					continue
				}
				recorder.Append(append([]byte(nil), line...))
			}

			recorder.Stop(cmd.Context())
			logger.Info().
				Str("session_id", recorder.SessionId()).
				Int("uploaded_events", recorder.UploadedIndex()).
				Int("unacknowledged_events", recorder.PendingCount()).
				Msg("recording session closed")
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "capture server base URL")
	cmd.Flags().StringVar(&recordingId, "recording-id", "", "recording identifier")
	return cmd
}
