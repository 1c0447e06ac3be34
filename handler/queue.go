package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"session-capture/dto"
	"session-capture/service"
)

type ServiceDependencies struct {
	Reassembly service.ReassemblyService
}

// ReassembleHandler processes one queue-triggered merge request for a
// specific session.
func ReassembleHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var m dto.ReassembleMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal reassemble message")
		return errors.Join(service.ErrNonRetryable, err)
	}
	if m.RecordingId == "" || m.SessionId == "" {
		return errors.Join(service.ErrNonRetryable, fmt.Errorf("reassemble message missing recordingId or sessionId"))
	}

	zerolog.Ctx(ctx).Info().
		Str("recording_id", m.RecordingId).
		Str("session_id", m.SessionId).
		Msg("received reassemble message")

	result, err := deps.Reassembly.MergeSession(ctx, m.RecordingId, m.SessionId)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("recording_id", m.RecordingId).
		Str("session_id", m.SessionId).
		Str("status", string(result.Status)).
		Str("reason", result.Reason).
		Msg("reassemble message processed")
	return nil
}
