package handler

import (
	"context"
	"encoding/json"
	"errors"
	"study-pipeline/dto"
	"study-pipeline/service"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type ServiceDependencies struct {
	Pipeline service.Pipeline
}

// ProcessUploadHandler runs the pipeline for one queued trigger. Failures the
// pipeline already recorded on the upload are acknowledged; anything else is
// returned so the consumer retries and eventually dead-letters it.
func ProcessUploadHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var message dto.ProcessUploadMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal process upload message")
		return backoff.Permanent(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("upload_id", message.UploadId).
		Str("file_type", message.FileType).
		Msg("received process upload message")

	// a started run finishes even when the consumer is stopping
	err := deps.Pipeline.Run(context.WithoutCancel(ctx), message.UploadId, message.Kind(), message.FileUrl)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidInput):
		return backoff.Permanent(err)
	case service.IsTerminal(err):
		zerolog.Ctx(ctx).Warn().Err(err).Str("upload_id", message.UploadId).Msg("upload finished with error")
		return nil
	}
	return err
}
