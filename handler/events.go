package handler

import (
	"context"
	"encoding/json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"video-chapters/cache"
	"video-chapters/dto"
)

type EventDependencies struct {
	Entries cache.Entries
}

// TocChangedHandler drops the cached chapter list named by the message.
func TocChangedHandler(ctx context.Context, msg amqp.Delivery, deps EventDependencies) error {
	var changed dto.TocChangedMessage
	if err := json.Unmarshal(msg.Body, &changed); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal toc changed message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("message_id", changed.MessageID.String()).
		Int64("attachment_id", changed.AttachmentID).
		Str("action", string(changed.Action)).
		Msg("received toc changed message")

	return deps.Entries.Invalidate(ctx, changed.AttachmentID)
}
