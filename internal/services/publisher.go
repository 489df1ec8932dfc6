package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kyucards-backend/internal/logger"
	"kyucards-backend/internal/models"
)

// UserChannel is the Redis channel carrying one user's events.
func UserChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

// localSink receives events directly when Redis is not configured.
type localSink interface {
	SendToUser(userID uuid.UUID, msg interface{})
}

// Publisher pushes events to a user's realtime stream. Delivery is best
// effort; failures are logged and never returned to the caller.
type Publisher struct {
	redis *redis.Client
	local localSink
	log   *logger.Logger
}

func NewPublisher(rdb *redis.Client, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{redis: rdb, log: log}
}

// WithLocal routes events straight to sink when there is no Redis client.
func (p *Publisher) WithLocal(sink localSink) *Publisher {
	p.local = sink
	return p
}

func (p *Publisher) Publish(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	msg := models.WSMessage{Type: eventType, Payload: payload}

	if p.redis == nil {
		if p.local != nil {
			p.local.SendToUser(userID, msg)
		}
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("failed to encode event", "type", eventType, "error", err)
		return
	}
	if err := p.redis.Publish(ctx, UserChannel(userID), string(data)).Err(); err != nil {
		p.log.Warn("failed to publish event", "type", eventType, "user_id", userID, "error", err)
	}
}
