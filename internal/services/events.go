package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/mq"
	"github.com/soikot-shahriaar/server-maintenance-cms/types"
)

// LogEventType names a maintenance log lifecycle change.
type LogEventType string

const (
	LogCreated LogEventType = "log.created"
	LogUpdated LogEventType = "log.updated"
	LogDeleted LogEventType = "log.deleted"
)

// LogEvent is published after a log mutation commits.
type LogEvent struct {
	Type       LogEventType `json:"type"`
	LogID      int          `json:"log_id"`
	ServerName string       `json:"server_name"`
	Status     types.Status `json:"status,omitempty"`
	ActorID    int          `json:"actor_id"`
	At         time.Time    `json:"at"`
}

// EventPublisher delivers log events to interested consumers.
type EventPublisher interface {
	PublishLogEvent(ctx context.Context, event LogEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishLogEvent(context.Context, LogEvent) error { return nil }

// MQEventPublisher publishes log events as JSON on a message queue channel.
type MQEventPublisher struct {
	queue   *mq.MQ
	channel string
}

func NewMQEventPublisher(queue *mq.MQ, channel string) *MQEventPublisher {
	return &MQEventPublisher{queue: queue, channel: channel}
}

func (p *MQEventPublisher) PublishLogEvent(ctx context.Context, event LogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.queue.Publish(ctx, p.channel, data, map[string]string{
		"type":        string(event.Type),
		"contentType": "application/json",
	})
	return err
}

// DecodeLogEvent parses a message produced by MQEventPublisher.
func DecodeLogEvent(msg mq.Message) (LogEvent, error) {
	var event LogEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return LogEvent{}, err
	}
	return event, nil
}
