package mq

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/soikot-shahriaar/server-maintenance-cms/config"
	"google.golang.org/api/option"
)

// PubSubClient maps channels to Pub/Sub topics. Each channel gets one
// subscription named channel+suffix, created on first use.
type PubSubClient struct {
	client         *pubsub.Client
	suffix         string
	maxOutstanding int

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{
		client:         client,
		suffix:         suffix,
		maxOutstanding: cfg.MaxOutstanding,
		topics:         map[string]*pubsub.Topic{},
	}, nil
}

// Publish sends data to the topic named channel and waits for the server id.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := p.subscription(ctx, channel+p.suffix, topic)
	if err != nil {
		return err
	}

	sub.ReceiveSettings = receiveSettings(sub.ReceiveSettings, p.maxOutstanding)

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, receivedMessage(msg)); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// receiveSettings caps in-flight messages like the RabbitMQ prefetch count.
// A single receiving goroutine keeps delivery close to publish order.
func receiveSettings(base pubsub.ReceiveSettings, maxOutstanding int) pubsub.ReceiveSettings {
	base.NumGoroutines = 1
	if maxOutstanding > 0 {
		base.MaxOutstandingMessages = maxOutstanding
	}
	return base
}

func receivedMessage(msg *pubsub.Message) Message {
	attrs := copyAttrs(msg.Attributes)
	if attrs == nil {
		attrs = map[string]string{}
	}
	if msg.DeliveryAttempt != nil {
		attrs["deliveryAttempt"] = strconv.Itoa(*msg.DeliveryAttempt)
	}
	return Message{ID: msg.ID, Data: msg.Data, Attributes: attrs}
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = map[string]*pubsub.Topic{}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns a cached handle, creating the topic when it does not exist.
func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) subscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return sub, nil
	}
	return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
}
