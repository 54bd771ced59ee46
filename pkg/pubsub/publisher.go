package pubsub

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// TopicPublisher sends single messages and waits for the server ack.
type TopicPublisher struct {
	pub *pubsub.Publisher
}

// Publish sends data with attrs. Messages sharing orderingKey are delivered
// in publish order. A failed ordered publish pauses the key, so the key is
// resumed before the error is returned.
func (p *TopicPublisher) Publish(ctx context.Context, orderingKey string, attrs map[string]string, data []byte) (string, error) {
	if p == nil || p.pub == nil {
		return "", errors.New("pubsub publisher not initialized")
	}
	result := p.pub.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: orderingKey,
	})
	id, err := result.Get(ctx)
	if err != nil {
		if orderingKey != "" {
			p.pub.ResumePublish(orderingKey)
		}
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}
