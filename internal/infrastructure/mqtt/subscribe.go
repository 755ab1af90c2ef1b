package mqtt

import (
	"context"
	"fmt"
)

// Subscribe registers handler for topic (wildcards allowed). The
// subscription is restored after a reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// Listen subscribes to every producer source topic and passes each payload,
// a complete producer frame, to handle. It satisfies the broker's Ingress.
func (c *Client) Listen(handle func(ctx context.Context, raw []byte)) error {
	return c.Subscribe(c.topics.AllSources(), byte(c.cfg.QoS), sourceHandler(c.topics, handle))
}

// Unlisten drops the source subscription made by Listen. It satisfies the
// broker's Ingress.
func (c *Client) Unlisten() error {
	return c.Unsubscribe(c.topics.AllSources())
}

// sourceHandler adapts a frame handler to a MessageHandler. Messages on
// topics outside the source tree are rejected.
func sourceHandler(topics Topics, handle func(ctx context.Context, raw []byte)) MessageHandler {
	return func(topic string, payload []byte) error {
		if _, ok := topics.SourceName(topic); !ok {
			return fmt.Errorf("unexpected topic %q", topic)
		}
		handle(context.Background(), payload)
		return nil
	}
}
