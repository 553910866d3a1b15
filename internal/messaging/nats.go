// Package messaging wraps the NATS connection shared by chat nodes. Nodes
// forward relay frames to each other and publish chat log entries through
// it.
package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATS subject patterns.
const (
	SubjectRelay   = "relay" // + .<transport tag>
	SubjectChatLog = "chatlog.entries"
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn   *nats.Conn
	logger *zap.Logger
	mu     sync.Mutex
	subs   map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name, the node name by default
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // -1 for infinite
	// NoEcho stops the server from delivering a node's own publications
	// back to it, so a node never receives the frames it relayed.
	NoEcho bool
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "chatty",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
		NoEcho:        true,
	}
}

// NewNATSClient connects to NATS and returns a ready client.
func NewNATSClient(config NATSConfig, logger *zap.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("connection closed")
		}),
	}
	if config.NoEcho {
		opts = append(opts, nats.NoEcho())
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info("connected", zap.String("url", nc.ConnectedUrl()))

	return &NATSClient{
		conn:   nc,
		logger: logger,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// QueueSubscribe is Subscribe with load balancing across a queue group.
func (c *NATSClient) QueueSubscribe(subject, queue string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return fmt.Errorf("nats queue subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject+"#"+queue] = sub
	c.mu.Unlock()

	return nil
}

// Send publishes a relay frame under the transport tag.
func (c *NATSClient) Send(tag string, data []byte) error {
	return c.Publish(SubjectRelay+"."+tag, data)
}

// OnReceive subscribes to relay frames under the transport tag.
func (c *NATSClient) OnReceive(tag string, handler func(data []byte)) error {
	return c.Subscribe(SubjectRelay+"."+tag, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// StopReceiving removes the relay subscription for the tag.
func (c *NATSClient) StopReceiving(tag string) error {
	return c.unsubscribe(SubjectRelay + "." + tag)
}

// PublishChatLog publishes an encoded chat log entry.
func (c *NATSClient) PublishChatLog(data []byte) error {
	return c.Publish(SubjectChatLog, data)
}

// SubscribeChatLog consumes chat log entries. Consumers sharing queue split
// the stream between them.
func (c *NATSClient) SubscribeChatLog(queue string, handler func(data []byte)) error {
	return c.QueueSubscribe(SubjectChatLog, queue, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			c.logger.Warn("drain subscription", zap.String("subject", subject), zap.Error(err))
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("connection drain", zap.Error(err))
	}

	c.logger.Info("client closed")
}

func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
