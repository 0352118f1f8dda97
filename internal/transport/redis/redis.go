// Package redis carries probes over Redis PUBLISH/SUBSCRIBE.
//
// Every responder subscribed to the channel sees every probe, which makes a
// shared Redis instance a drop-in replacement for a multicast group across
// network boundaries. Hop limits are ignored.
//
// Properties:
//
//	redisURL  redis://[user:password@]host:port/db (required)
//	channel   pub/sub channel (default argo:probes)
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/transport"
	"github.com/muurk/argo/internal/wire"
)

// Name is the transport type used in configuration.
const Name = "redis"

// Property keys and defaults
const (
	PropURL     = "redisURL"
	PropChannel = "channel"

	DefaultChannel = "argo:probes"
)

const pingTimeout = 5 * time.Second

// Transport is both a Sender and a Receiver.
type Transport struct {
	mu      sync.Mutex
	client  goredis.UniversalClient
	sub     *goredis.PubSub
	channel string
	closed  bool
}

// New creates an uninitialized transport.
func New() *Transport {
	return &Transport{}
}

// Register adds the redis transport to r.
func Register(r *transport.Registry) {
	r.RegisterSender(Name, func() transport.Sender { return New() })
	r.RegisterReceiver(Name, func() transport.Receiver { return New() })
}

// newUniversalClient builds a UniversalClient from a redis:// URL.
func newUniversalClient(rawURL string) (goredis.UniversalClient, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        []string{opts.Addr},
		DB:           opts.DB,
		Username:     opts.Username,
		Password:     opts.Password,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		TLSConfig:    opts.TLSConfig,
	}), nil
}

// Initialize connects and verifies the server answers PING.
func (t *Transport) Initialize(props transport.Properties) error {
	rawURL, err := props.Required(Name, PropURL)
	if err != nil {
		return err
	}
	client, err := newUniversalClient(rawURL)
	if err != nil {
		return &transport.ConfigError{Transport: Name, Key: PropURL, Message: "invalid URL", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return &transport.ConfigError{Transport: Name, Key: PropURL, Message: "server unreachable", Err: err}
	}

	channel := props.String(PropChannel, DefaultChannel)
	t.mu.Lock()
	t.client = client
	t.channel = channel
	t.mu.Unlock()

	logging.Info("Redis transport connected", zap.String("channel", channel))
	return nil
}

func (t *Transport) clientOrErr() (goredis.UniversalClient, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, "", transport.ErrClosed
	}
	if t.client == nil {
		return nil, "", fmt.Errorf("%s transport not initialized", Name)
	}
	return t.client, t.channel, nil
}

// Send publishes the XML encoding of p.
func (t *Transport) Send(ctx context.Context, p *wire.Probe) error {
	client, channel, err := t.clientOrErr()
	if err != nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "unavailable", Err: err}
	}
	data, err := wire.EncodeProbeXML(p)
	if err != nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "encode failed", Err: err}
	}

	receivers, err := client.Publish(ctx, channel, data).Result()
	if err != nil {
		return &transport.SendError{Transport: Name, ProbeID: p.ID(), Message: "publish failed", Err: err}
	}
	logging.LogProbe("sent", p.ID(), Name, zap.String("channel", channel), zap.Int64("subscribers", receivers))
	return nil
}

// Listen subscribes to the channel and blocks until ctx is done or Close.
func (t *Transport) Listen(ctx context.Context, fn transport.ProbeProcessor) error {
	client, channel, err := t.clientOrErr()
	if err != nil {
		return err
	}

	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return &transport.ConfigError{Transport: Name, Key: PropChannel, Message: "subscribe failed", Err: err}
	}

	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()
	defer sub.Close()

	return transport.Pump(ctx, Name, sub.Channel(), func(m *goredis.Message) []byte {
		return []byte(m.Payload)
	}, fn)
}

// MaxPayloadSize is unbounded for Redis.
func (t *Transport) MaxPayloadSize() int { return transport.Unbounded }

// Close unsubscribes and releases the client. Close is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.sub != nil {
		t.sub.Close()
	}
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

var (
	_ transport.Sender   = (*Transport)(nil)
	_ transport.Receiver = (*Transport)(nil)
)
