package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

const (
	// DefaultChannel is the Valkey channel events are published on.
	DefaultChannel = "caiber:events"

	publishTimeout = 2 * time.Second
	publishQueue   = 256
)

// publishFunc sends one message on channel.
type publishFunc func(ctx context.Context, channel, message string) error

// ValkeyPublisher publishes events as JSON on a Valkey channel. Events are
// queued and sent by a background goroutine; when the queue is full the
// event is dropped and a warning logged.
type ValkeyPublisher struct {
	channel     string
	publish     publishFunc
	closeClient func()
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

var _ Emitter = (*ValkeyPublisher)(nil)

// NewValkeyPublisher connects to the Valkey server at address and returns
// a publisher for channel. An empty channel uses DefaultChannel.
func NewValkeyPublisher(ctx context.Context, address, channel string, logger *slog.Logger) (*ValkeyPublisher, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address},
	})
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	publish := func(ctx context.Context, channel, message string) error {
		return client.Do(ctx, client.B().Publish().Channel(channel).Message(message).Build()).Error()
	}
	return newValkeyPublisher(channel, publish, client.Close, logger), nil
}

func newValkeyPublisher(channel string, publish publishFunc, closeClient func(), logger *slog.Logger) *ValkeyPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &ValkeyPublisher{
		channel:     channel,
		publish:     publish,
		closeClient: closeClient,
		logger:      logger,
		queue:       make(chan Event, publishQueue),
		done:        make(chan struct{}),
	}
	go p.loop()
	return p
}

// Channel returns the channel events are published on.
func (p *ValkeyPublisher) Channel() string {
	return p.channel
}

// Emit implements Emitter.
func (p *ValkeyPublisher) Emit(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- e:
	default:
		p.logger.Warn("valkey publish queue full, dropping event", "type", e.Type, "run_id", e.RunID)
	}
}

func (p *ValkeyPublisher) loop() {
	defer close(p.done)
	for e := range p.queue {
		data, err := json.Marshal(e)
		if err != nil {
			p.logger.Warn("encoding event failed", "type", e.Type, "error", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = p.publish(ctx, p.channel, string(data))
		cancel()
		if err != nil {
			p.logger.Warn("publishing event failed", "channel", p.channel, "type", e.Type, "error", err)
		}
	}
}

// Close publishes the queued events and closes the connection.
func (p *ValkeyPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	if p.closeClient != nil {
		p.closeClient()
	}
}
