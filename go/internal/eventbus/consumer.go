package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/stillpoint/go/internal/session/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

var errMissingEnvelopeFields = errors.New("event envelope missing id or type")

// Handler processes one event read from the stream. A returned error naks
// the message so it is redelivered.
type Handler func(ctx context.Context, event *events.Event) error

// ConsumerConfig selects what a Consumer reads.
type ConsumerConfig struct {
	// Name of a durable consumer. Empty creates an ephemeral one.
	Name string
	// SessionID limits delivery to one session when set.
	SessionID string
	// DeliverNew skips events already in the stream.
	DeliverNew bool
}

// Consumer reads session events back off the stream.
type Consumer struct {
	nc       *nats.Conn
	consumer jetstream.Consumer
	config   Config
	cc       ConsumerConfig
}

// NewConsumer connects to NATS and creates the stream consumer.
func NewConsumer(ctx context.Context, cfg Config, cc ConsumerConfig) (*Consumer, error) {
	nc, js, err := connect(cfg, "stillpoint-consumer")
	if err != nil {
		return nil, err
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, consumerConfig(cc))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("stream", cfg.StreamName).
		Str("consumer", cc.Name).
		Str("session_id", cc.SessionID).
		Msg("JetStream consumer ready")

	return &Consumer{nc: nc, consumer: consumer, config: cfg, cc: cc}, nil
}

func consumerConfig(cc ConsumerConfig) jetstream.ConsumerConfig {
	c := jetstream.ConsumerConfig{
		Durable:       cc.Name,
		Description:   "stillpoint session event reader",
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}
	if cc.DeliverNew {
		c.DeliverPolicy = jetstream.DeliverNewPolicy
	}
	return c
}

// Run delivers events to fn until ctx is done.
func (c *Consumer) Run(ctx context.Context, fn Handler) error {
	msgCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case msgCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-msgCh:
			c.process(ctx, msg, fn)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg jetstream.Msg, fn Handler) {
	event, err := decode(msg.Data())
	if err != nil {
		// Redelivery cannot fix a bad payload.
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undecodable event")
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
		return
	}

	if c.cc.SessionID != "" && event.SessionID != c.cc.SessionID {
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
		return
	}

	if err := fn(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.Subject()).
			Str("event_id", event.ID).
			Msg("failed to process event")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error().Err(ackErr).Msg("failed to ACK message")
	}
}

func decode(data []byte) (*events.Event, error) {
	var event events.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, errMissingEnvelopeFields
	}
	return &event, nil
}

func (c *Consumer) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
