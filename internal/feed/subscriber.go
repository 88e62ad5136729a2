package feed

import (
	"context"
	"fmt"
	"log/slog"

	"eddn-ingester/internal/shared/config"
	"eddn-ingester/internal/shared/errors"

	"github.com/go-zeromq/zmq4"
	"github.com/nats-io/nats.go"
)

// Subscriber delivers raw frames from one feed subscription.
type Subscriber interface {
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dial opens the subscriber selected by cfg.Transport.
func Dial(ctx context.Context, cfg config.FeedConfig, logger *slog.Logger) (Subscriber, error) {
	switch cfg.Transport {
	case "zmq":
		return DialZMQ(ctx, cfg.URL, logger)
	case "nats":
		return DialNATS(cfg.URL, cfg.NATSSubject, logger)
	default:
		return nil, fmt.Errorf("unknown feed transport %q", cfg.Transport)
	}
}

// ZMQSubscriber is a ZeroMQ SUB socket subscribed to every topic.
type ZMQSubscriber struct {
	socket   zmq4.Socket
	endpoint string
	logger   *slog.Logger
}

func DialZMQ(ctx context.Context, endpoint string, logger *slog.Logger) (*ZMQSubscriber, error) {
	logger = logger.With("component", "zmq_subscriber", "endpoint", endpoint)

	socket := zmq4.NewSub(ctx)
	if err := socket.Dial(endpoint); err != nil {
		_ = socket.Close()
		return nil, errors.WrapTransport("failed to dial relay", err)
	}

	if err := socket.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = socket.Close()
		return nil, errors.WrapTransport("failed to subscribe", err)
	}

	logger.Info("Subscribed to relay")

	return &ZMQSubscriber{socket: socket, endpoint: endpoint, logger: logger}, nil
}

func (s *ZMQSubscriber) Receive(ctx context.Context) ([]byte, error) {
	msg, err := s.socket.Recv()
	if err != nil {
		return nil, errors.WrapTransport("relay receive failed", err)
	}
	if len(msg.Frames) == 0 {
		return nil, nil
	}
	return msg.Frames[len(msg.Frames)-1], nil
}

func (s *ZMQSubscriber) Close() error {
	s.logger.Debug("Closing relay subscription")
	return s.socket.Close()
}

// NATSSubscriber reads frames republished onto a NATS subject.
type NATSSubscriber struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	logger *slog.Logger
}

func DialNATS(url, subject string, logger *slog.Logger) (*NATSSubscriber, error) {
	logger = logger.With("component", "nats_subscriber", "url", url, "subject", subject)

	// Reconnects are left to the supervisor, like the ZeroMQ path.
	conn, err := nats.Connect(url, nats.Name("eddn-ingester"), nats.NoReconnect())
	if err != nil {
		return nil, errors.WrapTransport("failed to connect to NATS", err)
	}

	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		conn.Close()
		return nil, errors.WrapTransport("failed to subscribe to "+subject, err)
	}

	logger.Info("Subscribed to NATS subject")

	return &NATSSubscriber{conn: conn, sub: sub, logger: logger}, nil
}

func (s *NATSSubscriber) Receive(ctx context.Context) ([]byte, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		return nil, errors.WrapTransport("NATS receive failed", err)
	}
	return msg.Data, nil
}

func (s *NATSSubscriber) Close() error {
	s.logger.Debug("Closing NATS subscription")
	err := s.sub.Unsubscribe()
	s.conn.Close()
	if err != nil && err != nats.ErrConnectionClosed {
		return err
	}
	return nil
}
