package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const maxDialDelay = 60 * time.Second

// Publisher hands jobs to the external automation workers.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// DialOptions configure the broker connection.
type DialOptions struct {
	URL           string
	Exchange      string
	RetryAttempts int
	RetryDelay    time.Duration
	Logger        *slog.Logger
}

type busClient struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// Dial connects to the broker with capped exponential backoff and
// declares the topic exchange.
func Dial(ctx context.Context, opts DialOptions) (Publisher, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", "automation_bus"))

	attempts := opts.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var conn *amqp091.Connection
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, lastErr = amqp091.Dial(opts.URL)
		if lastErr == nil {
			if i > 1 {
				log.Info("broker connected", slog.Int("attempt", i))
			}
			break
		}
		sleep := delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		log.Warn("broker dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", lastErr))
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("connect broker after %d attempts: %w", attempts, lastErr)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, err
	}

	return &busClient{conn: conn, exchange: opts.Exchange, log: log}, nil
}

func (b *busClient) Publish(ctx context.Context, key string, env Envelope) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if env.Meta.ID == "" {
		env.Meta.ID = uuid.NewString()
	}
	if env.Meta.OccurredAt.IsZero() {
		env.Meta.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, b.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    env.Meta.ID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		b.log.Debug("job published", slog.String("key", key), slog.String("job_id", env.Meta.ID))
	}
	return err
}

func (b *busClient) Close() error {
	return b.conn.Close()
}
