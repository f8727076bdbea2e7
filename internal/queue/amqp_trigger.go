package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/LeventeLantos/message-scheduler/internal/metrics"
)

const (
	DelayQueue = "schedule_sweep_delay"
	ReadyQueue = "schedule_sweep_ready"
)

// AMQPTrigger requests one-off sweeps through RabbitMQ. Jobs wait in the
// delay queue until their TTL runs out and are dead-lettered into the ready
// queue, where Run consumes them.
type AMQPTrigger struct {
	conn   *amqp.Connection
	expiry time.Duration
	fn     func(context.Context)
	now    func() time.Time

	mu    sync.Mutex
	pubCh *amqp.Channel
}

func DialAMQPTrigger(url string, expiry time.Duration, fn func(context.Context)) (*AMQPTrigger, error) {
	if fn == nil {
		return nil, errors.New("fn must not be nil")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &AMQPTrigger{
		conn:   conn,
		expiry: expiry,
		fn:     fn,
		now:    time.Now,
		pubCh:  ch,
	}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(
		ReadyQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare %s: %w", ReadyQueue, err)
	}

	if _, err := ch.QueueDeclare(
		DelayQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": ReadyQueue,
		},
	); err != nil {
		return fmt.Errorf("declare %s: %w", DelayQueue, err)
	}
	return nil
}

func (t *AMQPTrigger) ScheduleOnce(_ context.Context, at time.Time) error {
	job := NewSweepJob(at, t.expiry)
	body, err := job.Encode()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err = t.pubCh.Publish(
		"",
		DelayQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    t.now().UTC(),
			Expiration:   expiration(job.DueAt, t.now()),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish sweep job: %w", err)
	}

	metrics.OnceTriggers.WithLabelValues("scheduled").Inc()
	slog.Debug("one-off sweep queued", "due_at", job.DueAt)
	return nil
}

// Run consumes ready jobs until ctx is done or the channel closes.
func (t *AMQPTrigger) Run(ctx context.Context) error {
	ch, err := t.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		ReadyQueue,
		"",
		false, // autoAck = false, ack after the sweep ran
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ReadyQueue, err)
	}

	slog.Info("amqp sweep trigger consuming", "queue", ReadyQueue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			t.handle(ctx, d.Body)
			if err := d.Ack(false); err != nil {
				slog.Warn("amqp ack failed", "err", err)
			}
		}
	}
}

// handle reports whether a sweep was started.
func (t *AMQPTrigger) handle(ctx context.Context, body []byte) (ran bool) {
	job, err := DecodeSweepJob(body)
	if err != nil {
		slog.Warn("dropping invalid sweep job", "err", err)
		return false
	}
	if job.Expired(t.now()) {
		metrics.OnceTriggers.WithLabelValues("expired").Inc()
		slog.Warn("one-off sweep expired", "due_at", job.DueAt, "not_after", job.NotAfter)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("one-off sweep panic recovered", "panic", r)
		}
	}()

	metrics.OnceTriggers.WithLabelValues("fired").Inc()
	ran = true
	t.fn(ctx)
	return ran
}

func (t *AMQPTrigger) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pubCh != nil {
		_ = t.pubCh.Close()
	}
	return t.conn.Close()
}
