package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	log     *zap.Logger
	// first pause after a failed handler; doubles up to maxRetryDelay
	retryDelay    time.Duration
	maxRetryDelay time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log)
}

func newConsumer(r messageReader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:             r,
		workers:       workers,
		log:           log,
		retryDelay:    200 * time.Millisecond,
		maxRetryDelay: 10 * time.Second,
	}
}

// Start fetches messages until ctx is done or the reader fails. A partition
// always lands on the same worker, and a worker retries a failed message in
// place until the handler accepts it, so an offset is committed only after
// every earlier offset of its partition.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if err := c.handle(ctx, id, h, m); err != nil {
					// shutdown: offset stays uncommitted, message is redelivered
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i, lanes[i])
	}
	defer wg.Wait()

	closeAll := func() {
		for _, l := range lanes {
			close(l)
		}
	}
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			closeAll()
			// kecilkan noise saat shutdown
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case lanes[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			closeAll()
			return nil
		}
	}
}

// handle runs h until it succeeds. It only gives up when ctx is done.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.maxRetryDelay
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		return h(ctx, m)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		c.log.Warn("handler failed, retrying",
			zap.Int("worker", worker),
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Duration("next", next),
			zap.Error(err))
	})
}
