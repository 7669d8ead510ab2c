package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-shop-orders/internal/events"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

const (
	ReasonSagaCompensation = "saga_compensation"
	ReasonOrderCancelled   = "order_cancelled"
)

const handoffTimeout = 5 * time.Second

// Reconciler takes over a release the store kept refusing.
type Reconciler interface {
	RequestRelease(ctx context.Context, req orders.ReleaseRequestedPayload) error
}

// Releaser returns stock for a set of lines. Each line is retried with
// exponential backoff; lines that still fail go to the Reconciler, and lines
// the Reconciler cannot take are logged at Error for manual repair.
type Releaser struct {
	Store      Store
	Reconciler Reconciler // optional
	Log        *zap.Logger

	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ReleaseAll releases every line independently. It returns the lines handed to
// reconciliation and an error naming the lines that were lost.
func (r *Releaser) ReleaseAll(ctx context.Context, orderID, reason string, lines []orders.ItemQty) ([]orders.ItemQty, error) {
	var (
		mu      sync.Mutex
		pending []orders.ItemQty
		lost    []error
		g       errgroup.Group
	)
	for _, line := range lines {
		g.Go(func() error {
			err := r.release(ctx, line)
			if err == nil {
				return nil
			}
			log := r.Log.With(
				zap.String("order_id", orderID),
				zap.Int64("product_id", line.ProductID),
				zap.Int("quantity", line.Quantity),
				zap.String("reason", reason))
			log.Warn("inventory release failed after retries", zap.Error(err))

			if herr := r.handoff(ctx, orderID, reason, line, err); herr != nil {
				log.Error("inventory release lost, manual reconciliation required", zap.Error(herr))
				mu.Lock()
				lost = append(lost, fmt.Errorf("product %d qty %d: %w", line.ProductID, line.Quantity, herr))
				mu.Unlock()
				return nil
			}
			log.Info("inventory release handed to reconciliation")
			mu.Lock()
			pending = append(pending, line)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return pending, errors.Join(lost...)
}

func (r *Releaser) release(ctx context.Context, line orders.ItemQty) error {
	op := func() error {
		err := r.Store.Release(ctx, line.ProductID, line.Quantity)
		if errors.Is(err, ErrUnknownProduct) || errors.Is(err, ErrInvalidQuantity) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(r.policy(), r.retries()), ctx))
}

func (r *Releaser) handoff(ctx context.Context, orderID, reason string, line orders.ItemQty, cause error) error {
	if errors.Is(cause, ErrUnknownProduct) || errors.Is(cause, ErrInvalidQuantity) {
		return cause
	}
	if r.Reconciler == nil {
		return fmt.Errorf("no reconciler: %w", cause)
	}
	// ctx may already be spent on retries
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handoffTimeout)
	defer cancel()
	return r.Reconciler.RequestRelease(hctx, orders.ReleaseRequestedPayload{
		OrderID:   orderID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		Reason:    reason,
	})
}

func (r *Releaser) policy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}
	b.MaxElapsedTime = 0
	return b
}

func (r *Releaser) retries() uint64 {
	if r.MaxAttempts <= 1 {
		return 0
	}
	return r.MaxAttempts - 1
}

type syncProducer interface {
	Send(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// KafkaReconciler writes release requests to the reconciliation topic and
// waits for the broker to acknowledge them.
type KafkaReconciler struct {
	Producer syncProducer
	Service  string
}

func (k *KafkaReconciler) RequestRelease(ctx context.Context, req orders.ReleaseRequestedPayload) error {
	env, err := events.New(k.Service, orders.EventReleaseRequested, req)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	headers := kafkax.InjectTrace(ctx, kafkax.EventHeaders(env.Type, env.Version))
	return k.Producer.Send(ctx, orders.TopicReleaseRequested, orders.ProductKey(req.ProductID), b, headers...)
}
