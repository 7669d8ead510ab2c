package inventory

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/events"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-orders/internal/inventory")

// Deduper claims an event id so a redelivered message is applied once.
type Deduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// Service applies reconciliation releases consumed from Kafka.
type Service struct {
	Store Store
	Dedup Deduper
	Log   *zap.Logger
}

// HandleReleaseRequested: dipasang sebagai handler consumer.
func (s *Service) HandleReleaseRequested(ctx context.Context, m kafka.Message) error {
	ctx, span := tracer.Start(kafkax.ExtractTrace(ctx, m), "inventory.release_requested")
	defer span.End()

	// 1) decode envelope; pesan rusak di-skip supaya tidak nyangkut
	env, err := events.Decode(m.Value)
	if err != nil {
		s.Log.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.Type != orders.EventReleaseRequested {
		return nil
	} // ignore

	p, err := kafkax.UnwrapPayload[orders.ReleaseRequestedPayload](env.Payload)
	if err != nil {
		s.Log.Error("drop release request", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	log := s.Log.With(
		zap.String("event_id", env.EventID),
		zap.String("order_id", p.OrderID),
		zap.Int64("product_id", p.ProductID),
		zap.Int("quantity", p.Quantity))

	// 2) dedup via Redis (pakai event_id)
	claimed, err := s.Dedup.Claim(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Debug("duplicate release request")
		return nil
	}

	// 3) apply; klaim dilepas kalau gagal supaya redelivery bisa retry
	if err := s.Store.Release(ctx, p.ProductID, p.Quantity); err != nil {
		if errors.Is(err, ErrUnknownProduct) || errors.Is(err, ErrInvalidQuantity) {
			log.Error("release request cannot be applied", zap.Error(err))
			return nil
		}
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			log.Warn("forget dedup claim", zap.Error(ferr))
		}
		return err
	}
	log.Info("reconciled inventory release", zap.String("reason", p.Reason))
	return nil
}
