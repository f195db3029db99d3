package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-shop-backend/internal/kafka"
	"github.com/ariefcatur/go-shop-backend/internal/orders"
	"github.com/ariefcatur/go-shop-backend/internal/redisx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Service records a notification per order lifecycle event. Delivery to the
// user (email, push) is somebody else's job; this is the bookkeeping side.
type Service struct {
	DB          *pgxpool.Pool
	Redis       *redisx.Client
	Log         zerolog.Logger
	ServiceName string
}

// HandleOrderEvent is wired as the consumer handler for the order topics.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	var userID, message string
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		userID = p.UserID
		message = fmt.Sprintf("Your order %s has been placed. Total: %d cents.", p.OrderID, p.TotalCents)
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		userID = p.UserID
		message = fmt.Sprintf("Your order %s has been cancelled and refund initiated.", p.OrderID)
	default:
		return nil // not ours
	}

	// dedup by event id; redelivered events must not produce duplicate rows
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	fresh, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup)
	if err != nil {
		s.Log.Warn().Err(err).Msg("dedup check")
	} else if !fresh {
		return nil
	}

	_, err = s.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, kind, message)
		VALUES ($1,$2,$3,$4)`,
		uuid.NewString(), userID, env.EventType, message)
	if err != nil {
		return err
	}
	s.Log.Info().Str("event_id", env.EventID).Str("event_type", env.EventType).
		Str("user_id", userID).Msg("notification recorded")
	return nil
}
