// Package services contains the orchestration layer between the webhook
// transport and the checkout engine: one Process call per decoded inbound
// message, covering tenant attribution, per-sender throttling, state
// load/save, the engine turn, and outbound delivery.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/delivio/go-commerce-bot/internal/checkout"
	"github.com/delivio/go-commerce-bot/internal/domain"
	"github.com/delivio/go-commerce-bot/internal/repo"
	"github.com/delivio/go-commerce-bot/internal/tenant"
)

// TenantResolver attributes an inbound message to a merchant.
type TenantResolver interface {
	Resolve(ctx context.Context, routingID, displayNumber string) (*domain.TenantConfig, error)
}

// Engine runs one checkout turn.
type Engine interface {
	Handle(ctx context.Context, st *domain.ConversationState, ev checkout.Event) ([]checkout.Reply, error)
}

// Replier delivers engine replies back to the channel.
type Replier interface {
	SendReply(ctx context.Context, t *domain.TenantConfig, to string, r checkout.Reply) error
}

// Limiter throttles decoded events per sender.
type Limiter interface {
	Allow(key string) bool
}

// InboundMessage is one decoded webhook message, ready for processing.
type InboundMessage struct {
	RoutingID     string // provider-assigned phone_number_id
	DisplayNumber string // human-readable business number
	SenderID      string // sender's wa id / phone
	SenderName    string
	Kind          string // decoded event kind, for metrics
	Event         checkout.Event
}

// BotService processes inbound messages end to end.
type BotService struct {
	DB      *gorm.DB
	Tenants TenantResolver
	Engine  Engine
	Sender  Replier
	Limiter Limiter
}

// Process handles one inbound message. Remote trouble degrades inside the
// engine; the returned error covers only faults worth a server-side alert
// (the webhook response stays 200 either way, the provider must not retry).
func (s *BotService) Process(ctx context.Context, msg InboundMessage) error {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("routing.id", msg.RoutingID),
			attribute.String("event.kind", msg.Kind),
		),
	)
	defer span.End()

	countEvent(msg.Kind)

	if s.Limiter != nil && !s.Limiter.Allow("sender:"+msg.SenderID) {
		log.Warn().Str("routing_id", msg.RoutingID).Msg("sender throttled, event dropped")
		return nil
	}

	// Tenant attribution is never fatal: an unknown or unreachable tenant
	// drops the conversation into shared marketplace mode.
	cfg, err := s.Tenants.Resolve(ctx, msg.RoutingID, msg.DisplayNumber)
	switch {
	case err == nil:
		countResolution("resolved")
	case errors.Is(err, tenant.ErrTenantNotFound):
		countResolution("miss")
	default:
		countResolution("error")
		log.Warn().Err(err).Str("routing_id", msg.RoutingID).Msg("tenant resolution degraded")
	}

	st, err := repo.GetOrCreateConversation(ctx, s.DB, msg.SenderID, msg.RoutingID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if cfg != nil {
		st.TenantID = cfg.TenantID
		st.TenantName = cfg.Name
	}

	replies, handleErr := s.Engine.Handle(ctx, st, msg.Event)

	if err := repo.SaveConversation(ctx, s.DB, st); err != nil {
		// The turn already happened; losing the checkpoint means the bag
		// drifts until the next successful save.
		log.Error().Err(err).Str("conversation_id", st.ID).Msg("state save failed")
	}
	countStep(string(st.Step))

	for _, r := range replies {
		if err := s.Sender.SendReply(ctx, cfg, msg.SenderID, r); err != nil {
			log.Error().Err(err).Str("conversation_id", st.ID).Msg("reply delivery failed")
		}
	}
	return handleErr
}
