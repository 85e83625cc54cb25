// Package repo implements the persistence layer for conversation state,
// backed by GORM. This file provides repository functions for the
// ConversationState model.
//
// The repository follows a "thin" approach: it performs persistence and
// simple query composition, leaving flow rules to the checkout engine.
// One row exists per (sender_id, routing_id) pair, enforced by a unique
// index; GetOrCreateConversation races on first contact resolve through
// that constraint by re-reading.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/delivio/go-commerce-bot/internal/domain"
)

// GetConversation loads the state row for a sender on a routing id.
// Returns gorm.ErrRecordNotFound when the pair has never been seen.
func GetConversation(ctx context.Context, db *gorm.DB, senderID, routingID string) (*domain.ConversationState, error) {
	var st domain.ConversationState
	err := db.WithContext(ctx).
		Where("sender_id = ? AND routing_id = ?", senderID, routingID).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetOrCreateConversation loads the state row for a sender, creating a
// fresh UNIDENTIFIED row on first contact. A concurrent first contact is
// absorbed by the unique index: on a duplicate insert the winner's row is
// re-read and returned.
func GetOrCreateConversation(ctx context.Context, db *gorm.DB, senderID, routingID string) (*domain.ConversationState, error) {
	st, err := GetConversation(ctx, db, senderID, routingID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh := &domain.ConversationState{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		RoutingID: routingID,
		Step:      domain.StepUnidentified,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fresh).Error; err != nil {
		// Lost the insert race; the other turn's row is authoritative.
		if existing, readErr := GetConversation(ctx, db, senderID, routingID); readErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return fresh, nil
}

// SaveConversation persists the full state bag after a turn.
func SaveConversation(ctx context.Context, db *gorm.DB, st *domain.ConversationState) error {
	st.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Save(st).Error
}

// DeleteConversation removes a sender's state row entirely.
func DeleteConversation(ctx context.Context, db *gorm.DB, senderID, routingID string) error {
	return db.WithContext(ctx).
		Where("sender_id = ? AND routing_id = ?", senderID, routingID).
		Delete(&domain.ConversationState{}).Error
}
