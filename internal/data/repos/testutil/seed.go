package testutil

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/kitchenmaster-backend/internal/domain"
)

func SeedUser(tb testing.TB, tx *gorm.DB) *domain.User {
	tb.Helper()
	u := &domain.User{
		ID:       uuid.New(),
		Email:    uuid.New().String() + "@example.com",
		Password: "x",
	}
	if err := tx.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedConversation(tb testing.TB, tx *gorm.DB, userID uuid.UUID) *domain.Conversation {
	tb.Helper()
	c := &domain.Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Title:  domain.DefaultConversationTitle,
	}
	if err := tx.Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func SeedMessage(tb testing.TB, tx *gorm.DB, conversationID, userID uuid.UUID, seq int64, role, content string) *domain.Message {
	tb.Helper()
	m := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		Seq:            seq,
		Role:           role,
		Content:        content,
	}
	if err := tx.Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}
