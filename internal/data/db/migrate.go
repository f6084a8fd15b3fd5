package db

import (
	"fmt"

	"github.com/yungbote/kitchenmaster-backend/internal/domain"
)

func (s *PostgresService) AutoMigrateAll() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres service not initialized")
	}
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.Artifact{},
		&domain.DesignIteration{},
		&domain.UserPreferences{},
		&domain.MemoryRecord{},
	)
}
