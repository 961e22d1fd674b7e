package migration

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"financegpt/internal/model"
)

// New returns the migrator for the application schema. A clean database is
// created straight from the current models; existing databases replay the
// versioned steps they have not seen.
func New(db *gorm.DB) *gormigrate.Gormigrate {
	m := gormigrate.New(db, gormigrate.DefaultOptions, steps())

	m.InitSchema(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "sqlite" {
			if err := tx.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				return fmt.Errorf("enable sqlite foreign keys failed: %w", err)
			}
		}
		return tx.AutoMigrate(&model.User{}, &model.Chat{})
	})

	return m
}

func steps() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID:       "0001_users_chats",
			Migrate:  createUsersAndChats,
			Rollback: dropUsersAndChats,
		},
		{
			ID:       "0002_chat_documents",
			Migrate:  addChatDocuments,
			Rollback: dropChatDocuments,
		},
		{
			ID:       "0003_user_oauth_theme",
			Migrate:  addUserOAuthAndTheme,
			Rollback: dropUserOAuthAndTheme,
		},
	}
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	if err := New(db).Migrate(); err != nil {
		return fmt.Errorf("migrate schema failed: %w", err)
	}
	return nil
}
