package migration

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type userV1 struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"size:128;not null"`
	Email     string  `gorm:"size:191;not null;uniqueIndex"`
	Password  *string `gorm:"size:255"`
	Provider  string  `gorm:"size:16;not null;default:local"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userV1) TableName() string { return "users" }

type chatV1 struct {
	ID             uint    `gorm:"primaryKey"`
	UserID         uint    `gorm:"not null;index"`
	UserMessage    string  `gorm:"type:text;not null"`
	AssistantReply string  `gorm:"type:text;not null"`
	DocumentName   *string `gorm:"size:255"`
	DocumentType   *string `gorm:"size:128"`
	DocumentPath   *string `gorm:"size:512"`
	DocumentSize   *int64
	CreatedAt      time.Time
}

func (chatV1) TableName() string { return "chats" }

func createUsersAndChats(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&userV1{}, &chatV1{}); err != nil {
		return fmt.Errorf("create users and chats tables failed: %w", err)
	}
	return nil
}

func dropUsersAndChats(tx *gorm.DB) error {
	if err := tx.Migrator().DropTable(&chatV1{}, &userV1{}); err != nil {
		return fmt.Errorf("drop users and chats tables failed: %w", err)
	}
	return nil
}

type chatV2 struct {
	Documents  datatypes.JSON
	UploadedAt *time.Time
}

func (chatV2) TableName() string { return "chats" }

func addChatDocuments(tx *gorm.DB) error {
	for _, column := range []string{"Documents", "UploadedAt"} {
		if tx.Migrator().HasColumn(&chatV2{}, column) {
			continue
		}
		if err := tx.Migrator().AddColumn(&chatV2{}, column); err != nil {
			return fmt.Errorf("add chats.%s column failed: %w", column, err)
		}
	}
	return nil
}

func dropChatDocuments(tx *gorm.DB) error {
	for _, column := range []string{"Documents", "UploadedAt"} {
		if err := tx.Migrator().DropColumn(&chatV2{}, column); err != nil {
			return fmt.Errorf("drop chats.%s column failed: %w", column, err)
		}
	}
	return nil
}

type userV3 struct {
	GoogleID *string `gorm:"size:64;uniqueIndex"`
	Theme    string  `gorm:"size:16;not null;default:dark"`
}

func (userV3) TableName() string { return "users" }

func addUserOAuthAndTheme(tx *gorm.DB) error {
	m := tx.Migrator()
	if !m.HasColumn(&userV3{}, "GoogleID") {
		if err := m.AddColumn(&userV3{}, "GoogleID"); err != nil {
			return fmt.Errorf("add users.google_id column failed: %w", err)
		}
	}
	if !m.HasIndex(&userV3{}, "GoogleID") {
		if err := m.CreateIndex(&userV3{}, "GoogleID"); err != nil {
			return fmt.Errorf("create users.google_id index failed: %w", err)
		}
	}
	if !m.HasColumn(&userV3{}, "Theme") {
		if err := m.AddColumn(&userV3{}, "Theme"); err != nil {
			return fmt.Errorf("add users.theme column failed: %w", err)
		}
	}
	return nil
}

func dropUserOAuthAndTheme(tx *gorm.DB) error {
	m := tx.Migrator()
	if m.HasIndex(&userV3{}, "GoogleID") {
		if err := m.DropIndex(&userV3{}, "GoogleID"); err != nil {
			return fmt.Errorf("drop users.google_id index failed: %w", err)
		}
	}
	for _, column := range []string{"GoogleID", "Theme"} {
		if err := m.DropColumn(&userV3{}, column); err != nil {
			return fmt.Errorf("drop users.%s column failed: %w", column, err)
		}
	}
	return nil
}
