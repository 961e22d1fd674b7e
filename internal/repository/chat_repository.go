package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"financegpt/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateAndTrim inserts chat and then deletes the owner's oldest rows so that
// at most keep remain. Both steps share one transaction. It returns the
// number of rows trimmed.
func (r *ChatRepository) CreateAndTrim(ctx context.Context, chat *model.Chat, keep int) (int64, error) {
	var trimmed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return fmt.Errorf("create chat failed: %w", err)
		}
		if keep <= 0 {
			return nil
		}

		// id of the oldest row that survives; everything below it goes.
		var cutoff []uint
		if err := tx.Model(&model.Chat{}).
			Where("user_id = ?", chat.UserID).
			Order("id DESC").
			Offset(keep - 1).
			Limit(1).
			Pluck("id", &cutoff).Error; err != nil {
			return fmt.Errorf("find chat trim cutoff failed: %w", err)
		}
		if len(cutoff) == 0 {
			return nil
		}

		res := tx.Where("user_id = ? AND id < ?", chat.UserID, cutoff[0]).Delete(&model.Chat{})
		if res.Error != nil {
			return fmt.Errorf("trim chats failed: %w", res.Error)
		}
		trimmed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return trimmed, nil
}

// ListByUserID returns the user's chats oldest first.
func (r *ChatRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Chat, error) {
	var chats []model.Chat
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	return chats, nil
}

func (r *ChatRepository) DeleteByUserID(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Chat{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chats by user failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
