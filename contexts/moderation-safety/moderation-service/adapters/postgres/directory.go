package postgresadapter

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type moderatorModel struct {
	UserID    string `gorm:"primaryKey;column:user_id"`
	Active    bool   `gorm:"column:active"`
	CreatedAt time.Time
}

func (moderatorModel) TableName() string { return "moderators" }

// ModeratorDirectory answers moderation privileges from the moderators table.
type ModeratorDirectory struct {
	db *gorm.DB
}

func NewModeratorDirectory(db *gorm.DB) *ModeratorDirectory {
	return &ModeratorDirectory{db: db}
}

func (d *ModeratorDirectory) AutoMigrate() error {
	return d.db.AutoMigrate(&moderatorModel{})
}

func (d *ModeratorDirectory) IsModerator(ctx context.Context, userID string) (bool, error) {
	var model moderatorModel
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return model.Active, nil
}
