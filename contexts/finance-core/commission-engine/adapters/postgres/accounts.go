package postgresadapter

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type payoutDestinationModel struct {
	AgentID     string `gorm:"primaryKey;column:agent_id"`
	Destination string `gorm:"column:destination"`
	UpdatedAt   time.Time
}

func (payoutDestinationModel) TableName() string { return "agent_payout_destinations" }

// AgentAccounts resolves payout destinations from the accounts table. A
// missing row reads as an empty destination; the commission engine treats
// that as a failed payment, not an error.
type AgentAccounts struct {
	db *gorm.DB
}

func NewAgentAccounts(db *gorm.DB) *AgentAccounts {
	return &AgentAccounts{db: db}
}

func (a *AgentAccounts) AutoMigrate() error {
	return a.db.AutoMigrate(&payoutDestinationModel{})
}

func (a *AgentAccounts) PayoutDestination(ctx context.Context, agentID string) (string, error) {
	var model payoutDestinationModel
	err := a.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.Destination, nil
}
