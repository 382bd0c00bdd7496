package postgresadapter

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type agentModel struct {
	AgentID   string `gorm:"primaryKey;column:agent_id"`
	Eligible  bool   `gorm:"column:eligible"`
	CreatedAt time.Time
}

func (agentModel) TableName() string { return "agents" }

// AgentDirectory answers eligibility from the agents registry table.
type AgentDirectory struct {
	db *gorm.DB
}

func NewAgentDirectory(db *gorm.DB) *AgentDirectory {
	return &AgentDirectory{db: db}
}

func (d *AgentDirectory) AutoMigrate() error {
	return d.db.AutoMigrate(&agentModel{})
}

func (d *AgentDirectory) IsEligibleAgent(ctx context.Context, agentID string) (bool, error) {
	var model agentModel
	err := d.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return model.Eligible, nil
}
