package repository

import (
	"github.com/devcluster/backend/internal/model"
	"gorm.io/gorm"
)

type sessionLogRepository struct {
	db *gorm.DB
}

func NewSessionLogRepository(db *gorm.DB) SessionLogRepository {
	return &sessionLogRepository{db: db}
}

func (r *sessionLogRepository) Append(entry *model.SessionLog) error {
	return r.db.Create(entry).Error
}

// GetBySession 按写入顺序返回日志
func (r *sessionLogRepository) GetBySession(sessionID string) ([]model.SessionLog, error) {
	var logs []model.SessionLog
	err := r.db.Where("session_id = ?", sessionID).Order("id").Find(&logs).Error
	return logs, err
}

func (r *sessionLogRepository) DeleteBySession(sessionID string) error {
	return r.db.Where("session_id = ?", sessionID).Delete(&model.SessionLog{}).Error
}
