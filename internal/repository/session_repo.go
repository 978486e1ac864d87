package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/devcluster/backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// Save 按 id 幂等落库
// 子表整体替换，重复保存同一会话不产生重复行
func (r *sessionRepository) Save(session *model.Session) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(session).Error; err != nil {
			return err
		}

		if err := tx.Where("session_id = ?", session.ID).Delete(&model.Requirement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&model.CodeArtifact{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&model.AgentAnalysis{}).Error; err != nil {
			return err
		}

		// position 记录切片顺序，时间戳相同的行读取时仍按写入顺序返回
		for i := range session.Requirements {
			session.Requirements[i].SessionID = session.ID
			session.Requirements[i].Position = i
		}
		for i := range session.Artifacts {
			session.Artifacts[i].SessionID = session.ID
			session.Artifacts[i].Position = i
		}
		for i := range session.Analyses {
			session.Analyses[i].SessionID = session.ID
			session.Analyses[i].ID = 0
		}

		if len(session.Requirements) > 0 {
			if err := tx.Create(&session.Requirements).Error; err != nil {
				return err
			}
		}
		if len(session.Artifacts) > 0 {
			if err := tx.Create(&session.Artifacts).Error; err != nil {
				return err
			}
		}
		if len(session.Analyses) > 0 {
			if err := tx.Create(&session.Analyses).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Get 读取会话及全部子记录
func (r *sessionRepository) Get(id string) (*model.Session, error) {
	var session model.Session
	err := r.db.First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := r.db.Where("session_id = ?", id).Order("position").Find(&session.Requirements).Error; err != nil {
		return nil, err
	}
	if err := r.db.Where("session_id = ?", id).Order("position").Find(&session.Artifacts).Error; err != nil {
		return nil, err
	}
	if err := r.db.Where("session_id = ?", id).Order("id").Find(&session.Analyses).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// GetBasic 只读取会话主记录
func (r *sessionRepository) GetBasic(id string) (*model.Session, error) {
	var session model.Session
	err := r.db.First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// List 按创建时间倒序返回会话主记录
func (r *sessionRepository) List(limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var sessions []model.Session
	err := r.db.Order("created_at DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

// UpdateStatus 更新会话状态
func (r *sessionRepository) UpdateStatus(id, status, errorMsg string, completedAt *time.Time) error {
	updates := map[string]interface{}{
		"status":    status,
		"error_msg": errorMsg,
	}
	if completedAt != nil {
		updates["completed_at"] = completedAt
	}
	result := r.db.Model(&model.Session{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActive 统计未到终态的会话数
func (r *sessionRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&model.Session{}).
		Where("status IN ?", []string{"pending", "analyzing"}).
		Count(&count).Error
	return count, err
}

// CleanupStuckSessions 清理卡在 analyzing 的会话（超过指定时间未更新）
// 后台分析进程异常退出时会话可能永远停在 analyzing，启动时统一标记失败
func (r *sessionRepository) CleanupStuckSessions(timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	result := r.db.Model(&model.Session{}).
		Where("status IN ? AND updated_at < ?", []string{"pending", "analyzing"}, cutoff).
		Updates(map[string]interface{}{
			"status":    "failed",
			"error_msg": fmt.Sprintf("会话超时（超过 %v），已自动标记为失败", timeout),
		})
	return result.RowsAffected, result.Error
}

// Delete 删除会话及子记录，日志由 SessionLogRepository 负责
func (r *sessionRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.Requirement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&model.CodeArtifact{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&model.AgentAnalysis{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Session{ID: id}).Error
	})
}
