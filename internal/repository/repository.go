package repository

import (
	"errors"
	"time"

	"github.com/devcluster/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type SessionRepository interface {
	Save(session *model.Session) error
	Get(id string) (*model.Session, error)
	GetBasic(id string) (*model.Session, error)
	List(limit int) ([]model.Session, error)
	UpdateStatus(id, status, errorMsg string, completedAt *time.Time) error
	CountActive() (int64, error)
	CleanupStuckSessions(timeout time.Duration) (int64, error)
	Delete(id string) error
}

type SessionLogRepository interface {
	Append(entry *model.SessionLog) error
	GetBySession(sessionID string) ([]model.SessionLog, error)
	DeleteBySession(sessionID string) error
}
