package services

import (
	"context"
	"time"

	"backoffice/models"
	"backoffice/repository"
)

const defaultLogLimit = 100

// AuditLog writes the audit trail (data changes) and the activity log (logins).
type AuditLog struct {
	logs repository.LogRepository
	now  func() time.Time
}

func (a *AuditLog) record(ctx context.Context, stream models.LogStream, actor models.Actor, action, subject string) error {
	return a.logs.Append(ctx, stream, &models.LogEntry{
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		Action:    action,
		Subject:   subject,
		Timestamp: a.now(),
	})
}

func (a *AuditLog) Audit(ctx context.Context, actor models.Actor, action, subject string) error {
	return a.record(ctx, models.StreamAudit, actor, action, subject)
}

func (a *AuditLog) Activity(ctx context.Context, actor models.Actor, action, subject string) error {
	return a.record(ctx, models.StreamActivity, actor, action, subject)
}

func (a *AuditLog) ListAudit(ctx context.Context, limit int) ([]models.LogEntry, error) {
	return a.list(ctx, models.StreamAudit, limit)
}

func (a *AuditLog) ListActivity(ctx context.Context, limit int) ([]models.LogEntry, error) {
	return a.list(ctx, models.StreamActivity, limit)
}

func (a *AuditLog) list(ctx context.Context, stream models.LogStream, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	entries, err := a.logs.List(ctx, stream, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return entries, nil
}
