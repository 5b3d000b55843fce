package utils

import "time"

// AuditInfo carries the bookkeeping timestamps every persisted entity embeds.
type AuditInfo struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch stamps a fresh entity; both timestamps start equal.
func (a *AuditInfo) Touch(now time.Time) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}
