package models

import (
	"context"
	"time"
)

const SystemActor = "System"

// AuditFields is embedded by every entity that carries created/modified stamps.
// The stamps are written by the persistence layer, not by services.
type AuditFields struct {
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	CreatedBy  string    `gorm:"size:100;not null" json:"createdBy"`
	ModifiedBy string    `gorm:"size:100" json:"modifiedBy,omitempty"`
}

// Auditable is implemented by any model embedding AuditFields. The database
// callbacks stamp through it.
type Auditable interface {
	StampCreated(at time.Time, by string)
	StampModified(at time.Time, by string)
}

func (a *AuditFields) StampCreated(at time.Time, by string) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = at
	}
	a.UpdatedAt = at
	a.CreatedBy = by
	a.ModifiedBy = by
}

func (a *AuditFields) StampModified(at time.Time, by string) {
	a.UpdatedAt = at
	a.ModifiedBy = by
}

// Actor is whoever performs an operation. Services receive it explicitly.
type Actor struct {
	UserID    string
	Email     string
	Role      string
	IP        string
	UserAgent string
}

// Identity is the name written into audit stamps and audit rows.
func (a Actor) Identity() string {
	if a.Email != "" {
		return a.Email
	}
	return SystemActor
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdministrator }

func (a Actor) Authenticated() bool { return a.UserID != "" }

type actorKey struct{}

// WithActor attaches the actor to ctx for the database stamp callbacks.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
