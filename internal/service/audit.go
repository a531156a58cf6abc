package service

import (
	"context"

	"github.com/clicker-admin/internal/domain"
)

// AuditLog persists operator actions. Recording is best effort.
type AuditLog interface {
	RecordMutation(ctx context.Context, event domain.MutationEvent) error
	ListMutations(ctx context.Context, playerID string, limit int) ([]domain.MutationEvent, error)
}

// Notifier is told about player state changes so live views can refresh.
type Notifier interface {
	PlayersChanged(action string, playerIDs ...string)
}

type actorKey struct{}

// WithActor tags ctx with the operator performing the request.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the operator tagged on ctx, or "system".
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}
