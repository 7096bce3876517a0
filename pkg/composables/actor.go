package composables

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scriptorium-io/scriptorium/pkg/constants"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// ErrNoActor is returned when a mutating operation runs without an
// authenticated principal. Mutations are never attributable to nobody.
var ErrNoActor = serrors.NewError(serrors.CodeNoActor, "no acting principal in context")

func WithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.ActorKey, actorID)
}

// UseActor returns the acting principal id from the context.
func UseActor(ctx context.Context) (uuid.UUID, error) {
	actor := ctx.Value(constants.ActorKey)
	if actor == nil {
		return uuid.Nil, ErrNoActor
	}
	id, ok := actor.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoActor
	}
	return id, nil
}

// UseLogger returns the request-scoped logger from the context.
// Panics when absent: middleware wiring guarantees it on every request path.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(constants.LoggerKey)
	if logger == nil {
		panic("logger not found")
	}
	return logger.(*logrus.Entry)
}
