package adapter

import (
	"context"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

// NotificationService receives domain events. Notify must not block the
// caller on delivery; implementations log their own failures.
type NotificationService interface {
	Notify(ctx context.Context, ev model.Event)
}
