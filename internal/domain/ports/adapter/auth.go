package adapter

import (
	"context"

	"github.com/gauravv01/subshare-sub000/internal/domain/model"
)

// AuthGateway turns an already-issued bearer token into a trusted identity.
type AuthGateway interface {
	Authenticate(ctx context.Context, token string) (model.Actor, error)
}
