package service

import (
	"context"

	"github.com/turtacn/marketguard/internal/domain/models"
)

//go:generate mockery --name AlertHandler --output mocks --outpkg mocks
// AlertHandler reacts to a provider crossing its rate-limit threshold.
// Implementations may page, publish or adjust behaviour; returned errors are
// logged by the monitor and never reach the recording call-site.
type AlertHandler interface {
	HandleRateLimitAlert(ctx context.Context, alert models.RateLimitAlert) error
}

// AlertHandlerFunc adapts a function to AlertHandler.
type AlertHandlerFunc func(ctx context.Context, alert models.RateLimitAlert) error

func (f AlertHandlerFunc) HandleRateLimitAlert(ctx context.Context, alert models.RateLimitAlert) error {
	return f(ctx, alert)
}
