package ctxkeys

import (
	"context"

	"github.com/reportdeck/reportdeck/internal/config"
	"github.com/reportdeck/reportdeck/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey   contextKey = "user"
	AgencyKey contextKey = "agency"
	ConfigKey contextKey = "config"
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

func Agency(ctx context.Context) *model.Agency {
	agency, _ := ctx.Value(AgencyKey).(*model.Agency)
	return agency
}

func WithAgency(ctx context.Context, agency *model.Agency) context.Context {
	return context.WithValue(ctx, AgencyKey, agency)
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}
