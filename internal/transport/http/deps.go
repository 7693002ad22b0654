package http

import (
	"github.com/suufi/mit-lobby7-verification/internal/audit"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/directory"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/discord"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/dynamo"
	jwtinfra "github.com/suufi/mit-lobby7-verification/internal/infrastructure/jwt"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/mailer"
	"github.com/suufi/mit-lobby7-verification/internal/metrics"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	CodeRepo     *dynamo.CodeRepo
	UserRepo     *dynamo.UserRepo
	SettingsRepo *dynamo.SettingsRepo
	Directory    *directory.Client
	Discord      *discord.Client
	Mailer       mailer.Mailer
	Notifier     *audit.Notifier
	JWTProvider  *jwtinfra.Provider
	Metrics      *metrics.Metrics
}
