package router

import (
	"github.com/statlerhq/accounts/internal/application"
	"github.com/statlerhq/accounts/internal/container"
	pginfra "github.com/statlerhq/accounts/internal/infrastructure/postgres"
	handlers "github.com/statlerhq/accounts/internal/interface/http"
	"github.com/statlerhq/accounts/internal/resettoken"
	"github.com/statlerhq/accounts/internal/router/modules"
	"github.com/statlerhq/accounts/pkg/helpers"
)

// InitModules wires the account modules from the container singletons and
// registers them with the router registry. Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	repo := pginfra.NewUserRepository(container.GetPGPool())
	hasher := helpers.NewPasswordHasher(cfg.BcryptCost)
	attempts := resettoken.NewRedisAttemptStore(container.GetRedis())
	codec := resettoken.NewCodec(cfg.TokenDBHash, application.HashSourceFor(repo), attempts, logger)
	events := application.NewRabbitEventSink(container.GetEventsPub(), logger)

	svc := application.NewService(repo, hasher, codec, events, logger)
	svc.Mail = container.GetEmailPub()
	svc.MailEnabled = cfg.MailSendEnabled
	svc.ES = container.GetES()
	svc.ESUsersIndex = cfg.ESUsersIndex
	svc.ResetURL = cfg.ResetURL
	svc.ResetTokenTTL = cfg.ResetTokenTTL

	sessions := application.NewSessionManager(container.GetJWT(), container.GetRedis())

	accountHandler := handlers.NewAccountHandler(svc, sessions, logger, cfg.CookieDomain, cfg.CookieSecure)
	resetHandler := handlers.NewResetHandler(svc, logger)
	adminHandler := handlers.NewAdminHandler(svc, logger)

	r.Add(modules.NewAccountModule(accountHandler, sessions))
	r.Add(modules.NewResetModule(resetHandler))
	r.Add(modules.NewAdminModule(adminHandler, sessions))
}
