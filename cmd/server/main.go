package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/storefront-auth/auth"
	"github.com/jrsteele09/storefront-auth/authority"
	"github.com/jrsteele09/storefront-auth/envelope"
	"github.com/jrsteele09/storefront-auth/internal/config"
	"github.com/jrsteele09/storefront-auth/internal/logger"
	"github.com/jrsteele09/storefront-auth/kvstore"
	"github.com/jrsteele09/storefront-auth/server"
	"github.com/jrsteele09/storefront-auth/sessions"
	"github.com/jrsteele09/storefront-auth/tenants"
	"github.com/jrsteele09/storefront-auth/token"
	"github.com/jrsteele09/storefront-auth/token/jwt"
	"github.com/jrsteele09/storefront-auth/users"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "storefront:"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	logger.Setup(c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	handler, closeStore, err := build(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// build wires the session subsystem together from configuration
func build(ctx context.Context, c config.Config) (http.Handler, func(), error) {
	client, err := kvstore.Connect(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { _ = client.Close() }
	store := kvstore.NewRedisStore(client, redisKeyPrefix)

	fail := func(err error) (http.Handler, func(), error) {
		closeStore()
		return nil, nil, err
	}

	gateway, err := authority.New(ctx, authority.Config{
		Issuer:       c.GetOIDCIssuer(),
		ClientID:     c.GetOIDCClientID(),
		ClientSecret: c.GetOIDCClientSecret(),
		RedirectURI:  c.GetOIDCRedirectURI(),
		Scopes:       c.GetOIDCScopes(),
	})
	if err != nil {
		return fail(err)
	}

	keyring, err := envelope.NewKeyring(c.GetEnvelopeKeys(), c.GetEnvelopeActiveKeyID())
	if err != nil {
		return fail(err)
	}
	minter, err := jwt.NewCreator(token.NewHMACSigner(c.GetInternalJWTSecret()),
		c.GetInternalJWTIssuer(), c.GetInternalJWTAudience(), c.GetInternalTokenTTL())
	if err != nil {
		return fail(err)
	}

	sessionService := sessions.NewService(sessions.Repos{
		States:   sessions.NewStateRepo(store),
		Sessions: sessions.NewRepo(store),
	}, gateway, keyring, minter,
		sessions.WithSessionTTL(c.GetSessionTTL()),
		sessions.WithLoginStateTTL(c.GetLoginStateTTL()),
		sessions.WithRefreshMargin(c.GetTokenRefreshMargin()),
		sessions.WithWriteDebounce(c.GetSessionWriteDebounce()),
	)

	flow := auth.NewFlow(sessionService,
		auth.Repos{Users: users.NewKVDirectory(store), Tenants: tenants.NewKVRepo(store)},
		auth.NewRedirectPolicy(c.GetAllowedRedirectSchemes(), c.GetAllowedRedirectHosts()))

	s, err := server.New(c, flow)
	if err != nil {
		return fail(err)
	}
	return s, closeStore, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
