package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/shivanshkc/signon/internal/config"
	"github.com/shivanshkc/signon/internal/correlation"
	"github.com/shivanshkc/signon/internal/database"
	"github.com/shivanshkc/signon/internal/handler"
	"github.com/shivanshkc/signon/internal/http"
	"github.com/shivanshkc/signon/internal/repository"
	"github.com/shivanshkc/signon/internal/session"
	"github.com/shivanshkc/signon/pkg/logger"
	"github.com/shivanshkc/signon/pkg/oauth"
)

func main() {
	// Initialize basic dependencies.
	ctx := context.Background()
	conf := config.Load()
	logger.Init(os.Stdout, conf.Logger.Level, conf.Logger.Pretty)

	// Connect to the database and bring the schema up to date.
	db, err := database.Connect(ctx, conf)
	if err != nil {
		slog.Error("failed to connect to the database", "err", err)
		panic(err)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run database migrations", "err", err)
		panic(err)
	}

	// Initiate all configured providers.
	providers, err := buildProviders(ctx, conf)
	if err != nil {
		slog.Error("failed to initiate providers", "err", err)
		panic(err)
	}

	repo := repository.NewRepository(db)
	secure := strings.HasPrefix(conf.Application.BaseURL, "https://")
	store := correlation.NewStore(conf.Session.Secret, secure)
	issuer := session.NewIssuer(repo, conf.Session.Secret, conf.Session.UserCollection, conf.Session.AllowSignUp)

	// Initialize the HTTP server.
	server := &http.Server{
		Config:  conf,
		Handler: handler.NewHandler(conf, providers, repo, store, issuer),
	}

	// This internally calls ListenAndServe.
	// This is a blocking call and will panic if the server is unable to start.
	server.Start()
}

// buildProviders constructs the provider registry from the loaded configs.
// Providers without credentials are skipped.
func buildProviders(ctx context.Context, conf config.Config) (*oauth.Registry, error) {
	var providers []oauth.Provider

	if conf.Google.ClientID != "" {
		google, err := oauth.NewGoogle(ctx, conf.Google.ClientID, conf.Google.ClientSecret,
			conf.Application.BaseURL+"/oauth2/callback/google")
		if err != nil {
			return nil, err
		}
		providers = append(providers, google)
	}

	if conf.Github.ClientID != "" {
		providers = append(providers, oauth.NewGithub(conf.Github.ClientID, conf.Github.ClientSecret,
			conf.Application.BaseURL+"/oauth2/callback/github"))
	}

	if conf.Passkey.RPID != "" {
		passkey, err := oauth.NewPasskey(conf.Passkey.RPID, conf.Passkey.RPDisplayName, conf.Passkey.RPOrigins)
		if err != nil {
			return nil, err
		}
		providers = append(providers, passkey)
	}

	return oauth.NewRegistry(providers...), nil
}
