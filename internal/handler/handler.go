package handler

import (
	"net/http"

	"github.com/shivanshkc/signon/internal/config"
	"github.com/shivanshkc/signon/internal/correlation"
	"github.com/shivanshkc/signon/internal/repository"
	"github.com/shivanshkc/signon/internal/session"
	"github.com/shivanshkc/signon/internal/utils/errutils"
	"github.com/shivanshkc/signon/internal/utils/httputils"
	"github.com/shivanshkc/signon/pkg/oauth"
)

// Handler encapsulates all REST handlers.
type Handler struct {
	config      config.Config
	providers   *oauth.Registry
	repo        repository.Repository
	correlation *correlation.Store
	issuer      *session.Issuer
}

// NewHandler creates a new Handler instance.
func NewHandler(
	config config.Config,
	providers *oauth.Registry,
	repo repository.Repository,
	correlation *correlation.Store,
	issuer *session.Issuer,
) *Handler {
	return &Handler{
		config:      config,
		providers:   providers,
		repo:        repo,
		correlation: correlation,
		issuer:      issuer,
	}
}

// NotFound handler can be used to serve any unrecognized routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	httputils.WriteErr(w, errutils.NotFound())
}

// Health returns 200 if everything is running fine.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	info := map[string]string{}
	httputils.Write(w, http.StatusOK, nil, info)
}
