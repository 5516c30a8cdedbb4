package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"memberdesk/backend/internal/ports"
	"memberdesk/backend/internal/service"
)

const maxJSONBodyBytes int64 = 1 << 20

// maxCSVBodyBytes bounds member imports.
const maxCSVBodyBytes int64 = 8 << 20

const defaultTokenTTL = 12 * time.Hour

type Dependencies struct {
	AuthProvider ports.AuthProvider
	TokenIssuer  ports.TokenIssuer
	Service      *service.Service
	Logger       *zap.Logger
	Runtime      RuntimeConfig
	TokenTTL     time.Duration
	// Cleanup runs once when the API is closed.
	Cleanup func() error
}

type API struct {
	authProvider ports.AuthProvider
	tokenIssuer  ports.TokenIssuer
	service      *service.Service
	logger       *zap.Logger
	cors         corsPolicy
	tokenTTL     time.Duration
	joinForm     *joinPage
	handler      http.Handler

	cleanup   func() error
	closeOnce sync.Once
	closeErr  error
}

func NewRouter(deps Dependencies) (*API, error) {
	if deps.AuthProvider == nil {
		return nil, errors.New("new router: auth provider is nil")
	}
	if deps.TokenIssuer == nil {
		return nil, errors.New("new router: token issuer is nil")
	}
	if deps.Service == nil {
		return nil, errors.New("new router: service is nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	joinForm, err := newJoinPage(deps.Service.Config())
	if err != nil {
		return nil, err
	}

	api := &API{
		authProvider: deps.AuthProvider,
		tokenIssuer:  deps.TokenIssuer,
		service:      deps.Service,
		logger:       logger.Named("http"),
		cors:         newCORSPolicy(deps.Runtime),
		tokenTTL:     ttl,
		joinForm:     joinForm,
		cleanup:      deps.Cleanup,
	}
	api.handler = logRequests(api.logger, http.HandlerFunc(api.route))
	return api, nil
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close releases the resources handed to the router. It is safe to call
// from several goroutines; cleanup runs once.
func (a *API) Close() error {
	a.closeOnce.Do(func() {
		if a.cleanup != nil {
			a.closeErr = a.cleanup()
		}
	})
	return a.closeErr
}

func (a *API) route(w http.ResponseWriter, r *http.Request) {
	setCORS(w, r, a.cors)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.URL.Path == "/healthz" {
		healthz(w, r)
		return
	}

	segments := requestSegments(r)
	if a.routePublic(w, r, segments) {
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/api/") {
		notFound(w)
		return
	}

	authCtx, err := a.authProvider.FromRequest(r)
	if err != nil {
		a.logger.Debug("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	switch {
	case isCollectionRoute(segments, "applications"):
		a.handleApplications(w, r, authCtx)
	case isItemRoute(segments, "applications"):
		a.handleApplicationByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "members"):
		a.handleMembers(w, r, authCtx)
	case isExactRoute(segments, "api", "members", "next-number"):
		a.handleNextMembershipNumber(w, r, authCtx)
	case len(segments) == 4 && segments[1] == "members" && segments[2] == "by-number":
		a.handleMemberByNumber(w, r, authCtx, segments[3])
	case isItemRoute(segments, "members"):
		a.handleMemberByID(w, r, authCtx, segments)
	case isCollectionRoute(segments, "shares"):
		a.handleShares(w, r, authCtx)
	case isItemRoute(segments, "shares"):
		a.handleSharesByID(w, r, authCtx, segments)
	case isItemRoute(segments, "dues"):
		a.handleDues(w, r, authCtx, segments)
	case isExactRoute(segments, "api", "import", "members"):
		a.handleImportMembers(w, r, authCtx)
	case isExactRoute(segments, "api", "export", "members"):
		a.handleExportMembers(w, r, authCtx)
	case isCollectionRoute(segments, "staff"):
		a.handleStaff(w, r, authCtx)
	case isItemRoute(segments, "staff"):
		a.handleStaffByID(w, r, authCtx, segments)
	case isExactRoute(segments, "api", "statistics"):
		a.handleStatistics(w, r, authCtx)
	default:
		notFound(w)
	}
}
