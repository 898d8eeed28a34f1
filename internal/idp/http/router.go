package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/consign/internal/idp/service"
	"github.com/aussiebroadwan/consign/internal/idp/store"
	"github.com/aussiebroadwan/consign/pkg/httpx"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/aussiebroadwan/consign/pkg/slogx"

	_ "github.com/aussiebroadwan/consign/api/idp" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	OTPService  *service.OTPService
	UserService *service.UserService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOTP()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Consign Identity Provider API
//	@version		0.1.0
//	@description	Passwordless sign-in by one-time email code.
//	@description
//	@description				Verified users receive an EdDSA-signed session token that can be checked against the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/consign
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOTP() {
	h := &OTPHandler{OTPService: r.OTPService}

	// One strict bucket per client address and email across all three.
	limit := httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email")

	r.Mux.Handle("POST /v1/otp/request", httpx.Chain(http.HandlerFunc(h.HandleRequest), limit))
	r.Mux.Handle("POST /v1/otp/resend", httpx.Chain(http.HandlerFunc(h.HandleResend), limit))
	r.Mux.Handle("POST /v1/otp/verify", httpx.Chain(http.HandlerFunc(h.HandleVerify), limit))

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerUsers() {
	info := &UserInfoHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(info,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	list := &UsersHandler{UserService: r.UserService}
	r.Mux.Handle("GET /v1/users",
		httpx.Chain(list,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole("admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
