package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/consign/internal/idp/service"
	"github.com/aussiebroadwan/consign/internal/idp/store"
	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/aussiebroadwan/consign/pkg/httpx"
	"github.com/aussiebroadwan/consign/pkg/slogx"
)

type UserInfoHandler struct {
	UserService *service.UserService
}

// ServeHTTP returns the signed-in user.
//
//	@Summary		Get user information
//	@Description	Returns the user the session token was issued to. A token for an account that no longer exists is rejected.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.User			"id, name, email, role"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing session token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/userinfo [get].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		httpx.WriteBearerError(w, "missing subject")
		return
	}

	// The token is answered from its own claims; the lookup only confirms
	// the account still exists.
	_, err := h.UserService.GetUserByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteBearerError(w, "account no longer exists")
		return
	case err != nil:
		slogx.FromContext(ctx).Warn("failed to load user", "user_id", claims.Subject, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "failed to load user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserFromClaims(claims))
}

type UsersHandler struct {
	UserService *service.UserService
}

// ServeHTTP lists every provisioned account.
//
//	@Summary		List users
//	@Description	Lists every provisioned account. Requires the admin role.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{array}		authsdk.User
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing session token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"insufficient_role"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/users [get].
func (h *UsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.ListUsers(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to list users", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "failed to list users")
		return
	}

	out := make([]authsdk.User, 0, len(users))
	for _, u := range users {
		out = append(out, toSDKUser(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
