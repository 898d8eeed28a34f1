package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/consign/internal/idp/domain"
	"github.com/aussiebroadwan/consign/internal/idp/service"
	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/aussiebroadwan/consign/pkg/httpx"
	"github.com/aussiebroadwan/consign/pkg/slogx"
)

// OTPHandler serves the three unauthenticated sign-in endpoints.
type OTPHandler struct {
	OTPService *service.OTPService
}

// HandleRequest godoc
//
//	@Summary		Request a sign-in code
//	@Description	Emails a fresh six digit code to a provisioned user, replacing any code still pending for that address.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.CodeRequest		true	"Email address"
//	@Success		202		{object}	authsdk.CodeAccepted	"Code dispatched"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_email or invalid_request"
//	@Failure		404		{object}	authsdk.ErrorResponse	"unknown_user"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limited"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/v1/otp/request [post].
func (h *OTPHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ch, err := h.OTPService.RequestCode(r.Context(), req.Email)
	if err != nil {
		writeOTPError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, accepted(ch))
}

// HandleResend godoc
//
//	@Summary		Resend a sign-in code
//	@Description	Emails a replacement code once the resend cooldown has passed. The previous code stops working.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.CodeRequest		true	"Email address"
//	@Success		202		{object}	authsdk.CodeAccepted	"Code dispatched"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_email or invalid_request"
//	@Failure		404		{object}	authsdk.ErrorResponse	"unknown_user"
//	@Failure		429		{object}	authsdk.ErrorResponse	"resend_not_allowed or rate_limited"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Header			429		{integer}	Retry-After				"Seconds until a resend is allowed"
//	@Router			/v1/otp/resend [post].
func (h *OTPHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CodeRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ch, err := h.OTPService.ResendCode(r.Context(), req.Email)
	if err != nil {
		writeOTPError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, accepted(ch))
}

// HandleVerify godoc
//
//	@Summary		Verify a sign-in code
//	@Description	Checks the code and, when it matches, returns a signed session token. Wrong codes count against a small attempt budget.
//	@Tags			OTP
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.VerifyRequest	true	"Email address and code"
//	@Success		200		{object}	authsdk.VerifyResponse	"Session token and user"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_code, invalid_email or invalid_request"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limited"
//	@Failure		500		{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/otp/verify [post].
func (h *OTPHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	issued, err := h.OTPService.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeOTPError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyResponse{
		Token:     issued.Token,
		TokenType: "Bearer",
		ExpiresIn: int(issued.ExpiresIn.Seconds()),
		User:      toSDKUser(issued.User),
	})
}

func accepted(ch domain.OTPChallenge) authsdk.CodeAccepted {
	return authsdk.CodeAccepted{
		Accepted:  true,
		ExpiresIn: int(ch.ExpiresAt.Sub(ch.UpdatedAt).Seconds()),
	}
}

// writeOTPError maps service errors onto the wire codes the client SDK
// understands.
func writeOTPError(w http.ResponseWriter, r *http.Request, err error) {
	var tooSoon *service.ResendTooSoonError

	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidEmail, err.Error())
	case errors.Is(err, service.ErrUnknownUser):
		httpx.WriteError(w, http.StatusNotFound, authsdk.ErrorCodeUnknownUser, err.Error())
	case errors.As(err, &tooSoon):
		secs := max(int((tooSoon.RetryIn + time.Second - 1) / time.Second), 1)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		httpx.WriteError(w, http.StatusTooManyRequests, authsdk.ErrorCodeResendNotYetAllowed, tooSoon.Error())
	case errors.Is(err, service.ErrNoChallenge),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrCodeExpired),
		errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidCode, err.Error())
	default:
		slogx.FromContext(r.Context()).Error("otp request failed", "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "the code could not be processed")
	}
}

func toSDKUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
