package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "vmscli/internal/errors"
	"vmscli/internal/license"
)

var validate = validator.New()

// LicenseHandler exposes the licensing operations. Every failure renders
// the same generic body; the UI only ever learns success or failure.
type LicenseHandler struct {
	manager *license.Manager
	logger  *slog.Logger
}

// NewLicenseHandler creates a license handler.
func NewLicenseHandler(manager *license.Manager, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		manager: manager,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the chi router for /api/license. The rate limiter for
// activate and login is installed by the caller so the limit is shared
// across both endpoints.
func (h *LicenseHandler) Routes(limited func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.Status)
	r.Get("/device", h.Device)
	r.Group(func(r chi.Router) {
		r.Use(limited)
		r.Post("/activate", h.Activate)
		r.Post("/login", h.Login)
	})
	r.Post("/logout", h.Logout)
	r.Post("/revoke", h.Revoke)

	return r
}

// ActivateRequest is the activation payload. The expiry date is part of
// the key derivation, so both travel together.
type ActivateRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	ExpiryDate string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
}

// LoginRequest is the unlock payload for an already activated install.
type LoginRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
}

// StatusResponse reports the current license state.
type StatusResponse struct {
	Licensed  bool      `json:"licensed"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceResponse identifies this device for key issuance.
type DeviceResponse struct {
	Fingerprint      string `json:"fingerprint"`
	SampleLicenseKey string `json:"sample_license_key"`
}

// Status handles GET /api/license/status.
func (h *LicenseHandler) Status(w http.ResponseWriter, r *http.Request) {
	state := h.manager.Status()
	render.JSON(w, r, StatusResponse{
		Licensed:  state.Licensed(),
		State:     state.String(),
		Timestamp: time.Now(),
	})
}

// Device handles GET /api/license/device.
func (h *LicenseHandler) Device(w http.ResponseWriter, r *http.Request) {
	expiryHint := r.URL.Query().Get("expiry_date")
	info := h.manager.GetCurrentDeviceInfo(expiryHint)
	render.JSON(w, r, DeviceResponse{
		Fingerprint:      info.Fingerprint,
		SampleLicenseKey: info.SampleLicenseKey,
	})
}

// Activate handles POST /api/license/activate.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if !h.manager.Activate(req.LicenseKey, req.ExpiryDate) {
		h.logger.Warn("activation rejected",
			slog.String("key", license.MaskLicenseKey(req.LicenseKey)))
		render.Render(w, r, apierrors.ErrInvalidLicense)
		return
	}

	h.logger.Info("license activated",
		slog.String("key", license.MaskLicenseKey(req.LicenseKey)))
	h.renderStatus(w, r)
}

// Login handles POST /api/license/login.
func (h *LicenseHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if !h.manager.Login(req.LicenseKey) {
		h.logger.Warn("license login rejected",
			slog.String("key", license.MaskLicenseKey(req.LicenseKey)))
		render.Render(w, r, apierrors.ErrInvalidLicense)
		return
	}

	h.renderStatus(w, r)
}

// Logout handles POST /api/license/logout.
func (h *LicenseHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Logout() {
		render.Render(w, r, apierrors.ErrInvalidLicense)
		return
	}
	h.renderStatus(w, r)
}

// Revoke handles POST /api/license/revoke.
func (h *LicenseHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Revoke() {
		render.Render(w, r, apierrors.ErrInvalidLicense)
		return
	}
	h.logger.Info("license revoked")
	h.renderStatus(w, r)
}

func (h *LicenseHandler) renderStatus(w http.ResponseWriter, r *http.Request) {
	state := h.manager.Status()
	render.JSON(w, r, StatusResponse{
		Licensed:  state.Licensed(),
		State:     state.String(),
		Timestamp: time.Now(),
	})
}

// RequireLicense blocks requests while the license is not active. Mounted
// in front of the visitor routes so an unlicensed install exposes nothing
// but the licensing endpoints.
func (h *LicenseHandler) RequireLicense(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.manager.IsLicensed() {
			render.Render(w, r, apierrors.ErrInvalidLicense)
			return
		}
		next.ServeHTTP(w, r)
	})
}
