package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmscli/internal/license"
)

const testFingerprint = "AA:BB:CC:DD:EE:FF"

// fakeLicenseStore is an in-memory license.Store.
type fakeLicenseStore struct {
	record *license.Record
}

func (f *fakeLicenseStore) Load() (*license.Record, error) {
	if f.record == nil {
		return nil, nil
	}
	cp := *f.record
	return &cp, nil
}

func (f *fakeLicenseStore) Save(rec license.Record) error {
	f.record = &rec
	return nil
}

func (f *fakeLicenseStore) SetActive(active bool) error {
	if f.record == nil {
		return license.ErrNotActivated
	}
	f.record.IsActive = active
	return nil
}

func (f *fakeLicenseStore) Delete() error {
	f.record = nil
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func passthrough(next http.Handler) http.Handler { return next }

func newLicenseTestHandler(t *testing.T) (*LicenseHandler, http.Handler) {
	t.Helper()
	manager := license.NewManagerWithFingerprint(
		&fakeLicenseStore{},
		func() string { return testFingerprint },
		discardLogger(),
	)
	h := NewLicenseHandler(manager, discardLogger())
	return h, h.Routes(passthrough)
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func putJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, router http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestLicenseStatus_Unlicensed(t *testing.T) {
	_, router := newLicenseTestHandler(t)

	var status StatusResponse
	rec := getJSON(t, router, "/status", &status)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, status.Licensed)
	assert.Equal(t, "unlicensed", status.State)
}

func TestLicenseDevice(t *testing.T) {
	_, router := newLicenseTestHandler(t)

	var device DeviceResponse
	rec := getJSON(t, router, "/device?expiry_date=2026-12-31", &device)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testFingerprint, device.Fingerprint)
	assert.Equal(t, license.DeriveLicenseKey(testFingerprint, "2026-12-31"),
		device.SampleLicenseKey)
}

func TestLicenseActivate_Success(t *testing.T) {
	_, router := newLicenseTestHandler(t)
	key := license.DeriveLicenseKey(testFingerprint, "2099-12-31")

	rec := postJSON(t, router, "/activate", ActivateRequest{
		LicenseKey: key,
		ExpiryDate: "2099-12-31",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Licensed)
	assert.Equal(t, "active", status.State)
}

func TestLicenseActivate_WrongKey(t *testing.T) {
	_, router := newLicenseTestHandler(t)

	rec := postJSON(t, router, "/activate", ActivateRequest{
		LicenseKey: "AAAA-BBBB-CCCC-DDDD",
		ExpiryDate: "2099-12-31",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid or missing license")
}

func TestLicenseActivate_BadPayload(t *testing.T) {
	_, router := newLicenseTestHandler(t)

	tests := []struct {
		name string
		body ActivateRequest
	}{
		{"missing key", ActivateRequest{ExpiryDate: "2099-12-31"}},
		{"missing expiry", ActivateRequest{LicenseKey: "AAAA-BBBB-CCCC-DDDD"}},
		{"bad expiry format", ActivateRequest{LicenseKey: "AAAA-BBBB-CCCC-DDDD", ExpiryDate: "31/12/2099"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/activate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLicenseLoginLogoutCycle(t *testing.T) {
	_, router := newLicenseTestHandler(t)
	key := license.DeriveLicenseKey(testFingerprint, "2099-12-31")

	rec := postJSON(t, router, "/activate", ActivateRequest{LicenseKey: key, ExpiryDate: "2099-12-31"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	getJSON(t, router, "/status", &status)
	assert.False(t, status.Licensed)
	assert.Equal(t, "deactivated", status.State)

	rec = postJSON(t, router, "/login", LoginRequest{LicenseKey: key})
	assert.Equal(t, http.StatusOK, rec.Code)

	getJSON(t, router, "/status", &status)
	assert.True(t, status.Licensed)
}

func TestLicenseLogin_WrongKey(t *testing.T) {
	_, router := newLicenseTestHandler(t)
	key := license.DeriveLicenseKey(testFingerprint, "2099-12-31")

	postJSON(t, router, "/activate", ActivateRequest{LicenseKey: key, ExpiryDate: "2099-12-31"})
	postJSON(t, router, "/logout", nil)

	rec := postJSON(t, router, "/login", LoginRequest{LicenseKey: "AAAA-BBBB-CCCC-DDDD"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLicenseRevoke(t *testing.T) {
	_, router := newLicenseTestHandler(t)
	key := license.DeriveLicenseKey(testFingerprint, "2099-12-31")

	postJSON(t, router, "/activate", ActivateRequest{LicenseKey: key, ExpiryDate: "2099-12-31"})

	rec := postJSON(t, router, "/revoke", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	getJSON(t, router, "/status", &status)
	assert.False(t, status.Licensed)
	assert.Equal(t, "unlicensed", status.State)
}

func TestRequireLicense(t *testing.T) {
	h, router := newLicenseTestHandler(t)

	protected := h.RequireLicense(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unlicensed requests are blocked")

	key := license.DeriveLicenseKey(testFingerprint, "2099-12-31")
	postJSON(t, router, "/activate", ActivateRequest{LicenseKey: key, ExpiryDate: "2099-12-31"})

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code, "licensed requests pass through")
}
