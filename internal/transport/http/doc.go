// Package http contains the chi handlers behind the local desk UI. The
// surface is split into a license handler, which gates the rest of the
// application, and a visitor handler for registration, checkout, history
// and blacklist management.
package http
