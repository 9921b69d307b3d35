package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testFingerprint    = "AA:BB:CC:DD:EE:FF"
	foreignFingerprint = "11:22:33:44:55:66"
)

// openTestStore opens a store on a throwaway SQLite file with a fixed
// device identity and a controllable clock.
func openTestStore(t *testing.T, path, fingerprint string) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(path, Options{
		Fingerprint: func() string { return fingerprint },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2026, 1, 15, 9, 30, 0, 0, time.Local)
	s.now = func() time.Time { return now }
	s.cache.Invalidate("")
	return s, &now
}

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "visitor_management.db")
	return openTestStore(t, path, testFingerprint)
}

func registerVisitor(t *testing.T, s *Store, mutate func(*Visitor)) *Visitor {
	t.Helper()
	v := &Visitor{
		VisitRecord: VisitRecord{
			NRIC:          "S1234567A",
			HPNo:          "91234567",
			FirstName:     "Mei",
			LastName:      "Tan",
			Category:      "Contractor",
			Purpose:       "Maintenance",
			Destination:   "Level 3",
			PersonVisited: "Facilities",
		},
	}
	if mutate != nil {
		mutate(v)
	}
	require.NoError(t, s.AddVisitor(v))
	return v
}
