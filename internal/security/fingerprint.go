package security

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/keygen-sh/machineid"
)

// UnknownFingerprint is returned when no hardware identifier can be read.
// Callers must treat it as a valid but degraded identity, not as an error:
// keys still derive from it and the store still binds to it.
const UnknownFingerprint = "UNKNOWN"

// FingerprintFunc supplies the current device fingerprint. The cipher, the
// license manager and the integrity guard all take one as a dependency so
// tests can substitute a fixed identity.
type FingerprintFunc func() string

var (
	fingerprintOnce   sync.Once
	cachedFingerprint string
)

// DeviceFingerprint returns a stable identifier for the local machine,
// derived from the primary network adapter's hardware address and
// normalized to uppercase colon-separated hex octets (AA:BB:CC:DD:EE:FF).
// The value is deterministic across calls and process restarts.
func DeviceFingerprint() string {
	fingerprintOnce.Do(func() {
		cachedFingerprint = computeFingerprint()
	})
	return cachedFingerprint
}

func computeFingerprint() string {
	mac, err := primaryMACAddress()
	if err == nil {
		return normalizeMAC(mac)
	}
	slog.Warn("no usable MAC address, falling back to machine id",
		slog.String("error", err.Error()))

	// Fold the OS machine id into the same textual form so downstream
	// formatting and comparisons stay uniform.
	if id, idErr := machineid.ID(); idErr == nil && id != "" {
		return pseudoMAC(id)
	}

	slog.Warn("machine id unavailable, using degraded fingerprint",
		slog.String("fingerprint", UnknownFingerprint))
	return UnknownFingerprint
}

// primaryMACAddress returns the hardware address of the first up,
// non-loopback interface, or of any interface carrying a MAC if none
// qualifies.
func primaryMACAddress() (net.HardwareAddr, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if usableMAC(iface.HardwareAddr) {
			return iface.HardwareAddr, nil
		}
	}

	for _, iface := range interfaces {
		if usableMAC(iface.HardwareAddr) {
			slog.Debug("using fallback interface for fingerprint",
				slog.String("interface", iface.Name))
			return iface.HardwareAddr, nil
		}
	}

	return nil, fmt.Errorf("no interface with a hardware address")
}

func usableMAC(addr net.HardwareAddr) bool {
	if len(addr) == 0 {
		return false
	}
	for _, b := range addr {
		if b != 0 {
			return true
		}
	}
	return false
}

func normalizeMAC(addr net.HardwareAddr) string {
	return strings.ToUpper(addr.String())
}

// pseudoMAC digests an arbitrary machine identifier into the fingerprint's
// fixed textual form: six colon-separated uppercase hex octets.
func pseudoMAC(id string) string {
	sum := sha256.Sum256([]byte(id))
	parts := make([]string, 6)
	for i := 0; i < 6; i++ {
		parts[i] = fmt.Sprintf("%02X", sum[i])
	}
	return strings.Join(parts, ":")
}
