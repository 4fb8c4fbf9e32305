package tor

import (
	"encoding/base32"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	onionSuffix  = ".onion"
	onionVersion = 0x03
)

var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

var checksumPrefix = []byte(".onion checksum")

// IsOnionURL reports whether rawURL is an http(s) URL whose host is an onion
// address, including subdomains of one.
func IsOnionURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), onionSuffix)
}

// OnionHost extracts the v3 service address from an onion URL, dropping any
// subdomain, and verifies its checksum.
func OnionHost(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrInvalidOnionAddress
	}
	host := strings.ToLower(u.Hostname())
	labels := strings.Split(strings.TrimSuffix(host, onionSuffix), ".")
	addr := labels[len(labels)-1] + onionSuffix
	if !IsValidV3Address(addr) {
		return "", ErrInvalidOnionAddress
	}
	return addr, nil
}

// IsValidV3Address checks the format, version byte and SHA3-256 checksum of
// a v3 onion address such as "xyz...abc.onion".
func IsValidV3Address(addr string) bool {
	addr = strings.ToLower(addr)
	if !onionV3Pattern.MatchString(addr) {
		return false
	}
	raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(addr, onionSuffix)))
	if err != nil || len(raw) != 35 {
		return false
	}
	pubkey, sum, version := raw[:32], raw[32:34], raw[34]
	if version != onionVersion {
		return false
	}
	want := checksum(pubkey, version)
	return sum[0] == want[0] && sum[1] == want[1]
}

// AddressFromPublicKey derives the v3 onion address of an ed25519 key.
func AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}
	raw := make([]byte, 0, 35)
	raw = append(raw, pubkey...)
	raw = append(raw, checksum(pubkey, onionVersion)...)
	raw = append(raw, onionVersion)
	return strings.ToLower(base32.StdEncoding.EncodeToString(raw)) + onionSuffix, nil
}

// checksum is the first two bytes of SHA3-256(".onion checksum" | key | version).
func checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	h := sha3.Sum256(data)
	return h[:2]
}
