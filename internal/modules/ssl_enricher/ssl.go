// Package sslenricher stores the TLS certificate of the archived host.
package sslenricher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/autoarchiver/internal/model"
	"github.com/nao1215/autoarchiver/internal/module"
	"github.com/nao1215/autoarchiver/internal/netutil"
	"github.com/nao1215/autoarchiver/internal/storage"
)

// MediaID identifies the certificate file among the item's media.
const MediaID = "ssl_certificate"

// Media property keys.
const (
	PropSubject   = "subject"
	PropIssuer    = "issuer"
	PropNotBefore = "not_before"
	PropNotAfter  = "not_after"
	PropDNSNames  = "dns_names"
	PropSerial    = "serial_number"
	PropVersion   = "tls_version"
)

const defaultTimeout = 15 * time.Second

var (
	// ErrNotHTTPS is returned for URLs with another scheme.
	ErrNotHTTPS = errors.New("ssl_enricher only supports https URLs")
	// ErrNoCertificate is returned when the server presented no certificate.
	ErrNoCertificate = errors.New("server presented no certificate")
	// ErrNoTmpDir is returned when an item has no working directory.
	ErrNoTmpDir = errors.New("item has no working directory")
)

// Enricher fetches certificates.
type Enricher struct {
	skipEmpty bool
	timeout   time.Duration
	policy    netutil.Policy
	logger    *slog.Logger
}

// New is the module factory.
func New(env *module.Env) (any, error) {
	timeout := env.Options.Seconds("timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Enricher{
		skipEmpty: env.Options.Bool("skip_when_nothing_archived"),
		timeout:   timeout,
		policy:    netutil.DefaultPolicy(),
		logger:    env.Logger,
	}, nil
}

// Enrich implements module.Enricher.
func (e *Enricher) Enrich(ctx context.Context, item *model.Item) error {
	if e.skipEmpty && len(item.Media) == 0 {
		e.logger.Debug("nothing archived, skipping certificate", "url", item.MustURL())
		return nil
	}
	raw, err := item.URL()
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: %s", ErrNotHTTPS, raw)
	}
	dir := item.ContextString(model.CtxTmpDir)
	if dir == "" {
		return ErrNoTmpDir
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}
	e.logger.Debug("fetching certificate", "host", host, "port", port)

	var state tls.ConnectionState
	err = netutil.Retry(ctx, e.policy, func(ctx context.Context) error {
		var err error
		state, err = e.fetch(ctx, host, port)
		if errors.Is(err, ErrNoCertificate) {
			return netutil.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to fetch certificate of %s: %w", host, err)
	}

	path := filepath.Join(dir, storage.Slugify(host)+".pem")
	if err := writePEM(path, state.PeerCertificates); err != nil {
		return err
	}
	leaf := state.PeerCertificates[0]
	m := model.NewMedia(path).
		Set(PropSubject, leaf.Subject.String()).
		Set(PropIssuer, leaf.Issuer.String()).
		Set(PropNotBefore, leaf.NotBefore.UTC().Format(time.RFC3339)).
		Set(PropNotAfter, leaf.NotAfter.UTC().Format(time.RFC3339)).
		Set(PropSerial, leaf.SerialNumber.String()).
		Set(PropVersion, tls.VersionName(state.Version))
	if len(leaf.DNSNames) > 0 {
		m.Set(PropDNSNames, leaf.DNSNames)
	}
	m.SetMimetype("application/x-pem-file")
	return item.AddMedia(m, MediaID)
}

// fetch performs a TLS handshake and returns its state. The chain is
// recorded as served, so it is not verified.
func (e *Enricher) fetch(ctx context.Context, host, port string) (tls.ConnectionState, error) {
	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: e.timeout},
		Config:    &tls.Config{ServerName: host, InsecureSkipVerify: true}, //nolint:gosec // the certificate is archived, not trusted
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return tls.ConnectionState{}, err
	}
	defer conn.Close()

	tc, ok := conn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, ErrNoCertificate
	}
	state := tc.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return tls.ConnectionState{}, ErrNoCertificate
	}
	return state, nil
}

func writePEM(path string, chain []*x509.Certificate) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	for _, c := range chain {
		if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return f.Close()
}
