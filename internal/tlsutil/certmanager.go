// Package tlsutil serves the API over HTTPS with ACME certificates.
package tlsutil

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caddyserver/certmagic"
)

// Options configure certificate management.
type Options struct {
	Domains    []string
	Email      string
	Production bool
	// StorageDir overrides certmagic's default certificate storage.
	StorageDir string
}

// CertManager obtains and renews certificates for a fixed set of domains.
type CertManager struct {
	cfg     *certmagic.Config
	domains []string
	logger  *slog.Logger
}

// caFor selects the Let's Encrypt directory. Anything but production uses
// staging so test deployments do not hit production rate limits.
func caFor(production bool) string {
	if production {
		return certmagic.LetsEncryptProductionCA
	}
	return certmagic.LetsEncryptStagingCA
}

// NewCertManager configures certmagic's default ACME issuer for opts.
func NewCertManager(opts Options, logger *slog.Logger) (*CertManager, error) {
	if len(opts.Domains) == 0 {
		return nil, errors.New("tls: no domains configured")
	}
	certmagic.DefaultACME.Email = opts.Email
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.CA = caFor(opts.Production)
	if opts.StorageDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: opts.StorageDir}
	}

	return &CertManager{cfg: certmagic.NewDefault(), domains: opts.Domains, logger: logger}, nil
}

// Domains returns the managed domain names.
func (cm *CertManager) Domains() []string { return cm.domains }

// Manage obtains certificates for every domain, blocking until they are ready.
func (cm *CertManager) Manage(ctx context.Context) error {
	cm.logger.Info("managing TLS certificates", "domains", cm.domains)
	if err := cm.cfg.ManageSync(ctx, cm.domains); err != nil {
		return fmt.Errorf("manage domains: %w", err)
	}
	return nil
}

// TLSConfig returns a config that serves the managed certificates and
// answers TLS-ALPN challenges.
func (cm *CertManager) TLSConfig() *tls.Config {
	cfg := cm.cfg.TLSConfig()
	cfg.NextProtos = append([]string{"h2", "http/1.1"}, cfg.NextProtos...)
	return cfg
}

// ServeTLS serves srv over TLS on its configured address.
func (cm *CertManager) ServeTLS(srv *http.Server) error {
	srv.TLSConfig = cm.TLSConfig()
	ln, err := tls.Listen("tcp", srv.Addr, srv.TLSConfig)
	if err != nil {
		return fmt.Errorf("tls listen: %w", err)
	}
	cm.logger.Info("serving HTTPS", "addr", srv.Addr)
	return srv.Serve(ln)
}
