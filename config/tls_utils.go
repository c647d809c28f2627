package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ajkula/dirmon/domain/port/outbound"
)

// certificates are renewed when they expire within this window
const certRenewWindow = 30 * 24 * time.Hour

// EnsureTLSCertificates makes sure HTTP.CertFile and HTTP.KeyFile point to a
// usable key pair, generating a self-signed one under DataDir/tls when needed.
// User supplied files are never overwritten.
func EnsureTLSCertificates(config *Config, cryptoService outbound.CryptoService, logger outbound.Logger) error {
	if !config.HTTP.TLS {
		return nil
	}

	hostname := tlsHostname(config.HTTP.Address)

	if config.HTTP.CertFile != "" && config.HTTP.KeyFile != "" {
		if err := checkKeyPair(config.HTTP.CertFile, config.HTTP.KeyFile, hostname); err != nil {
			logger.Warn("Configured TLS certificate may not be valid", "certFile", config.HTTP.CertFile, "error", err)
		}
		return nil
	}

	tlsDir := filepath.Join(config.General.DataDir, "tls")
	if err := os.MkdirAll(tlsDir, 0755); err != nil {
		return fmt.Errorf("failed to create TLS directory: %w", err)
	}

	config.HTTP.CertFile = filepath.Join(tlsDir, "server.crt")
	config.HTTP.KeyFile = filepath.Join(tlsDir, "server.key")

	err := checkKeyPair(config.HTTP.CertFile, config.HTTP.KeyFile, hostname)
	if err == nil {
		logger.Info("Using existing TLS certificates", "certFile", config.HTTP.CertFile)
		return nil
	}
	if !os.IsNotExist(err) {
		logger.Info("Regenerating TLS certificates", "reason", err.Error())
	}

	certPEM, keyPEM, err := cryptoService.GenerateTLSCertificate(hostname)
	if err != nil {
		return fmt.Errorf("failed to generate TLS certificates: %w", err)
	}

	if err := os.WriteFile(config.HTTP.CertFile, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	if err := os.WriteFile(config.HTTP.KeyFile, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}

	logger.Info("Self-signed TLS certificate generated",
		"certFile", config.HTTP.CertFile,
		"hostname", hostname)

	return nil
}

func tlsHostname(address string) string {
	if address == "" || address == "0.0.0.0" || address == "::" {
		return "localhost"
	}
	return address
}

// checkKeyPair loads the pair and rejects certificates that expire soon or do
// not cover hostname. Missing files yield an os.IsNotExist error.
func checkKeyPair(certPath, keyPath, hostname string) error {
	for _, p := range []string{certPath, keyPath} {
		if _, err := os.Stat(p); err != nil {
			return err
		}
	}

	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return fmt.Errorf("cannot load key pair: %w", err)
	}

	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return fmt.Errorf("cannot parse certificate: %w", err)
	}

	if time.Until(cert.NotAfter) < certRenewWindow {
		return fmt.Errorf("certificate expires %s", cert.NotAfter.Format(time.RFC3339))
	}

	if err := cert.VerifyHostname(hostname); err != nil {
		return err
	}

	return nil
}
