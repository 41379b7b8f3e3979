// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"crypto/tls"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/ballot/internal/config"
)

func writeFile(dir, name, content string) error {
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestResolveTLSMode(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		expected TLSMode
	}{
		{"explicit off", config.Config{Server: config.ServerConfig{Host: "vote.example.com"}, TLS: config.TLSConfig{Mode: "off"}}, TLSModeOff},
		{"explicit selfsigned", config.Config{Server: config.ServerConfig{Host: "localhost"}, TLS: config.TLSConfig{Mode: "selfsigned"}}, TLSModeSelfSigned},
		{"explicit manual", config.Config{TLS: config.TLSConfig{Mode: "Manual"}}, TLSModeManual},
		{"auto localhost", config.Config{Server: config.ServerConfig{Host: "localhost"}, TLS: config.TLSConfig{Mode: "auto"}}, TLSModeOff},
		{"auto with cert files", config.Config{
			Server: config.ServerConfig{Host: "vote.example.com"},
			TLS:    config.TLSConfig{CertFile: "cert.pem", KeyFile: "key.pem"},
		}, TLSModeManual},
		{"auto remote host", config.Config{Server: config.ServerConfig{Host: "vote.example.com"}}, TLSModeSelfSigned},
		{"unknown falls back to auto", config.Config{Server: config.ServerConfig{Host: "localhost"}, TLS: config.TLSConfig{Mode: "acme"}}, TLSModeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveTLSMode(&tt.cfg))
		})
	}
}

func TestSetupTLS_SelfSigned(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "vote.example.com", Port: 8443},
		TLS:    config.TLSConfig{Mode: "selfsigned", CertDir: t.TempDir()},
	}

	result, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, TLSModeSelfSigned, result.Mode)
	require.NotNil(t, result.TLSConfig)
	assert.Len(t, result.TLSConfig.Certificates, 1)
	assert.FileExists(t, filepath.Join(cfg.TLS.CertDir, "selfsigned", "cert.pem"))

	// A second start reuses the certificate.
	again, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, result.TLSConfig.Certificates[0].Certificate[0], again.TLSConfig.Certificates[0].Certificate[0])
}

func TestSetupTLS_ManualUsesGeneratedCert(t *testing.T) {
	dir := t.TempDir()
	selfSigned := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1"},
		TLS:    config.TLSConfig{Mode: "selfsigned", CertDir: dir},
	}
	_, err := SetupTLS(selfSigned)
	require.NoError(t, err)

	cfg := &config.Config{TLS: config.TLSConfig{
		Mode:     "manual",
		CertFile: filepath.Join(dir, "selfsigned", "cert.pem"),
		KeyFile:  filepath.Join(dir, "selfsigned", "key.pem"),
	}}

	result, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, TLSModeManual, result.Mode)
}

func TestSetupTLS_ManualErrors(t *testing.T) {
	_, err := SetupTLS(&config.Config{TLS: config.TLSConfig{Mode: "manual"}})
	assert.ErrorContains(t, err, "requires both")

	_, err = SetupTLS(&config.Config{TLS: config.TLSConfig{
		Mode:     "manual",
		CertFile: filepath.Join(t.TempDir(), "missing.pem"),
		KeyFile:  filepath.Join(t.TempDir(), "missing.key"),
	}})
	assert.ErrorContains(t, err, "not found")
}

func TestSetupTLS_Off(t *testing.T) {
	result, err := SetupTLS(&config.Config{Server: config.ServerConfig{Host: "localhost"}, TLS: config.TLSConfig{Mode: "off"}})

	require.NoError(t, err)
	assert.Equal(t, TLSModeOff, result.Mode)
	assert.Nil(t, result.TLSConfig)
}

func TestFingerprint(t *testing.T) {
	certPEM, keyPEM, err := newSelfSigned("vote.example.com", time.Now())
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	fp := fingerprint(&cert)
	assert.Len(t, fp, 32*3-1)
	assert.Equal(t, strings.ToUpper(fp), fp)

	require.NotNil(t, cert.Leaf)
	assert.Contains(t, cert.Leaf.DNSNames, "vote.example.com")
	assert.Contains(t, cert.Leaf.DNSNames, "localhost")
	assert.Empty(t, fingerprint(&tls.Certificate{}))
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

		logger.Info("hidden")
		logger.Warn("vote_recorded", "vote_id", "v1")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"vote_recorded"`)
		assert.Contains(t, buf.String(), `"vote_id":"v1"`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf)

		logger.Debug("otp_sent", "session", "s1")

		assert.Contains(t, buf.String(), "otp_sent")
		assert.Contains(t, buf.String(), "session=s1")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LogConfig{Level: "bogus", Format: "json"}, &buf)

		logger.Debug("hidden")
		logger.Info("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}
