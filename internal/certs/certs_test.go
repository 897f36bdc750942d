package certs

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLeaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1, "should have one certificate")
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return x509Cert
}

func TestFileManager_GetOrCreateCertificate(t *testing.T) {
	tests := []struct {
		setup    func(t *testing.T, certDir string)
		validate func(t *testing.T, certDir string, cert tls.Certificate)
		name     string
	}{
		{
			name:  "creates new certificate when none exists",
			setup: func(_ *testing.T, _ string) {},
			validate: func(t *testing.T, certDir string, cert tls.Certificate) {
				t.Helper()
				leaf := parseLeaf(t, cert)
				assert.Equal(t, "Balance Local Ledger", leaf.Subject.Organization[0])
				assert.Contains(t, leaf.DNSNames, "localhost")
				assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
				assert.True(t, leaf.NotAfter.After(time.Now().Add(364*24*time.Hour)), "certificate should be valid for about a year")

				info, err := os.Stat(filepath.Join(certDir, "balance.key"))
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
			},
		},
		{
			name: "reuses existing valid certificate",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				_, err := NewFileManager(certDir).GetOrCreateCertificate()
				require.NoError(t, err)
			},
			validate: func(t *testing.T, certDir string, cert tls.Certificate) {
				t.Helper()
				again, err := NewFileManager(certDir).GetOrCreateCertificate()
				require.NoError(t, err)
				assert.Equal(t, Fingerprint(again), Fingerprint(cert))
			},
		},
		{
			name: "regenerates unreadable certificate files",
			setup: func(t *testing.T, certDir string) {
				t.Helper()
				require.NoError(t, os.MkdirAll(certDir, 0700))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, "balance.crt"), []byte("garbage"), 0600))
				require.NoError(t, os.WriteFile(filepath.Join(certDir, "balance.key"), []byte("garbage"), 0600))
			},
			validate: func(t *testing.T, _ string, cert tls.Certificate) {
				t.Helper()
				parseLeaf(t, cert)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certDir := filepath.Join(t.TempDir(), "certs")
			tt.setup(t, certDir)

			cert, err := NewFileManager(certDir).GetOrCreateCertificate()
			require.NoError(t, err)
			tt.validate(t, certDir, cert)
		})
	}
}

func TestFileManager_ExtraHosts(t *testing.T) {
	certDir := t.TempDir()

	first, err := NewFileManager(certDir).GetOrCreateCertificate()
	require.NoError(t, err)

	cert, err := NewFileManager(certDir, "ledger.lan", "192.168.1.20").GetOrCreateCertificate()
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(first), Fingerprint(cert), "missing host forces a new certificate")

	leaf := parseLeaf(t, cert)
	assert.Contains(t, leaf.DNSNames, "ledger.lan")
	found := false
	for _, ip := range leaf.IPAddresses {
		if ip.Equal(net.ParseIP("192.168.1.20")) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFileManager_RenewsNearExpiry(t *testing.T) {
	certDir := t.TempDir()
	m := NewFileManager(certDir)

	first, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(Validity - RenewBefore/2) }
	renewed, err := m.GetOrCreateCertificate()
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(first), Fingerprint(renewed))
}

func TestFileManager_TLSConfig(t *testing.T) {
	cfg, err := NewFileManager(t.TempDir()).TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(tls.Certificate{}))

	cert, err := NewFileManager(t.TempDir()).GetOrCreateCertificate()
	require.NoError(t, err)
	assert.Len(t, Fingerprint(cert), 64)
}
