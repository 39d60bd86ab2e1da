package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TLSOptions selects how the debug console gets its certificate.
type TLSOptions struct {
	Domain   string // Let's Encrypt domain
	CertFile string
	KeyFile  string
	CertDir  string // Self-signed certs and the autocert cache
	Host     string // Extra name for the self-signed cert
}

// TLSResult holds the TLS config and optional autocert manager.
type TLSResult struct {
	Config      *tls.Config
	AutocertMgr *autocert.Manager // Non-nil when using Let's Encrypt
}

// SetupTLS picks the first strategy the options allow: Let's Encrypt for a
// domain, the given cert/key pair, or a self-signed cert kept in CertDir.
func SetupTLS(opts TLSOptions) (*TLSResult, error) {
	if opts.CertDir == "" {
		opts.CertDir = "certs"
	}

	if opts.Domain != "" {
		log.Printf("WEB: using Let's Encrypt for domain %q", opts.Domain)
		cacheDir := filepath.Join(opts.CertDir, "autocert-cache")
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return nil, fmt.Errorf("creating autocert cache dir: %w", err)
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(opts.Domain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return &TLSResult{Config: m.TLSConfig(), AutocertMgr: m}, nil
	}

	if opts.CertFile != "" && opts.KeyFile != "" {
		log.Printf("WEB: loading cert from %s, key from %s", opts.CertFile, opts.KeyFile)
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading TLS cert: %w", err)
		}
		return &TLSResult{Config: &tls.Config{Certificates: []tls.Certificate{cert}}}, nil
	}

	cfg, err := selfSigned(opts.CertDir, opts.Host)
	if err != nil {
		return nil, err
	}
	return &TLSResult{Config: cfg}, nil
}

// selfSigned loads the self-signed pair from certDir, creating it first if
// it does not exist.
func selfSigned(certDir, host string) (*tls.Config, error) {
	if err := os.MkdirAll(certDir, 0700); err != nil {
		return nil, fmt.Errorf("creating cert dir: %w", err)
	}
	certPath := filepath.Join(certDir, "console.crt")
	keyPath := filepath.Join(certDir, "console.key")

	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	if certErr != nil || keyErr != nil {
		log.Printf("WEB: generating self-signed certificate in %s", certDir)
		if err := writeSelfSigned(certPath, keyPath, host); err != nil {
			return nil, err
		}
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading self-signed cert: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func writeSelfSigned(certPath, keyPath, host string) error {
	privKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generating serial: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"arxscript debug console"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	if host != "" {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privKey.PublicKey, privKey)
	if err != nil {
		return fmt.Errorf("creating certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(privKey)
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}
	if err := writePEM(certPath, 0644, "CERTIFICATE", certDER); err != nil {
		return err
	}
	return writePEM(keyPath, 0600, "EC PRIVATE KEY", keyDER)
}

func writePEM(path string, perm os.FileMode, typ string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: typ, Bytes: der}); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
