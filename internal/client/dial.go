package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// dial opens a client connection according to cfg.  Without Insecure
// the connection uses TLS, verifying the server against RootCA (or the
// system pool when empty) and presenting ClientCert/ClientKey when both
// are set.
func dial(cfg DialConfig) (*grpc.ClientConn, error) {
	if cfg.Address == "" {
		return nil, errors.New("server address is required")
	}
	creds, err := transportCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(creds))
}

func transportCredentials(cfg DialConfig) (credentials.TransportCredentials, error) {
	if cfg.Insecure {
		return insecure.NewCredentials(), nil
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.RootCA != "" {
		pem, err := os.ReadFile(cfg.RootCA)
		if err != nil {
			return nil, fmt.Errorf("read root ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.RootCA)
		}
		tlsCfg.RootCAs = pool
	}

	switch {
	case cfg.ClientCert != "" && cfg.ClientKey != "":
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client keypair: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	case cfg.ClientCert != "" || cfg.ClientKey != "":
		return nil, errors.New("--tls-cert and --tls-key must be given together")
	}
	return credentials.NewTLS(tlsCfg), nil
}
