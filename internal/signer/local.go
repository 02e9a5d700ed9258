package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// LocalSigner firma en proceso con una clave Ed25519. Backing para dev y
// tests; en producción la interfaz la cubre el firmador remoto.
type LocalSigner struct {
	kid  string
	priv ed25519.PrivateKey
}

func NewLocalSigner(kid string, priv ed25519.PrivateKey) *LocalSigner {
	return &LocalSigner{kid: kid, priv: priv}
}

// LoadLocalSigner lee una clave privada Ed25519 en PEM (PKCS#8).
func LoadLocalSigner(kid, pemPath string) (*LocalSigner, error) {
	raw, err := os.ReadFile(pemPath)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("signing key: no PEM block")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key: expected ed25519, got %T", key)
	}
	return &LocalSigner{kid: kid, priv: priv}, nil
}

// GenerateLocalSigner genera una clave efímera. Solo tests/dev.
func GenerateLocalSigner(kid string) (*LocalSigner, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &LocalSigner{kid: kid, priv: priv}, nil
}

func (s *LocalSigner) KID() string       { return s.kid }
func (s *LocalSigner) Algorithm() string { return "EdDSA" }

func (s *LocalSigner) Sign(_ context.Context, signingInput []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, signingInput), nil
}

// PublicKey expone la pública (tests: verificar tokens emitidos).
func (s *LocalSigner) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}
