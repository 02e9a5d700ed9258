// Package objectstore abstrae el storage de objetos durable usado como
// fallback de auditoría. El cliente real (S3 o similar) es un colaborador
// externo; fsstore es el backing local.
package objectstore

import (
	"context"
	"path/filepath"

	"github.com/pagopa/interop-token-platform/internal/util/atomicwrite"
)

type Store interface {
	Put(ctx context.Context, key string, body []byte) error
}

// FSStore escribe objetos como archivos bajo BaseDir, key = path relativo.
type FSStore struct {
	BaseDir string
}

func NewFSStore(baseDir string) *FSStore {
	return &FSStore{BaseDir: baseDir}
}

func (s *FSStore) Put(_ context.Context, key string, body []byte) error {
	return atomicwrite.AtomicWriteFile(filepath.Join(s.BaseDir, filepath.FromSlash(key)), body, 0644)
}
