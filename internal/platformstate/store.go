// Package platformstate es el acceso tipado al estado canónico por entidad
// (agreement, descriptor de catálogo, purpose) sobre el key-value store.
// Todas las escrituras son condicionales por versión: aplicar dos veces el
// mismo evento deja la entrada igual que aplicarlo una vez.
package platformstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
	"github.com/pagopa/interop-token-platform/internal/model"
)

const queryPageSize = 100

type Store struct {
	kv kvstore.Client
}

func New(kv kvstore.Client) *Store {
	return &Store{kv: kv}
}

// ─────────────────────────── agreement ───────────────────────────

func (s *Store) GetAgreement(ctx context.Context, pk string) (*model.PlatformStatesAgreementEntry, error) {
	doc, err := s.kv.Get(ctx, kvstore.TablePlatformStates, pk)
	if err != nil {
		return nil, err
	}
	var e model.PlatformStatesAgreementEntry
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("malformed agreement entry %s: %w", pk, err)
	}
	return &e, nil
}

// UpsertAgreement crea o actualiza la entrada con guard de versión.
// applied=false significa que la versión almacenada ya es >= (redelivery u
// out-of-order): no-op esperado, el caller no debe hacer fan-out.
func (s *Store) UpsertAgreement(ctx context.Context, e model.PlatformStatesAgreementEntry) (applied bool, err error) {
	e.UpdatedAt = time.Now().UTC()
	return s.upsert(ctx, e.PK, e, e.Version)
}

func (s *Store) DeleteAgreement(ctx context.Context, pk string) error {
	return s.kv.Delete(ctx, kvstore.TablePlatformStates, pk)
}

// ListAgreementsByConsumerEService retorna todas las entradas de agreement
// que comparten la clave consumer+eservice, paginación drenada.
func (s *Store) ListAgreementsByConsumerEService(ctx context.Context, key string) ([]model.PlatformStatesAgreementEntry, error) {
	docs, err := kvstore.QueryAll(ctx, s.kv, kvstore.TablePlatformStates, kvstore.IndexConsumerEService, key, queryPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]model.PlatformStatesAgreementEntry, 0, len(docs))
	for _, doc := range docs {
		var e model.PlatformStatesAgreementEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("malformed agreement entry in index %s: %w", key, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// IsLatestAgreement: entre todas las entradas que comparten la clave
// consumer+eservice, "latest" es la de mayor agreementTimestamp. Un
// agreement sin pares es latest. Solo el latest propaga al índice de tokens.
func (s *Store) IsLatestAgreement(ctx context.Context, consumerEServiceKey, agreementID string) (bool, error) {
	entries, err := s.ListAgreementsByConsumerEService(ctx, consumerEServiceKey)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return true, nil
	}
	target := model.AgreementPK(agreementID)
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.AgreementTimestamp.After(latest.AgreementTimestamp) {
			latest = e
		}
	}
	return latest.PK == target, nil
}

// ─────────────────────────── catalog ───────────────────────────

func (s *Store) GetCatalog(ctx context.Context, pk string) (*model.PlatformStatesCatalogEntry, error) {
	doc, err := s.kv.Get(ctx, kvstore.TablePlatformStates, pk)
	if err != nil {
		return nil, err
	}
	var e model.PlatformStatesCatalogEntry
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("malformed catalog entry %s: %w", pk, err)
	}
	return &e, nil
}

func (s *Store) UpsertCatalog(ctx context.Context, e model.PlatformStatesCatalogEntry) (applied bool, err error) {
	e.UpdatedAt = time.Now().UTC()
	return s.upsert(ctx, e.PK, e, e.Version)
}

func (s *Store) DeleteCatalog(ctx context.Context, pk string) error {
	return s.kv.Delete(ctx, kvstore.TablePlatformStates, pk)
}

// ─────────────────────────── purpose ───────────────────────────

func (s *Store) GetPurpose(ctx context.Context, pk string) (*model.PlatformStatesPurposeEntry, error) {
	doc, err := s.kv.Get(ctx, kvstore.TablePlatformStates, pk)
	if err != nil {
		return nil, err
	}
	var e model.PlatformStatesPurposeEntry
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("malformed purpose entry %s: %w", pk, err)
	}
	return &e, nil
}

func (s *Store) UpsertPurpose(ctx context.Context, e model.PlatformStatesPurposeEntry) (applied bool, err error) {
	e.UpdatedAt = time.Now().UTC()
	return s.upsert(ctx, e.PK, e, e.Version)
}

func (s *Store) DeletePurpose(ctx context.Context, pk string) error {
	return s.kv.Delete(ctx, kvstore.TablePlatformStates, pk)
}

// upsert: Put first-write-wins; si ya existe, Update condicional a que la
// versión del caller sea estrictamente mayor.
func (s *Store) upsert(ctx context.Context, pk string, entry any, version int64) (bool, error) {
	doc, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	err = s.kv.Put(ctx, kvstore.TablePlatformStates, pk, doc)
	if err == nil {
		return true, nil
	}
	if err != kvstore.ErrConflict {
		return false, err
	}
	err = s.kv.Update(ctx, kvstore.TablePlatformStates, pk, doc, kvstore.Condition{VersionBelow: version})
	if errors.Is(err, kvstore.ErrConditionFailed) || errors.Is(err, kvstore.ErrNotFound) {
		// versión vieja redelivered, o delete concurrente: no-op
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
