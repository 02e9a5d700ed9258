// Package tokengenstate es el acceso tipado al Token Generation Index: la
// tabla denormalizada que junta el material de clave de cada cliente con la
// copia del estado agreement/descriptor/purpose. El auth server resuelve una
// request con una sola lectura acá, sin llamadas cruzadas.
//
// Las entradas las crea el lado de authorization-management al registrar una
// clave; los writers de este repo solo las parchean.
package tokengenstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
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

// DecodeEntry despacha por el prefijo de la PK (el discriminante de la
// unión), no por presencia de campos.
func DecodeEntry(doc []byte) (model.TokenGenStatesEntry, error) {
	var probe struct {
		PK string `json:"PK"`
	}
	if err := json.Unmarshal(doc, &probe); err != nil {
		return nil, fmt.Errorf("malformed token-generation entry: %w", err)
	}
	switch {
	case strings.HasPrefix(probe.PK, model.ClientKidPurposeKeyPrefix):
		var e model.TokenGenStatesClientPurposeEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("malformed client-purpose entry %s: %w", probe.PK, err)
		}
		return &e, nil
	case strings.HasPrefix(probe.PK, model.ClientKidKeyPrefix):
		var e model.TokenGenStatesClientEntry
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("malformed client entry %s: %w", probe.PK, err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("unknown token-generation entry pk: %q", probe.PK)
	}
}

func (s *Store) GetClientEntry(ctx context.Context, clientID, kid string) (*model.TokenGenStatesClientEntry, error) {
	doc, err := s.kv.Get(ctx, kvstore.TableTokenGenStates, model.ClientKidPK(clientID, kid))
	if err != nil {
		return nil, err
	}
	entry, err := DecodeEntry(doc)
	if err != nil {
		return nil, err
	}
	e, ok := entry.(*model.TokenGenStatesClientEntry)
	if !ok {
		return nil, fmt.Errorf("entry %s is not a client entry", entry.EntryPK())
	}
	return e, nil
}

func (s *Store) GetClientPurposeEntry(ctx context.Context, clientID, kid, purposeID string) (*model.TokenGenStatesClientPurposeEntry, error) {
	doc, err := s.kv.Get(ctx, kvstore.TableTokenGenStates, model.ClientKidPurposePK(clientID, kid, purposeID))
	if err != nil {
		return nil, err
	}
	entry, err := DecodeEntry(doc)
	if err != nil {
		return nil, err
	}
	e, ok := entry.(*model.TokenGenStatesClientPurposeEntry)
	if !ok {
		return nil, fmt.Errorf("entry %s is not a client-purpose entry", entry.EntryPK())
	}
	return e, nil
}

// ListByConsumerEService drena el índice consumer+eservice. Solo entradas
// client-purpose llevan esa clave.
func (s *Store) ListByConsumerEService(ctx context.Context, key string) ([]model.TokenGenStatesClientPurposeEntry, error) {
	return s.listClientPurpose(ctx, kvstore.IndexConsumerEService, key)
}

func (s *Store) ListByEServiceDescriptor(ctx context.Context, key string) ([]model.TokenGenStatesClientPurposeEntry, error) {
	return s.listClientPurpose(ctx, kvstore.IndexEServiceDescriptor, key)
}

func (s *Store) ListByPurpose(ctx context.Context, purposeID string) ([]model.TokenGenStatesClientPurposeEntry, error) {
	return s.listClientPurpose(ctx, kvstore.IndexPurpose, purposeID)
}

// ListByKid retorna todas las entradas (ambas formas) con ese kid.
func (s *Store) ListByKid(ctx context.Context, kid string) ([]model.TokenGenStatesEntry, error) {
	docs, err := kvstore.QueryAll(ctx, s.kv, kvstore.TableTokenGenStates, kvstore.IndexKid, kid, queryPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]model.TokenGenStatesEntry, 0, len(docs))
	for _, doc := range docs {
		e, err := DecodeEntry(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) listClientPurpose(ctx context.Context, index kvstore.Index, value string) ([]model.TokenGenStatesClientPurposeEntry, error) {
	docs, err := kvstore.QueryAll(ctx, s.kv, kvstore.TableTokenGenStates, index, value, queryPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]model.TokenGenStatesClientPurposeEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := DecodeEntry(doc)
		if err != nil {
			return nil, err
		}
		e, ok := entry.(*model.TokenGenStatesClientPurposeEntry)
		if !ok {
			return nil, fmt.Errorf("entry %s in index %s is not client-purpose", entry.EntryPK(), index)
		}
		out = append(out, *e)
	}
	return out, nil
}

// PatchClientPurposeEntry reescribe la entrada con guard de existencia de la
// clave de índice de purpose (invariante: una entrada client-purpose siempre
// lleva GSIPK_purposeId no vacío). applied=false = guard no cumplido, no-op.
func (s *Store) PatchClientPurposeEntry(ctx context.Context, e model.TokenGenStatesClientPurposeEntry) (applied bool, err error) {
	if e.GSIPKPurposeID == "" {
		return false, fmt.Errorf("client-purpose entry %s without purpose index key", e.PK)
	}
	e.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	err = s.kv.Update(ctx, kvstore.TableTokenGenStates, e.PK, doc, kvstore.Condition{RequireAttr: "GSIPK_purposeId"})
	if errors.Is(err, kvstore.ErrConditionFailed) || errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
