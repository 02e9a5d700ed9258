// Package pg implementa kvstore.Client sobre Postgres (pgx). Cada tabla
// guarda el documento JSON completo en una columna jsonb; las claves de
// índice secundario se proyectan a columnas propias al escribir, así los
// Query son index scans normales con paginación keyset por PK.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagopa/interop-token-platform/internal/kvstore"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func tableName(t kvstore.Table) string {
	if t == kvstore.TablePlatformStates {
		return "platform_states"
	}
	return "token_generation_states"
}

func indexColumn(i kvstore.Index) string {
	switch i {
	case kvstore.IndexConsumerEService:
		return "gsi_consumer_eservice"
	case kvstore.IndexEServiceDescriptor:
		return "gsi_eservice_descriptor"
	case kvstore.IndexPurpose:
		return "gsi_purpose_id"
	default:
		return "gsi_kid"
	}
}

func (s *Store) Get(ctx context.Context, table kvstore.Table, pk string) ([]byte, error) {
	q := fmt.Sprintf(`SELECT doc FROM %s WHERE pk = $1`, tableName(table))
	var doc []byte
	if err := s.pool.QueryRow(ctx, q, pk).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *Store) Put(ctx context.Context, table kvstore.Table, pk string, doc []byte) error {
	cols := projectIndexes(doc)
	q := fmt.Sprintf(`
		INSERT INTO %s (pk, doc, version, gsi_consumer_eservice, gsi_eservice_descriptor, gsi_purpose_id, gsi_kid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pk) DO NOTHING`, tableName(table))
	tag, err := s.pool.Exec(ctx, q, pk, doc, cols.version,
		nullable(cols.consumerEService), nullable(cols.eserviceDescriptor), nullable(cols.purposeID), nullable(cols.kid))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kvstore.ErrConflict
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table kvstore.Table, pk string, doc []byte, cond kvstore.Condition) error {
	cols := projectIndexes(doc)

	q := fmt.Sprintf(`
		UPDATE %s
		SET doc = $2, version = $3,
		    gsi_consumer_eservice = $4, gsi_eservice_descriptor = $5,
		    gsi_purpose_id = $6, gsi_kid = $7
		WHERE pk = $1`, tableName(table))
	args := []any{pk, doc, cols.version,
		nullable(cols.consumerEService), nullable(cols.eserviceDescriptor), nullable(cols.purposeID), nullable(cols.kid)}

	if cond.VersionBelow > 0 {
		q += fmt.Sprintf(` AND version < $%d`, len(args)+1)
		args = append(args, cond.VersionBelow)
	}
	if cond.RequireAttr != "" {
		q += fmt.Sprintf(` AND COALESCE(doc->>$%d, '') <> ''`, len(args)+1)
		args = append(args, cond.RequireAttr)
	}

	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// 0 filas: distinguir "no existe" de "condición no cumplida"
	var exists bool
	check := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE pk = $1)`, tableName(table))
	if err := s.pool.QueryRow(ctx, check, pk).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return kvstore.ErrNotFound
	}
	return kvstore.ErrConditionFailed
}

func (s *Store) Delete(ctx context.Context, table kvstore.Table, pk string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE pk = $1`, tableName(table))
	_, err := s.pool.Exec(ctx, q, pk)
	return err
}

func (s *Store) Query(ctx context.Context, table kvstore.Table, index kvstore.Index, value, cursor string, limit int) (kvstore.Page, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`
		SELECT pk, doc FROM %s
		WHERE %s = $1 AND pk > $2
		ORDER BY pk
		LIMIT $3`, tableName(table), indexColumn(index))

	rows, err := s.pool.Query(ctx, q, value, cursor, limit)
	if err != nil {
		return kvstore.Page{}, err
	}
	defer rows.Close()

	var page kvstore.Page
	var lastPK string
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&lastPK, &doc); err != nil {
			return kvstore.Page{}, err
		}
		page.Items = append(page.Items, doc)
	}
	if err := rows.Err(); err != nil {
		return kvstore.Page{}, err
	}
	if len(page.Items) == limit {
		page.Cursor = lastPK
	}
	return page, nil
}

// indexCols son los valores proyectados desde el documento al escribir.
type indexCols struct {
	version            int64
	consumerEService   string
	eserviceDescriptor string
	purposeID          string
	kid                string
}

func projectIndexes(doc []byte) indexCols {
	var m struct {
		Version            int64  `json:"version"`
		ConsumerEService   string `json:"GSIPK_consumerId_eserviceId"`
		EServiceDescriptor string `json:"GSIPK_eserviceId_descriptorId"`
		PurposeID          string `json:"GSIPK_purposeId"`
		Kid                string `json:"GSIPK_kid"`
	}
	// doc ya fue serializado por la capa tipada; un doc corrupto deja los
	// índices vacíos y el problema aflora en la capa de arriba.
	_ = json.Unmarshal(doc, &m)
	return indexCols{
		version:            m.Version,
		consumerEService:   m.ConsumerEService,
		eserviceDescriptor: m.EServiceDescriptor,
		purposeID:          m.PurposeID,
		kid:                m.Kid,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
