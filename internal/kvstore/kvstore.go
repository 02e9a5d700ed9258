// Package kvstore define el cliente genérico del key-value store usado por
// el Platform State Store y el Token Generation Index. Dos tablas, acceso
// por PK fuertemente consistente, índices secundarios paginados y escrituras
// condicionales (la base del modelo de concurrencia optimista).
package kvstore

import "context"

type Table string

const (
	TablePlatformStates Table = "platform-states"
	TableTokenGenStates Table = "token-generation-states"
)

// Index identifica un índice secundario por el atributo JSON que indexa.
type Index string

const (
	IndexConsumerEService   Index = "GSIPK_consumerId_eserviceId"
	IndexEServiceDescriptor Index = "GSIPK_eserviceId_descriptorId"
	IndexPurpose            Index = "GSIPK_purposeId"
	IndexKid                Index = "GSIPK_kid"
)

// Condition guarda las precondiciones de un Update. Cero valores = solo
// "la clave debe existir".
type Condition struct {
	// VersionBelow: si > 0, el documento almacenado debe tener un campo
	// "version" estrictamente menor. Guard contra redelivery y out-of-order.
	VersionBelow int64

	// RequireAttr: si != "", el documento almacenado debe tener ese atributo
	// presente y no vacío.
	RequireAttr string
}

// Page es una página de resultados de Query. Cursor vacío = no hay más.
type Page struct {
	Items  [][]byte
	Cursor string
}

// Client es el contrato del store. Los docs son JSON opacos para esta capa;
// el tipado vive en platformstate / tokengenstate.
type Client interface {
	// Get retorna el documento o ErrNotFound.
	Get(ctx context.Context, table Table, pk string) ([]byte, error)

	// Put crea el documento. ErrConflict si la PK ya existe (first-write-wins).
	Put(ctx context.Context, table Table, pk string, doc []byte) error

	// Update reemplaza el documento si existe y la condición se cumple.
	// ErrNotFound si la PK no existe, ErrConditionFailed si la condición falla.
	Update(ctx context.Context, table Table, pk string, doc []byte, cond Condition) error

	// Delete borra la PK. No es error si no existe.
	Delete(ctx context.Context, table Table, pk string) error

	// Query retorna una página de documentos cuyo atributo índice vale value.
	Query(ctx context.Context, table Table, index Index, value, cursor string, limit int) (Page, error)
}

// QueryAll drena la paginación completa. Los fan-outs DEBEN usar esto: un
// scan parcial deja entradas dependientes desactualizadas.
func QueryAll(ctx context.Context, c Client, table Table, index Index, value string, limit int) ([][]byte, error) {
	var out [][]byte
	cursor := ""
	for {
		page, err := c.Query(ctx, table, index, value, cursor, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Cursor == "" {
			return out, nil
		}
		cursor = page.Cursor
	}
}
