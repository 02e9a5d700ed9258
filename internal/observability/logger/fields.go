package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// CorrelationID crea un campo para el correlation id (viaja hasta auditoría).
func CorrelationID(v string) zap.Field {
	return zap.String("correlation_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// ClientID crea un campo para el ID del cliente.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// OrganizationID crea un campo para la organización (tenant consumidor).
func OrganizationID(v string) zap.Field {
	return zap.String("organization_id", v)
}

// EntryPK crea un campo para la PK de una entrada del key-value store.
func EntryPK(v string) zap.Field {
	return zap.String("entry_pk", v)
}

// StreamID crea un campo para el stream del evento.
func StreamID(v string) zap.Field {
	return zap.String("stream_id", v)
}

// EventType crea un campo para el tipo de evento de dominio.
func EventType(v string) zap.Field {
	return zap.String("event_type", v)
}

// EventVersion crea un campo para la versión del stream.
func EventVersion(v int64) zap.Field {
	return zap.Int64("event_version", v)
}

// PurposeID crea un campo para el purpose.
func PurposeID(v string) zap.Field {
	return zap.String("purpose_id", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}
