// Package signer abstrae el servicio de firma. El firmador remoto (KMS o
// similar) es un colaborador externo detrás de esta interfaz: recibe el
// signing input del JWT y devuelve la firma cruda. Una firma vacía se trata
// como error fatal de firma en la capa de arriba.
package signer

import "context"

type Signer interface {
	// KID del material de firma activo (va al header del token).
	KID() string

	// Algorithm es el alg JWS ("EdDSA").
	Algorithm() string

	// Sign firma el signing input (header.payload en base64url).
	Sign(ctx context.Context, signingInput []byte) ([]byte, error)
}
