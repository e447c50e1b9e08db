package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEnvelope covers every reason an envelope cannot be trusted.
	// Callers must not distinguish the wrapped reasons in responses.
	ErrInvalidEnvelope = errors.New("auth: invalid envelope")

	ErrEnvelopeMalformed = fmt.Errorf("%w: malformed", ErrInvalidEnvelope)
	ErrEnvelopeSignature = fmt.Errorf("%w: signature", ErrInvalidEnvelope)
	ErrEnvelopeExpired   = fmt.Errorf("%w: expired", ErrInvalidEnvelope)
	ErrEnvelopeRevoked   = fmt.Errorf("%w: revoked", ErrInvalidEnvelope)

	// ErrSessionExpired means the delegated access token could not be renewed.
	ErrSessionExpired = errors.New("auth: session expired")

	// ErrUnauthenticated means no credential was presented.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
)
