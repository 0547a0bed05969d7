/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import "fmt"

// Kind distinguishes broad categories of failure for callers that need to
// tell configuration mistakes apart from genuine protocol failures (tests,
// logs). Unseal never reveals more than this about why it failed.
type Kind int

const (
	// KindConfiguration covers builder-time mistakes: missing recipient
	// id, no sender-key providers, no decrypters, an unsupported version.
	KindConfiguration Kind = iota
	// KindEnvelopeShape covers malformed envelope JSON: wrong key set,
	// wrong protocolVersion field, unparsable JSON.
	KindEnvelopeShape
	// KindSignature covers "no (provider, key, signature) triple
	// verified", including a failed intermediate-key signature.
	KindSignature
	// KindDecryption covers "no configured decrypter produced plaintext".
	KindDecryption
	// KindExpiration covers an expired intermediate signing key or an
	// expired decrypted payload.
	KindExpiration
	// KindKeyFetch covers a sender-key provider's underlying fetch
	// failing (network, cache, malformed trusted-keys JSON).
	KindKeyFetch
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindEnvelopeShape:
		return "envelope shape"
	case KindSignature:
		return "signature"
	case KindDecryption:
		return "decryption"
	case KindExpiration:
		return "expiration"
	case KindKeyFetch:
		return "key fetch"
	default:
		return "unknown"
	}
}

// Error is the single error type Unseal and the builder ever return. It
// never exposes more about a cryptographic failure than its Kind and a
// short, generic message: which specific (provider, key, signature) or
// decrypter failed is deliberately not recoverable from it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("paymentmethodtoken: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("paymentmethodtoken: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, &paymentmethodtoken.Error{Kind: paymentmethodtoken.KindExpiration}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Kind == t.Kind
}
