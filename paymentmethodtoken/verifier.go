/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"context"
	"crypto/ecdsa"

	tinksubtle "github.com/google/tink/go/signature/subtle"
)

// newECDSAVerifier builds the low-level verifier for a single EC public
// key: Tink's own subtle ECDSA verifier, constructed straight from a
// public key rather than from a keyset handle, so nothing here touches
// Tink's registry/keyset machinery.
func newECDSAVerifier(publicKey *ecdsa.PublicKey) (*tinksubtle.ECDSAVerifier, error) {
	v, err := tinksubtle.NewECDSAVerifierFromPublicKey(ecdsaHashAlgo, ecdsaSignatureEncoding, publicKey)
	if err != nil {
		return nil, wrapError(KindSignature, "failed to construct ECDSA verifier", err)
	}

	return v, nil
}

// verifyAny tries every (publicKey, signature)
// pair drawn from providers × candidate signatures, for the given protocol
// version, and succeed as soon as any one pair verifies. Verification
// failures from individual trials carry no information into the final
// result beyond "this pair did not verify": the caller only ever learns
// whether at least one pair succeeded.
func verifyAny(
	ctx context.Context,
	version ProtocolVersion,
	providers []senderKeyProvider,
	signatures [][]byte,
	signedBytes []byte,
) error {
	for _, provider := range providers {
		keys, err := provider.get(ctx, version)
		if err != nil {
			// Unlike a failed (key, signature) verification trial below,
			// a provider that cannot even produce candidate keys (a
			// fetch failure, a malformed trusted-keys document, ...) is
			// not swallowed: it propagates immediately as its own
			// KindKeyFetch error instead of being treated as just
			// another non-matching trial.
			return err
		}

		for _, key := range keys {
			verifier, err := newECDSAVerifier(key)
			if err != nil {
				continue
			}

			for _, sig := range signatures {
				if verifier.Verify(sig, signedBytes) == nil {
					return nil
				}
			}
		}
	}

	return newError(KindSignature, "cannot verify signature")
}
