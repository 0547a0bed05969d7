/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"crypto/ecdh"
	"crypto/ecdsa"
)

// RecipientKEM abstracts the ECDH half of hybrid decryption so that
// recipients whose private key lives in an HSM can keep it there: Tink's
// `PaymentMethodTokenRecipientKem` has exactly this shape. ECDH receives
// the sender's ephemeral public key, encoded as an uncompressed NIST P-256
// point (0x04 || X || Y) exactly as it appears in the ciphertext envelope,
// and returns the raw shared secret.
type RecipientKEM interface {
	ECDH(ephemeralPublicKey []byte) ([]byte, error)
}

// privateKeyKEM adapts a bare *ecdsa.PrivateKey, the common case added via
// Builder.AddRecipientPrivateKey or Builder.AddRecipientPrivateKeyRaw, to
// RecipientKEM.
type privateKeyKEM struct {
	key *ecdh.PrivateKey
}

func newPrivateKeyKEM(key *ecdsa.PrivateKey) (*privateKeyKEM, error) {
	ecdhKey, err := key.ECDH()
	if err != nil {
		return nil, wrapError(KindConfiguration, "recipient private key is not a valid P-256 ECDH key", err)
	}

	return &privateKeyKEM{key: ecdhKey}, nil
}

// ECDH implements RecipientKEM.
func (k *privateKeyKEM) ECDH(ephemeralPublicKey []byte) ([]byte, error) {
	pub, err := ecdh.P256().NewPublicKey(ephemeralPublicKey)
	if err != nil {
		return nil, wrapError(KindDecryption, "invalid ephemeral public key", err)
	}

	secret, err := k.key.ECDH(pub)
	if err != nil {
		return nil, wrapError(KindDecryption, "ECDH computation failed", err)
	}

	return secret, nil
}
