/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sizes of the ECIES construction: a NIST P-256 uncompressed
// point, a 256-bit AES key, and a 256-bit HMAC-SHA256 key and tag.
const (
	ephemeralPublicKeySize = 65
	aesKeySize             = 32
	hmacKeySize            = 32
	dekMaterialSize        = aesKeySize + hmacKeySize
)

// demIV is the AES-CTR nonce used by the data-encapsulation step. It is
// fixed rather than random because the AES key it pairs with is itself
// derived fresh, via HKDF, from a one-time ephemeral ECDH exchange for
// every message, so a key is never reused across two ciphertexts and a
// constant counter start introduces no keystream reuse. This mirrors how
// Tink's EciesAeadHkdfHybridEncrypt composes its AEAD DEM over a
// single-use derived key.
var demIV = make([]byte, aes.BlockSize)

// cipherEnvelope is signedMessage's JSON structure once parsed: it is
// itself "semantically a further JSON object", carrying the three
// base64 components of the hybrid ciphertext. encryptedMessage can contain
// arbitrary binary, which is why it, along with ephemeralPublicKey and tag,
// is base64 rather than raw bytes inside signedMessage's own JSON string.
type cipherEnvelope struct {
	EncryptedMessage   string `json:"encryptedMessage"`
	EphemeralPublicKey string `json:"ephemeralPublicKey"`
	Tag                string `json:"tag"`
}

// hybridDecrypter is one ECIES hybrid-decryption primitive bound to a
// single recipient key (or KEM). A Recipient tries its configured
// decrypters in order.
type hybridDecrypter struct {
	kem RecipientKEM
}

func newHybridDecrypter(kem RecipientKEM) *hybridDecrypter {
	return &hybridDecrypter{kem: kem}
}

// decrypt runs the five steps of the ECIES construction:
//  1. parse the cipherEnvelope (ephemeral public key | AES-CTR ciphertext | HMAC tag)
//  2. ECDH via the configured KEM
//  3. HKDF-SHA256 to derive the AES and MAC keys, using contextInfo as "info"
//  4. constant-time HMAC tag verification
//  5. AES-CTR decryption
func (d *hybridDecrypter) decrypt(ciphertext, contextInfo []byte) ([]byte, error) {
	var env cipherEnvelope
	if err := json.Unmarshal(ciphertext, &env); err != nil {
		return nil, wrapError(KindDecryption, "malformed ciphertext envelope", err)
	}

	ephemeralPub, err := base64.StdEncoding.DecodeString(env.EphemeralPublicKey)
	if err != nil {
		return nil, wrapError(KindDecryption, "malformed ephemeralPublicKey", err)
	}

	encrypted, err := base64.StdEncoding.DecodeString(env.EncryptedMessage)
	if err != nil {
		return nil, wrapError(KindDecryption, "malformed encryptedMessage", err)
	}

	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, wrapError(KindDecryption, "malformed tag", err)
	}

	if len(ephemeralPub) != ephemeralPublicKeySize {
		return nil, newError(KindDecryption, "invalid ephemeral public key length")
	}

	sharedSecret, err := d.kem.ECDH(ephemeralPub)
	if err != nil {
		return nil, err
	}

	aesKey, hmacKey, err := deriveDEMKeys(ephemeralPub, sharedSecret, contextInfo)
	if err != nil {
		return nil, err
	}

	if err := verifyTag(hmacKey, encrypted, tag); err != nil {
		return nil, err
	}

	return aesCTRDecrypt(aesKey, encrypted)
}

// deriveDEMKeys runs HKDF-SHA256 over (ephemeralPublicKey || sharedSecret)
// with contextInfo as "info" and no salt, producing the AES-256 key and
// the HMAC-SHA256 key the DEM needs.
func deriveDEMKeys(ephemeralPub, sharedSecret, contextInfo []byte) (aesKey, hmacKeyOut []byte, err error) {
	ikm := make([]byte, 0, len(ephemeralPub)+len(sharedSecret))
	ikm = append(ikm, ephemeralPub...)
	ikm = append(ikm, sharedSecret...)

	kdf := hkdf.New(sha256.New, ikm, nil, contextInfo)

	material := make([]byte, dekMaterialSize)
	if _, err := io.ReadFull(kdf, material); err != nil {
		return nil, nil, wrapError(KindDecryption, "HKDF key derivation failed", err)
	}

	return material[:aesKeySize], material[aesKeySize:], nil
}

// verifyTag checks the HMAC-SHA256 tag over (demIV || encrypted) in
// constant time.
func verifyTag(hmacKey, encrypted, tag []byte) error {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(demIV)
	mac.Write(encrypted)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, tag) {
		return newError(KindDecryption, "cannot decrypt")
	}

	return nil
}

func aesCTRDecrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wrapError(KindDecryption, "failed to construct AES cipher", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, demIV).XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}

// decryptAny implements "multiple decrypters are tried in order;
// the first that returns plaintext wins" fold.
func decryptAny(decrypters []*hybridDecrypter, ciphertext, contextInfo []byte) ([]byte, error) {
	for _, d := range decrypters {
		if pt, err := d.decrypt(ciphertext, contextInfo); err == nil {
			return pt, nil
		}
	}

	return nil, newError(KindDecryption, "cannot decrypt")
}
