/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// tamperJSONStringField flips one byte of the base64/text value of the
// named top-level string field in envelopeJSON, returning the re-marshaled
// envelope. Used to exercise signature/shape failures without hand-writing
// broken JSON for every case.
func tamperJSONStringField(t *testing.T, envelopeJSON, field string) string {
	t.Helper()

	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(envelopeJSON), &obj))

	var value string
	require.NoError(t, json.Unmarshal(obj[field], &value))

	tampered := []byte(value)
	tampered[len(tampered)/2] ^= 0xFF
	obj[field], _ = json.Marshal(string(tampered))

	out, err := json.Marshal(obj)
	require.NoError(t, err)

	return string(out)
}

// The functions below play the sender's role so the recipient-side tests
// in this package can exercise real round trips. None of this is part of
// the public API, since only a recipient's unseal half is ever exposed.

func generateECDSAKeyPair(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return key
}

func base64SPKI(t *testing.T, pub *ecdsa.PublicKey) string {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(der)
}

func base64PKCS8(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(der)
}

// sealHybrid is the sender half of hybrid decryption: generate an ephemeral key, ECDH
// with the recipient's public key, HKDF-derive the DEM keys, AES-CTR
// encrypt, and HMAC-tag, returning the JSON text of a cipherEnvelope ready
// to be used as an envelope's signedMessage.
func sealHybrid(t *testing.T, recipientPub *ecdsa.PublicKey, plaintext, contextInfo []byte) string {
	t.Helper()

	ephemeralPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	ephemeralPubBytes := ephemeralPriv.PublicKey().Bytes()

	recipientECDHPub, err := recipientPub.ECDH()
	require.NoError(t, err)

	sharedSecret, err := ephemeralPriv.ECDH(recipientECDHPub)
	require.NoError(t, err)

	aesKey, hmacKey, err := deriveDEMKeys(ephemeralPubBytes, sharedSecret, contextInfo)
	require.NoError(t, err)

	block, err := aes.NewCipher(aesKey)
	require.NoError(t, err)

	encrypted := make([]byte, len(plaintext))
	cipher.NewCTR(block, demIV).XORKeyStream(encrypted, plaintext)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(demIV)
	mac.Write(encrypted)
	tag := mac.Sum(nil)

	env := cipherEnvelope{
		EncryptedMessage:   base64.StdEncoding.EncodeToString(encrypted),
		EphemeralPublicKey: base64.StdEncoding.EncodeToString(ephemeralPubBytes),
		Tag:                base64.StdEncoding.EncodeToString(tag),
	}

	out, err := json.Marshal(env)
	require.NoError(t, err)

	return string(out)
}

// signLengthValue signs the given LengthValue-encoded bytes with key and
// returns the base64 DER signature.
func signLengthValue(t *testing.T, key *ecdsa.PrivateKey, signedBytes []byte) string {
	t.Helper()

	digest := sha256.Sum256(signedBytes)

	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(sig)
}

// envelopeV1 builds a complete ECv1 envelope JSON string.
func envelopeV1(t *testing.T, senderID, recipientID string, signingKey *ecdsa.PrivateKey, recipientPub *ecdsa.PublicKey, plaintext string) string {
	t.Helper()

	signedMessage := sealHybrid(t, recipientPub, []byte(plaintext), []byte(googleContextInfoECv1))
	signedBytes := toLengthValue(senderID, recipientID, string(ECv1), signedMessage)
	sig := signLengthValue(t, signingKey, signedBytes)

	out, err := json.Marshal(map[string]string{
		jsonProtocolVersionKey: string(ECv1),
		jsonSignatureKey:       sig,
		jsonSignedMessageKey:   signedMessage,
	})
	require.NoError(t, err)

	return string(out)
}

// envelopeV2 builds a complete ECv2 envelope JSON string, signing the
// inner message with intermediateKey and attesting to intermediateKey with
// every key in attestingKeys, in order, via intermediateSigningKey.signatures.
// A caller that wants "only the Nth signature verifies" passes keys the
// recipient does not trust ahead of one it does.
func envelopeV2(
	t *testing.T,
	senderID, recipientID string,
	intermediateKey *ecdsa.PrivateKey,
	keyExpirationMillis int64,
	attestingKeys []*ecdsa.PrivateKey,
	recipientPub *ecdsa.PublicKey,
	plaintext string,
) string {
	t.Helper()

	signedMessage := sealHybrid(t, recipientPub, []byte(plaintext), []byte(googleContextInfoECv1))
	signedBytes := toLengthValue(senderID, recipientID, string(ECv2), signedMessage)
	sig := signLengthValue(t, intermediateKey, signedBytes)

	signedKeyJSON, err := json.Marshal(map[string]string{
		jsonKeyValueKey:      base64SPKI(t, &intermediateKey.PublicKey),
		jsonKeyExpirationKey: strconv.FormatInt(keyExpirationMillis, 10),
	})
	require.NoError(t, err)

	innerSignedBytes := toLengthValue(senderID, string(ECv2), string(signedKeyJSON))

	signatures := make([]string, 0, len(attestingKeys))
	for _, key := range attestingKeys {
		signatures = append(signatures, signLengthValue(t, key, innerSignedBytes))
	}

	out, err := json.Marshal(map[string]interface{}{
		jsonProtocolVersionKey: string(ECv2),
		jsonSignatureKey:       sig,
		jsonSignedMessageKey:   signedMessage,
		jsonIntermediateSigningKey: map[string]interface{}{
			jsonSignedKeyKey:  string(signedKeyJSON),
			jsonSignaturesKey: signatures,
		},
	})
	require.NoError(t, err)

	return string(out)
}

