/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/base64"
)

// x509ECPublicKey decodes a base64 (standard, padded) X.509
// SubjectPublicKeyInfo and returns the EC public key it wraps. No
// third-party library available parses SPKI any more directly than the
// standard library's own ASN.1/X.509 decoder, so this stays on crypto/x509,
// see DESIGN.md.
func x509ECPublicKey(base64Value string) (*ecdsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(base64Value)
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "failed to base64-decode public key", err)
	}

	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "failed to parse X.509 SubjectPublicKeyInfo", err)
	}

	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, newError(KindEnvelopeShape, "public key is not an EC public key")
	}

	return ecPub, nil
}

// pkcs8ECPrivateKey decodes a base64 (standard, padded) PKCS8 private key
// and returns the EC private key it wraps.
func pkcs8ECPrivateKey(base64Value string) (*ecdsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(base64Value)
	if err != nil {
		return nil, wrapError(KindConfiguration, "failed to base64-decode private key", err)
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, wrapError(KindConfiguration, "failed to parse PKCS8 private key", err)
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, newError(KindConfiguration, "private key is not an EC private key")
	}

	return ecKey, nil
}

func base64DecodeSignature(value string) ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "failed to base64-decode signature", err)
	}

	return sig, nil
}
