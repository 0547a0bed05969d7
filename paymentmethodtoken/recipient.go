/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strconv"
)

// Recipient is the fully-configured unsealing pipeline produced by
// Builder.Build. It is immutable and safe for concurrent use by multiple
// goroutines: every field is read-only after construction, and the
// senderKeyProviders/hybridDecrypters it holds carry no per-call state.
type Recipient struct {
	protocolVersion ProtocolVersion
	senderID        string
	recipientID     string
	providers       []senderKeyProvider
	decrypters      []*hybridDecrypter
	clock           Clock
}

// Builder assembles a Recipient. Configuration methods return the Builder
// itself so calls can be chained; a method that is given invalid input
// records the first error it sees and every later call (including Build)
// becomes a no-op that returns that same error, sparing callers from
// checking an error after every single chained call.
type Builder struct {
	protocolVersion ProtocolVersion
	senderID        string
	recipientID     string
	providers       []senderKeyProvider
	privateKeys     []*ecdsa.PrivateKey
	kems            []RecipientKEM
	clock           Clock
	err             error
}

// NewBuilder returns a Builder defaulted to ECv1 and the standard Google
// Pay sender id.
func NewBuilder() *Builder {
	return &Builder{
		protocolVersion: ECv1,
		senderID:        GoogleSenderID,
	}
}

// ProtocolVersion sets which signing/encryption scheme sealed messages are
// expected to use.
func (b *Builder) ProtocolVersion(version ProtocolVersion) *Builder {
	if b.err != nil {
		return b
	}

	b.protocolVersion = version

	return b
}

// SenderID overrides the default Google Pay sender id.
func (b *Builder) SenderID(senderID string) *Builder {
	if b.err != nil {
		return b
	}

	b.senderID = senderID

	return b
}

// RecipientID sets the merchant/gateway id the sealed message must have
// been addressed to. Required.
func (b *Builder) RecipientID(recipientID string) *Builder {
	if b.err != nil {
		return b
	}

	b.recipientID = recipientID

	return b
}

// AddSenderVerifyingKey registers a literal sender verifying key, base64
// X.509 SubjectPublicKeyInfo encoded.
func (b *Builder) AddSenderVerifyingKey(base64X509PublicKey string) *Builder {
	if b.err != nil {
		return b
	}

	pub, err := x509ECPublicKey(base64X509PublicKey)
	if err != nil {
		b.err = err
		return b
	}

	b.providers = append(b.providers, literalKeyProvider{key: pub})

	return b
}

// AddSenderVerifyingKeyRaw registers a literal sender verifying key already
// parsed into an *ecdsa.PublicKey.
func (b *Builder) AddSenderVerifyingKeyRaw(publicKey *ecdsa.PublicKey) *Builder {
	if b.err != nil {
		return b
	}

	if publicKey == nil {
		b.err = newError(KindConfiguration, "sender verifying key must not be nil")
		return b
	}

	b.providers = append(b.providers, literalKeyProvider{key: publicKey})

	return b
}

// SenderVerifyingKeysJSON registers a source of sender verifying keys that
// are re-parsed, on every Unseal call, from a fixed trusted-signing-keys
// JSON document.
func (b *Builder) SenderVerifyingKeysJSON(trustedSigningKeysJSON string) *Builder {
	if b.err != nil {
		return b
	}

	b.providers = append(b.providers, trustedJSONKeyProvider{json: trustedSigningKeysJSON, clock: b.effectiveClock()})

	return b
}

// FetchSenderVerifyingKeysWith registers a source of sender verifying keys
// that is fetched fresh, through fetcher, on every Unseal call.
// The keymanager package's Manager is the production KeyFetcher.
func (b *Builder) FetchSenderVerifyingKeysWith(fetcher KeyFetcher) *Builder {
	if b.err != nil {
		return b
	}

	if fetcher == nil {
		b.err = newError(KindConfiguration, "key fetcher must not be nil")
		return b
	}

	b.providers = append(b.providers, fetchingKeyProvider{fetcher: fetcher, clock: b.effectiveClock()})

	return b
}

// AddRecipientPrivateKey registers a recipient decryption key, base64
// PKCS8 encoded.
func (b *Builder) AddRecipientPrivateKey(base64PKCS8PrivateKey string) *Builder {
	if b.err != nil {
		return b
	}

	key, err := pkcs8ECPrivateKey(base64PKCS8PrivateKey)
	if err != nil {
		b.err = err
		return b
	}

	b.privateKeys = append(b.privateKeys, key)

	return b
}

// AddRecipientPrivateKeyRaw registers a recipient decryption key already
// parsed into an *ecdsa.PrivateKey.
func (b *Builder) AddRecipientPrivateKeyRaw(privateKey *ecdsa.PrivateKey) *Builder {
	if b.err != nil {
		return b
	}

	if privateKey == nil {
		b.err = newError(KindConfiguration, "recipient private key must not be nil")
		return b
	}

	b.privateKeys = append(b.privateKeys, privateKey)

	return b
}

// AddRecipientKEM registers a recipient decryption key via the RecipientKEM
// abstraction, for keys that live outside the process.
func (b *Builder) AddRecipientKEM(kem RecipientKEM) *Builder {
	if b.err != nil {
		return b
	}

	if kem == nil {
		b.err = newError(KindConfiguration, "recipient KEM must not be nil")
		return b
	}

	b.kems = append(b.kems, kem)

	return b
}

// WithClock overrides the Clock used for expiration checks. Tests use this
// to inject a fixed or stepped clock; production code never needs it.
func (b *Builder) WithClock(clock Clock) *Builder {
	if b.err != nil {
		return b
	}

	b.clock = clock

	return b
}

func (b *Builder) effectiveClock() Clock {
	if b.clock != nil {
		return b.clock
	}

	return systemClock{}
}

// Build validates the accumulated configuration and returns a Recipient,
// or the first configuration error encountered.
func (b *Builder) Build() (*Recipient, error) {
	if b.err != nil {
		return nil, b.err
	}

	if !b.protocolVersion.valid() {
		return nil, newError(KindConfiguration, fmt.Sprintf("unsupported protocol version: %q", b.protocolVersion))
	}

	if b.recipientID == "" {
		return nil, newError(KindConfiguration, "must set recipient id")
	}

	if len(b.providers) == 0 {
		return nil, newError(KindConfiguration, "must set at least one way to get the sender's verifying key")
	}

	clock := b.effectiveClock()
	providers := make([]senderKeyProvider, 0, len(b.providers))

	for _, p := range b.providers {
		switch tp := p.(type) {
		case trustedJSONKeyProvider:
			tp.clock = clock
			p = tp
		case fetchingKeyProvider:
			tp.clock = clock
			p = tp
		}

		providers = append(providers, p)
	}

	decrypters := make([]*hybridDecrypter, 0, len(b.privateKeys)+len(b.kems))

	for _, key := range b.privateKeys {
		kem, err := newPrivateKeyKEM(key)
		if err != nil {
			return nil, err
		}

		decrypters = append(decrypters, newHybridDecrypter(kem))
	}

	for _, kem := range b.kems {
		decrypters = append(decrypters, newHybridDecrypter(kem))
	}

	if len(decrypters) == 0 {
		return nil, newError(KindConfiguration, "must add at least one recipient decrypting key")
	}

	return &Recipient{
		protocolVersion: b.protocolVersion,
		senderID:        b.senderID,
		recipientID:     b.recipientID,
		providers:       providers,
		decrypters:      decrypters,
		clock:           clock,
	}, nil
}

// Unseal verifies and decrypts a sealed message, returning the decrypted
// plaintext payload. It is equivalent to UnsealContext(context.Background(), sealed).
func (r *Recipient) Unseal(sealed string) (string, error) {
	return r.UnsealContext(context.Background(), sealed)
}

// UnsealContext is Unseal with a caller-supplied context, propagated to any
// configured fetching sender-key provider's underlying HTTP call.
func (r *Recipient) UnsealContext(ctx context.Context, sealed string) (string, error) {
	obj, err := decodeStrictObject([]byte(sealed))
	if err != nil {
		return "", wrapError(KindEnvelopeShape, "cannot unseal; invalid JSON message", err)
	}

	switch r.protocolVersion {
	case ECv1:
		return r.unsealV1(ctx, obj)
	case ECv2:
		return r.unsealV2(ctx, obj)
	default:
		return "", newError(KindConfiguration, fmt.Sprintf("unsupported protocol version: %q", r.protocolVersion))
	}
}

// unsealV1 implements ECv1 path: the envelope must contain exactly
// protocolVersion, signature, and signedMessage, and signature must verify
// directly against one of the configured sender verifying keys.
func (r *Recipient) unsealV1(ctx context.Context, obj map[string]json.RawMessage) (string, error) {
	if err := r.validateEnvelopeShape(obj, ECv1, jsonProtocolVersionKey, jsonSignatureKey, jsonSignedMessageKey); err != nil {
		return "", err
	}

	signedMessage, sig, err := r.extractSignedMessageAndSignature(obj)
	if err != nil {
		return "", err
	}

	signedBytes := toLengthValue(r.senderID, r.recipientID, string(ECv1), signedMessage)

	if err := verifyAny(ctx, ECv1, r.providers, [][]byte{sig}, signedBytes); err != nil {
		return "", err
	}

	return r.decryptAndValidate(signedMessage)
}

// unsealV2 implements ECv2 path: the envelope additionally carries
// an intermediateSigningKey, which must itself verify against a configured
// sender verifying key and not be expired, before the outer signature is
// checked against the intermediate key it attests to.
func (r *Recipient) unsealV2(ctx context.Context, obj map[string]json.RawMessage) (string, error) {
	if err := r.validateEnvelopeShape(obj, ECv2, jsonProtocolVersionKey, jsonSignatureKey, jsonSignedMessageKey, jsonIntermediateSigningKey); err != nil {
		return "", err
	}

	intermediateProvider, err := r.verifyIntermediateSigningKey(ctx, obj[jsonIntermediateSigningKey])
	if err != nil {
		return "", err
	}

	signedMessage, sig, err := r.extractSignedMessageAndSignature(obj)
	if err != nil {
		return "", err
	}

	signedBytes := toLengthValue(r.senderID, r.recipientID, string(ECv2), signedMessage)

	if err := verifyAny(ctx, ECv2, []senderKeyProvider{intermediateProvider}, [][]byte{sig}, signedBytes); err != nil {
		return "", err
	}

	return r.decryptAndValidate(signedMessage)
}

func (r *Recipient) extractSignedMessageAndSignature(obj map[string]json.RawMessage) (signedMessage string, signature []byte, err error) {
	signedMessage, err = jsonString(obj[jsonSignedMessageKey])
	if err != nil {
		return "", nil, wrapError(KindEnvelopeShape, "invalid signedMessage field", err)
	}

	sigB64, err := jsonString(obj[jsonSignatureKey])
	if err != nil {
		return "", nil, wrapError(KindEnvelopeShape, "invalid signature field", err)
	}

	signature, err = base64DecodeSignature(sigB64)
	if err != nil {
		return "", nil, err
	}

	return signedMessage, signature, nil
}

// validateEnvelopeShape enforces shape checks: the object must
// contain exactly requiredKeys, and its protocolVersion field must match
// version.
func (r *Recipient) validateEnvelopeShape(obj map[string]json.RawMessage, version ProtocolVersion, requiredKeys ...string) error {
	if len(obj) != len(requiredKeys) {
		return newError(KindEnvelopeShape, fmt.Sprintf("a %s message must contain exactly these fields: %v", version, requiredKeys))
	}

	for _, key := range requiredKeys {
		if _, ok := obj[key]; !ok {
			return newError(KindEnvelopeShape, fmt.Sprintf("missing required field %q", key))
		}
	}

	gotVersion, err := jsonString(obj[jsonProtocolVersionKey])
	if err != nil {
		return wrapError(KindEnvelopeShape, "invalid protocolVersion field", err)
	}

	if ProtocolVersion(gotVersion) != version {
		return newError(KindEnvelopeShape, fmt.Sprintf("invalid protocolVersion: %q, expected %q", gotVersion, version))
	}

	return nil
}

// verifyIntermediateSigningKey implements the ECv2 intermediate-key
// sub-protocol: the intermediateSigningKey object carries a
// signedKey string and one or more signatures over it, each candidate
// verified against the top-level sender verifying key providers. Once one
// signature verifies, signedKey is itself parsed for keyValue and
// keyExpiration; an expired or malformed expiration fails closed. On
// success, a one-shot provider wrapping the now-trusted intermediate key is
// returned for the outer signature check to use.
func (r *Recipient) verifyIntermediateSigningKey(ctx context.Context, raw json.RawMessage) (senderKeyProvider, error) {
	obj, err := decodeStrictObject(raw)
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "invalid intermediateSigningKey", err)
	}

	if len(obj) != 2 {
		return nil, newError(KindEnvelopeShape, "intermediateSigningKey must contain exactly signedKey and signatures")
	}

	signedKey, err := jsonString(obj[jsonSignedKeyKey])
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "invalid intermediateSigningKey.signedKey field", err)
	}

	sigStrs, err := jsonStringArray(obj[jsonSignaturesKey])
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "invalid intermediateSigningKey.signatures field", err)
	}

	signatures := make([][]byte, 0, len(sigStrs))

	for _, s := range sigStrs {
		sig, err := base64DecodeSignature(s)
		if err != nil {
			return nil, err
		}

		signatures = append(signatures, sig)
	}

	signedBytes := toLengthValue(r.senderID, string(r.protocolVersion), signedKey)

	if err := verifyAny(ctx, r.protocolVersion, r.providers, signatures, signedBytes); err != nil {
		return nil, err
	}

	signedKeyObj, err := decodeStrictObject([]byte(signedKey))
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "invalid intermediateSigningKey.signedKey", err)
	}

	keyValueRaw, ok := signedKeyObj[jsonKeyValueKey]
	if !ok {
		return nil, newError(KindEnvelopeShape, "intermediateSigningKey.signedKey missing keyValue")
	}

	expirationRaw, ok := signedKeyObj[jsonKeyExpirationKey]
	if !ok {
		return nil, newError(KindEnvelopeShape, "intermediateSigningKey.signedKey missing keyExpiration")
	}

	keyValue, err := jsonString(keyValueRaw)
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "invalid intermediateSigningKey.signedKey.keyValue", err)
	}

	expirationStr, err := jsonString(expirationRaw)
	if err != nil {
		return nil, wrapError(KindEnvelopeShape, "invalid intermediateSigningKey.signedKey.keyExpiration", err)
	}

	expirationMillis, err := strconv.ParseInt(expirationStr, 10, 64)
	if err != nil {
		// A malformed expiration fails closed as expired, not as a shape
		// error, for the same reason parseTrustedSigningKeysJSON does.
		return nil, wrapError(KindExpiration, "malformed intermediateSigningKey.signedKey.keyExpiration", err)
	}

	if expirationMillis <= r.clock.NowMillis() {
		return nil, newError(KindExpiration, "intermediate signing key has expired")
	}

	pub, err := x509ECPublicKey(keyValue)
	if err != nil {
		return nil, err
	}

	return intermediateKeyProvider{version: r.protocolVersion, key: pub}, nil
}

// intermediateKeyProvider is the one-shot senderKeyProvider produced once
// an ECv2 intermediate signing key has verified and is found unexpired. It
// only ever hands back its key for the protocol version it was verified
// under.
type intermediateKeyProvider struct {
	version ProtocolVersion
	key     *ecdsa.PublicKey
}

func (p intermediateKeyProvider) get(_ context.Context, version ProtocolVersion) ([]*ecdsa.PublicKey, error) {
	if version != p.version {
		return nil, nil
	}

	return []*ecdsa.PublicKey{p.key}, nil
}

// decryptAndValidate runs decryption fold over the configured
// decrypters and then applies post-decryption messageExpiration
// check to the plaintext.
func (r *Recipient) decryptAndValidate(signedMessage string) (string, error) {
	plaintext, err := decryptAny(r.decrypters, []byte(signedMessage), []byte(googleContextInfoECv1))
	if err != nil {
		return "", err
	}

	if err := r.checkMessageExpiration(plaintext); err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// checkMessageExpiration enforces an optional messageExpiration field in
// the decrypted payload. A plaintext that is not a JSON object, or
// that carries no messageExpiration field, is left unvalidated, since
// expiration is a property of the payload's content, not of the envelope.
func (r *Recipient) checkMessageExpiration(plaintext []byte) error {
	obj, err := decodeStrictObject(plaintext)
	if err != nil {
		return nil
	}

	expirationRaw, ok := obj[jsonMessageExpirationKey]
	if !ok {
		return nil
	}

	expirationStr, err := jsonString(expirationRaw)
	if err != nil {
		return wrapError(KindExpiration, "malformed messageExpiration", err)
	}

	expirationMillis, err := strconv.ParseInt(expirationStr, 10, 64)
	if err != nil {
		return wrapError(KindExpiration, "malformed messageExpiration", err)
	}

	if expirationMillis <= r.clock.NowMillis() {
		return newError(KindExpiration, "decrypted payload has expired")
	}

	return nil
}
