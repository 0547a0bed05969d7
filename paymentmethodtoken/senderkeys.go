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

// KeyFetcher hands back the current trusted-signing-keys JSON document,
// fetching and caching it however the implementation sees fit. The
// `keymanager` package ships a concrete implementation; callers who
// already have the keys in hand should prefer SenderVerifyingKeysJSON or
// AddSenderVerifyingKey instead.
type KeyFetcher interface {
	GetTrustedSigningKeysJSON(ctx context.Context) (string, error)
}

// senderKeyProvider is the polymorphic capability underlying all
// four `Builder.*SenderVerifyingKey*` configuration methods.
type senderKeyProvider interface {
	get(ctx context.Context, version ProtocolVersion) ([]*ecdsa.PublicKey, error)
}

// literalKeyProvider carries a single fixed key: it never errors and
// always returns that key regardless of protocol version.
type literalKeyProvider struct {
	key *ecdsa.PublicKey
}

func (p literalKeyProvider) get(context.Context, ProtocolVersion) ([]*ecdsa.PublicKey, error) {
	return []*ecdsa.PublicKey{p.key}, nil
}

// trustedJSONKeyProvider re-parses a fixed trusted-keys JSON string on
// every call.
type trustedJSONKeyProvider struct {
	json  string
	clock Clock
}

func (p trustedJSONKeyProvider) get(_ context.Context, version ProtocolVersion) ([]*ecdsa.PublicKey, error) {
	return parseTrustedSigningKeysJSON(version, p.json, p.clock)
}

// fetchingKeyProvider delegates fetching the trusted-keys JSON string to a
// KeyFetcher on every call.
type fetchingKeyProvider struct {
	fetcher KeyFetcher
	clock   Clock
}

func (p fetchingKeyProvider) get(ctx context.Context, version ProtocolVersion) ([]*ecdsa.PublicKey, error) {
	doc, err := p.fetcher.GetTrustedSigningKeysJSON(ctx)
	if err != nil {
		return nil, wrapError(KindKeyFetch, "failed to fetch trusted signing keys", err)
	}

	return parseTrustedSigningKeysJSON(version, doc, p.clock)
}

// trustedKeyEntry mirrors one element of the trusted-keys JSON document's
// jsonTrustedKeysKey array.
type trustedKeyEntry struct {
	KeyValue        string `json:"keyValue"`
	ProtocolVersion string `json:"protocolVersion"`
	KeyExpiration   string `json:"keyExpiration"`
}

// parseTrustedSigningKeysJSON extracts the sender verifying keys matching
// version from the Google keys-JSON format, skipping expired entries and
// honoring the ECv1-only "keyExpiration is optional" carve-out.
func parseTrustedSigningKeysJSON(version ProtocolVersion, doc string, clock Clock) ([]*ecdsa.PublicKey, error) {
	obj, err := decodeStrictObject([]byte(doc))
	if err != nil {
		return nil, wrapError(KindKeyFetch, "failed to extract trusted signing public keys", err)
	}

	var entries []trustedKeyEntry

	if raw, ok := obj[jsonTrustedKeysKey]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, wrapError(KindKeyFetch, "failed to extract trusted signing public keys", err)
		}
	}

	var keys []*ecdsa.PublicKey

	for _, entry := range entries {
		if ProtocolVersion(entry.ProtocolVersion) != version {
			continue
		}

		if entry.KeyExpiration != "" {
			expMillis, err := strconv.ParseInt(entry.KeyExpiration, 10, 64)
			if err != nil {
				// A malformed expiration is treated as expired, not as
				// missing.
				continue
			}

			if expMillis <= clock.NowMillis() {
				continue // expired key, skip silently
			}
		} else if version != ECv1 {
			// keyExpiration is required for every version except ECv1,
			// where HTTP cache lifetime is authoritative.
			continue
		}

		pub, err := x509ECPublicKey(entry.KeyValue)
		if err != nil {
			continue
		}

		keys = append(keys, pub)
	}

	if len(keys) == 0 {
		return nil, newError(KindKeyFetch, fmt.Sprintf("no trusted keys available for protocol version %s", version))
	}

	return keys, nil
}
