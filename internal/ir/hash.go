package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// The version suffix leaves room for a future algorithm change.
const (
	DomainSnapshot = "starcore/snapshot/v1"
	DomainEnvelope = "starcore/envelope/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotDigest hashes a container snapshot for convergence checks.
// Two containers of the same type whose snapshots share a digest are
// observably equal.
func SnapshotDigest(containerType string, entries IRArray) (string, error) {
	canonical, err := MarshalCanonical(IRArray{IRString(containerType), entries})
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// EnvelopeDigest hashes an encoded action for trace comparison.
func EnvelopeDigest(kind string, payload IRArray) (string, error) {
	canonical, err := MarshalCanonical(IRArray{IRString(kind), payload})
	if err != nil {
		return "", fmt.Errorf("EnvelopeDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEnvelope, canonical), nil
}
