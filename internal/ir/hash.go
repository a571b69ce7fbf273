package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// summary format to change without colliding with older fingerprints.
const (
	DomainGraph = "colgraph/graph/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes a canonical summary value under the graph domain.
// Two structurally identical graphs produce the same fingerprint.
func Fingerprint(summary any) (string, error) {
	canonical, err := MarshalCanonical(summary)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}
