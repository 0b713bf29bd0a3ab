// Package triage turns a batch of findings into an ordered snapshot and a
// canonical fingerprint of its actionable set.
package triage

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/realyn/dtguard/internal/model"
)

const (
	fingerprintLength = 16
	keyDelimiter      = "|"
	setDelimiter      = "\n"
	// Hashed instead of returned raw so an empty set still produces a
	// fixed-length fingerprint distinct from "no fingerprint recorded yet".
	emptySetSentinel = "empty:0"
)

// Fingerprint derives a canonical, order-independent hash of a finding set.
// Two permutations of the same findings always produce the same value, and
// the value is stable across process restarts.
func Fingerprint(findings []model.Finding) string {
	if len(findings) == 0 {
		return digest(emptySetSentinel)
	}

	keys := make([]string, len(findings))
	for i, f := range findings {
		keys[i] = canonicalKey(f)
	}
	sort.Strings(keys)
	return digest(strings.Join(keys, setDelimiter))
}

// canonicalKey builds the per-finding identity from immutable fields only.
// Volatile fields (ID, title text, timestamps) are excluded so cosmetic
// changes do not defeat deduplication.
func canonicalKey(f model.Finding) string {
	codes := append([]string(nil), f.ReasonCodes...)
	sort.Strings(codes)
	return strings.Join([]string{
		f.SourceType,
		f.SourceRef,
		string(f.Severity),
		strings.Join(codes, ","),
	}, keyDelimiter)
}

func digest(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}
