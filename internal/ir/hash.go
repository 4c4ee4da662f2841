package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DomainRef separates ref version hashes from any other use of SHA-256.
const DomainRef = "refmesh/ref/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalRef serializes the content of r in a fixed field order:
// url, origin, title, comment, tags, sources, alternateUrls, published,
// plugins (keys sorted). Created and Modified are excluded, so two refs
// differing only in bookkeeping timestamps serialize identically.
func CanonicalRef(r Ref) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	field := func(name string, first bool) {
		if !first {
			buf.WriteByte(',')
		}
		writeCanonicalString(&buf, name)
		buf.WriteByte(':')
	}
	list := func(values []string) {
		buf.WriteByte('[')
		for i, v := range values {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(&buf, v)
		}
		buf.WriteByte(']')
	}

	field("url", true)
	writeCanonicalString(&buf, r.URL)
	field("origin", false)
	writeCanonicalString(&buf, r.Origin)
	field("title", false)
	writeCanonicalString(&buf, r.Title)
	field("comment", false)
	writeCanonicalString(&buf, r.Comment)
	field("tags", false)
	list(r.Tags)
	field("sources", false)
	list(r.Sources)
	field("alternateUrls", false)
	list(r.AlternateURLs)
	field("published", false)
	published := ""
	if !r.Published.IsZero() {
		published = r.Published.UTC().Format(time.RFC3339Nano)
	}
	writeCanonicalString(&buf, published)
	field("plugins", false)
	plugins := r.Plugins
	if plugins == nil {
		plugins = Object{}
	}
	if err := writeCanonical(&buf, plugins); err != nil {
		return nil, fmt.Errorf("canonical ref %s: plugins: %w", r.Key(), err)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// VersionToken returns the content-addressed version of r.
// Equal content always yields an equal token.
func VersionToken(r Ref) (string, error) {
	data, err := CanonicalRef(r)
	if err != nil {
		return "", fmt.Errorf("VersionToken: %w", err)
	}
	return hashWithDomain(DomainRef, data), nil
}

// MustVersionToken is like VersionToken but panics on error.
// Use only in tests or when plugin data is known to be valid.
func MustVersionToken(r Ref) string {
	v, err := VersionToken(r)
	if err != nil {
		panic(err)
	}
	return v
}
