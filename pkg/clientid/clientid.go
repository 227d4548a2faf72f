// Package clientid derives a stable, anonymous identity for the caller of a
// request. Raw device ids and IP addresses never leave this package.
package clientid

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DeviceHeader carries the app installation id sent by the mobile client.
const DeviceHeader = "X-Device-ID"

const maxDeviceIDLen = 128

// RealClientIP returns the client IP from r.RemoteAddr. Proxy headers are
// not trusted.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// Resolver hashes raw client identifiers with a keyed BLAKE2b.
type Resolver struct {
	key [32]byte
}

// NewResolver derives the hashing key from salt. An empty salt is allowed
// but makes identities guessable from IPs.
func NewResolver(salt string) *Resolver {
	return &Resolver{key: blake2b.Sum256([]byte(salt))}
}

// Identity prefers the device header and falls back to the client IP.
func (res *Resolver) Identity(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get(DeviceHeader))
	if raw == "" || len(raw) > maxDeviceIDLen {
		raw = "ip:" + RealClientIP(r)
	} else {
		raw = "dev:" + raw
	}
	return res.Hash(raw)
}

// Hash returns the hex digest of raw, 32 characters long.
func (res *Resolver) Hash(raw string) string {
	h, err := blake2b.New(16, res.key[:])
	if err != nil {
		// only possible with an oversized key
		panic(err)
	}
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}
