// Package kvstore provides the small key-value backends behind usage counters
// and user flags. Every backend stores one string value per key.
package kvstore

import "context"

// Store is the get/set contract shared by all backends. Get reports
// found=false with a nil error when the key has no value.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}
