// Package kv defines the key-value persistence port the ledger and the
// appointment book are written through. Values are whole JSON documents
// that are read once at startup and overwritten on every mutation.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("kv store closed")

type (
	// Store reads and writes string values by key. A missing key is not an
	// error: Get reports it with ok == false.
	Store interface {
		Get(ctx context.Context, key string) (value string, ok bool, err error)
		Set(ctx context.Context, key string, value string) error
	}

	// Lister is implemented by stores that can enumerate their keys.
	Lister interface {
		Keys(ctx context.Context) ([]string, error)
	}
)
