// Package blob stores report documents in key-value object storage.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob not found")

// Store is an eventually consistent key-value blob store. Keys use forward
// slashes regardless of backend.
type Store interface {
	// Put writes data under key and returns a location for the object
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get returns the object stored under key or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the sorted keys that start with prefix
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes key; deleting a missing key returns ErrNotFound
	Delete(ctx context.Context, key string) error
}

// Settings select and configure a storage backend
type Settings struct {
	Backend string `mapstructure:"backend"`

	// local
	Root string `mapstructure:"root"`

	// s3
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Profile  string `mapstructure:"profile"`
	Endpoint string `mapstructure:"endpoint"`

	// azure
	Container        string `mapstructure:"container"`
	AccountURL       string `mapstructure:"account_url"`
	ConnectionString string `mapstructure:"connection_string"`
}
