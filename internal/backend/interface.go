// Package backend builds the ledger store and the optional message broker
// client selected by configuration.
package backend

import (
	"context"

	"babywallet/internal/amqp"
	"babywallet/internal/ledger"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// Result contains the store, the broker client (nil when messaging is
// disabled or unreachable) and a cleanup function.
type Result struct {
	Store   ledger.Store
	Broker  *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Messaging, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireBroker turns a failed broker connection into an error instead
	// of a warning. Workers that consume settlements set it.
	RequireBroker bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
