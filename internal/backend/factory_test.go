package backend

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"babywallet/internal/amqp"
	"babywallet/internal/config"
	"babywallet/internal/ledger/memory"
	"babywallet/internal/log"
	"babywallet/internal/storage"
)

func quietFactory() *DefaultFactory {
	f := NewFactory(log.New(log.Config{Output: io.Discard}))
	f.dial = func(url, exchange, queue string) (*amqp.Client, error) {
		return nil, errors.New("connection refused")
	}
	return f
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
		check   func(t *testing.T, r *Result)
	}{
		{
			name:   "memory",
			config: Config{Type: MemoryBackend},
			check: func(t *testing.T, r *Result) {
				if _, ok := r.Store.(*memory.Store); !ok {
					t.Errorf("store = %T, want *memory.Store", r.Store)
				}
			},
		},
		{
			name:   "sqlite",
			config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "wallet.db")},
			check: func(t *testing.T, r *Result) {
				if _, ok := r.Store.(*storage.SQLiteRepository); !ok {
					t.Errorf("store = %T, want *storage.SQLiteRepository", r.Store)
				}
				if err := r.Store.Ping(ctx); err != nil {
					t.Errorf("Ping() = %v", err)
				}
			},
		},
		{
			name:   "unreachable broker is optional",
			config: Config{Type: MemoryBackend, AMQPURL: "amqp://localhost:1/", AMQPExchange: "x", AMQPQueue: "q"},
			check: func(t *testing.T, r *Result) {
				if r.Broker != nil {
					t.Error("expected no broker")
				}
			},
		},
		{
			name:    "unreachable broker when required",
			config:  Config{Type: MemoryBackend, AMQPURL: "amqp://localhost:1/", AMQPExchange: "x", AMQPQueue: "q", RequireBroker: true},
			wantErr: true,
		},
		{
			name:    "missing broker url when required",
			config:  Config{Type: MemoryBackend, RequireBroker: true},
			wantErr: true,
		},
		{
			name:    "invalid type",
			config:  Config{Type: "sheets"},
			wantErr: true,
		},
		{
			name:    "sqlite without path",
			config:  Config{Type: SQLiteBackend},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := quietFactory().CreateBackend(ctx, tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBackend() = %v", err)
			}
			t.Cleanup(func() {
				if err := r.Cleanup(); err != nil {
					t.Errorf("Cleanup() = %v", err)
				}
			})
			tt.check(t, r)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.Defaults()
	app.DataBackend = "sqlite"
	app.SQLiteDBPath = "/tmp/x.db"
	app.AMQPURL = "amqp://localhost/"

	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig() = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.AMQPQueue != "settlements" {
		t.Errorf("unexpected config %+v", cfg)
	}

	app.DataBackend = "sheets"
	if _, err := FromAppConfig(app); err == nil || !strings.Contains(err.Error(), "must be one of sqlite, memory") {
		t.Errorf("expected the valid backends to be listed, got %v", err)
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
