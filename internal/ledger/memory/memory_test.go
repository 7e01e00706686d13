package memory

import (
	"testing"

	"babywallet/internal/ledger"
	"babywallet/internal/ledger/ledgertest"
)

func TestMemoryStore(t *testing.T) {
	ledgertest.Run(t, func(*testing.T) ledger.Store { return New() })
}
