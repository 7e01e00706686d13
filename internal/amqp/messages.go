package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"babywallet/internal/core"
)

const (
	// RoutingKeyPending announces new pending transactions to the external
	// settlement system.
	RoutingKeyPending = "transactions.pending"
	// RoutingKeySettlement carries settlement outcomes back to us.
	RoutingKeySettlement = "settlements"
)

// PendingTransactionMessage announces a transaction awaiting settlement.
type PendingTransactionMessage struct {
	TransactionID string     `json:"transaction_id"`
	AccountID     string     `json:"account_id"`
	ChildID       string     `json:"child_id"`
	InvestmentID  string     `json:"investment_id,omitempty"`
	Type          string     `json:"transaction_type"`
	Amount        core.Money `json:"amount"`
	Period        string     `json:"period,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Timestamp     time.Time  `json:"timestamp"`
}

func NewPendingTransactionMessage(tx core.Transaction) *PendingTransactionMessage {
	return &PendingTransactionMessage{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		ChildID:       tx.ChildID,
		InvestmentID:  tx.InvestmentID,
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		Period:        tx.Period,
		CreatedAt:     tx.CreatedAt,
		Timestamp:     time.Now(),
	}
}

func (m *PendingTransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SettlementMessage reports the outcome of a pending transaction. AccountID
// is echoed back from the announcement when the settlement system has it.
type SettlementMessage struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id,omitempty"`
	Outcome       string    `json:"outcome"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewSettlementMessage(transactionID, accountID string, outcome core.TransactionStatus) *SettlementMessage {
	return &SettlementMessage{
		TransactionID: transactionID,
		AccountID:     accountID,
		Outcome:       string(outcome),
		Timestamp:     time.Now(),
	}
}

func (m *SettlementMessage) Validate() error {
	if m.TransactionID == "" {
		return fmt.Errorf("settlement message: missing transaction_id")
	}
	switch core.TransactionStatus(m.Outcome) {
	case core.TxCompleted, core.TxFailed:
		return nil
	}
	return fmt.Errorf("settlement message: invalid outcome %q", m.Outcome)
}

func (m *SettlementMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SettlementMessageFromJSON decodes and validates a settlement message.
func SettlementMessageFromJSON(data []byte) (*SettlementMessage, error) {
	var msg SettlementMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
