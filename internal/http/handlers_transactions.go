package http

import (
	"context"
	"net/http"

	"babywallet/internal/core"
	"babywallet/internal/log"
	"babywallet/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, accountID string) {
	q := r.URL.Query()
	limit, err := QueryInt(q, "limit", services.DefaultTransactionLimit)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	offset, err := QueryInt(q, "offset", 0)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if limit == 0 {
		limit = services.DefaultTransactionLimit
	}
	limit = min(limit, services.MaxTransactionLimit)

	txs, err := s.svc.ListTransactions(r.Context(), accountID, services.TransactionFilter{
		ChildID: QueryString(q, "child"),
		Limit:   limit,
		Offset:  offset,
		Before:  QueryString(q, "before"),
	})
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	page := transactionPage{Transactions: make([]transactionResponse, 0, len(txs))}
	for _, tx := range txs {
		page.Transactions = append(page.Transactions, newTransactionResponse(tx))
	}
	if len(txs) == limit {
		page.NextBefore = txs[len(txs)-1].ID
	}
	NewJSONResponse().Body(page).Write(w)
}

func (s *Server) handleRecordWithdrawal(w http.ResponseWriter, r *http.Request, accountID string) {
	s.recordTransfer(w, r, accountID, core.TxWithdrawal)
}

func (s *Server) handleRecordFee(w http.ResponseWriter, r *http.Request, accountID string) {
	s.recordTransfer(w, r, accountID, core.TxFee)
}

func (s *Server) handleRecordInterest(w http.ResponseWriter, r *http.Request, accountID string) {
	s.recordTransfer(w, r, accountID, core.TxInterest)
}

func (s *Server) handleRecordRefund(w http.ResponseWriter, r *http.Request, accountID string) {
	s.recordTransfer(w, r, accountID, core.TxRefund)
}

// recordTransfer books a manual transaction of txType against one child.
func (s *Server) recordTransfer(w http.ResponseWriter, r *http.Request, accountID string, txType core.TransactionType) {
	var req transferRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	amount, err := ParseMoneyField("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	var record func(context.Context, string, string, core.Money, string) (core.Transaction, error)
	switch txType {
	case core.TxFee:
		record = s.svc.RecordFee
	case core.TxInterest:
		record = s.svc.RecordInterest
	case core.TxRefund:
		record = s.svc.RecordRefund
	default:
		record = s.svc.RecordWithdrawal
	}
	tx, err := record(r.Context(), accountID, sanitizeInput(req.ChildID), amount, sanitizeInput(req.Description))
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(newTransactionResponse(tx)).
		Write(w)
}
