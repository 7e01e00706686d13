package http

import (
	"context"
	"net/http"

	"babywallet/internal/core"
	"babywallet/internal/log"
	"babywallet/internal/services"
)

func (s *Server) handleCreateInvestment(w http.ResponseWriter, r *http.Request, accountID string) {
	var req createInvestmentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	amount, err := ParseMoneyField("amount", req.Amount)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	start, err := ParseDateField("start_date", req.StartDate)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	end, err := ParseDateField("end_date", req.EndDate)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	inv, err := s.svc.CreateInvestment(r.Context(), accountID, services.CreateInvestmentInput{
		ChildID:   sanitizeInput(req.ChildID),
		Amount:    amount,
		Type:      core.InvestmentType(sanitizeInput(req.InvestmentType)),
		Frequency: core.Frequency(sanitizeInput(req.Frequency)),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(newInvestmentResponse(inv)).
		Write(w)
}

func (s *Server) handleListInvestments(w http.ResponseWriter, r *http.Request, accountID string) {
	q := r.URL.Query()
	summaries, err := s.svc.ListInvestments(r.Context(), accountID,
		QueryString(q, "child"),
		core.InvestmentStatus(QueryString(q, "status")))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	out := make([]investmentResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, newInvestmentSummaryResponse(sum))
	}
	NewJSONResponse().Body(map[string]any{"investments": out}).Write(w)
}

func (s *Server) handlePauseInvestment(w http.ResponseWriter, r *http.Request, accountID string) {
	s.transitionInvestment(w, r, accountID, s.svc.PauseInvestment)
}

func (s *Server) handleResumeInvestment(w http.ResponseWriter, r *http.Request, accountID string) {
	s.transitionInvestment(w, r, accountID, s.svc.ResumeInvestment)
}

func (s *Server) handleCancelInvestment(w http.ResponseWriter, r *http.Request, accountID string) {
	s.transitionInvestment(w, r, accountID, s.svc.CancelInvestment)
}

type transitionFunc func(ctx context.Context, accountID, investmentID string) (core.Investment, error)

func (s *Server) transitionInvestment(w http.ResponseWriter, r *http.Request, accountID string, fn transitionFunc) {
	inv, err := fn(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpTransition, err)
		return
	}
	NewJSONResponse().Body(newInvestmentResponse(inv)).Write(w)
}
