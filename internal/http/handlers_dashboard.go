package http

import (
	"net/http"
	"strconv"

	"babywallet/internal/log"
	"babywallet/internal/services"
)

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request, accountID string) {
	stats, err := s.svc.DashboardStats(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newDashboardResponse(stats)).Write(w)
}

func (s *Server) handleTransactionStats(w http.ResponseWriter, r *http.Request, accountID string) {
	period := QueryString(r.URL.Query(), "period")
	buckets, err := s.svc.TransactionStats(r.Context(), accountID, period)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	if period == "" {
		period = "6m"
	}
	resp := transactionStatsResponse{
		Period: period,
		Months: make([]monthBucketResponse, 0, len(buckets)),
	}
	for _, b := range buckets {
		resp.Months = append(resp.Months, newMonthBucketResponse(b))
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleAnnualStatement(w http.ResponseWriter, r *http.Request, accountID string) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		BadRequestError("year must be a number").Write(w)
		return
	}
	st, err := s.svc.AnnualStatement(r.Context(), accountID, year)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newStatementResponse(st)).Write(w)
}

// handleProjection runs the savings estimator. It reads no account data, so
// it is served without an account.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	principal, err := ParseOptionalMoney("principal", q.Get("principal"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	monthly, err := ParseOptionalMoney("amount", q.Get("amount"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	years, err := QueryInt(q, "years", 18)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	rate, err := QueryDecimal(q, "rate")
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	value, err := s.svc.Estimate(services.EstimateInput{
		Principal:           principal,
		MonthlyContribution: monthly,
		Years:               years,
		Rate:                rate,
	})
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	effective := s.svc.Settings().MonthlyRate
	if rate != nil {
		effective = *rate
	}
	NewJSONResponse().Body(projectionResponse{
		Principal:           principal,
		MonthlyContribution: monthly,
		Years:               years,
		MonthlyRate:         effective.String(),
		ProjectedValue:      value,
	}).Write(w)
}
