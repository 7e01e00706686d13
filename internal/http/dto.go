package http

import (
	"time"

	"babywallet/internal/core"
	"babywallet/internal/services"
)

// Requests carry money as decimal strings so that parsing, and its errors,
// stay under the handler's control.
type (
	createChildRequest struct {
		Name         string `json:"name"`
		Age          *int   `json:"age,omitempty"`
		DateOfBirth  string `json:"date_of_birth,omitempty"`
		TargetAmount string `json:"target_amount"`
		ColorTheme   string `json:"color_theme,omitempty"`
	}

	updateChildRequest struct {
		Name         *string `json:"name,omitempty"`
		TargetAmount *string `json:"target_amount,omitempty"`
		ColorTheme   *string `json:"color_theme,omitempty"`
	}

	createInvestmentRequest struct {
		ChildID        string `json:"child_id"`
		Amount         string `json:"amount"`
		InvestmentType string `json:"investment_type"`
		Frequency      string `json:"frequency,omitempty"`
		StartDate      string `json:"start_date"`
		EndDate        string `json:"end_date,omitempty"`
	}

	transferRequest struct {
		ChildID     string `json:"child_id"`
		Amount      string `json:"amount"`
		Description string `json:"description,omitempty"`
	}
)

type childResponse struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	DateOfBirth         string       `json:"date_of_birth"`
	Age                 int          `json:"age"`
	TargetAmount        core.Money   `json:"target_amount"`
	UnlockAge           int          `json:"unlock_age"`
	ColorTheme          string       `json:"color_theme,omitempty"`
	CurrentBalance      core.Money   `json:"current_balance"`
	ProgressPercentage  core.Percent `json:"progress_percentage"`
	ProjectedValueAt18  core.Money   `json:"projected_value_at_18"`
	YearsUntilUnlock    int          `json:"years_until_unlock"`
	MonthlyContribution core.Money   `json:"monthly_contribution"`
	InvestmentCount     int          `json:"investment_count"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func newChildResponse(p core.ChildProfile) childResponse {
	return childResponse{
		ID:                  p.ID,
		Name:                p.Name,
		DateOfBirth:         p.DateOfBirth.String(),
		Age:                 p.Age,
		TargetAmount:        p.TargetAmount,
		UnlockAge:           p.UnlockAge,
		ColorTheme:          p.ColorTheme,
		CurrentBalance:      p.CurrentBalance,
		ProgressPercentage:  p.ProgressPercentage,
		ProjectedValueAt18:  p.ProjectedValueAt18,
		YearsUntilUnlock:    p.YearsUntilUnlock,
		MonthlyContribution: p.MonthlyContribution,
		InvestmentCount:     p.InvestmentCount,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

type investmentResponse struct {
	ID               string     `json:"id"`
	ChildID          string     `json:"child_id"`
	Amount           core.Money `json:"amount"`
	InvestmentType   string     `json:"investment_type"`
	Frequency        string     `json:"frequency,omitempty"`
	StartDate        string     `json:"start_date"`
	EndDate          string     `json:"end_date,omitempty"`
	Status           string     `json:"status"`
	TotalContributed core.Money `json:"total_contributed"`
	TransactionCount *int       `json:"transaction_count,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func newInvestmentResponse(inv core.Investment) investmentResponse {
	return investmentResponse{
		ID:               inv.ID,
		ChildID:          inv.ChildID,
		Amount:           inv.Amount,
		InvestmentType:   string(inv.Type),
		Frequency:        string(inv.Frequency),
		StartDate:        inv.StartDate.String(),
		EndDate:          inv.EndDate.String(),
		Status:           string(inv.Status),
		TotalContributed: inv.TotalContributed,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

func newInvestmentSummaryResponse(s services.InvestmentSummary) investmentResponse {
	resp := newInvestmentResponse(s.Investment)
	count := s.TransactionCount
	resp.TransactionCount = &count
	return resp
}

type transactionResponse struct {
	ID              string     `json:"id"`
	ChildID         string     `json:"child_id"`
	InvestmentID    string     `json:"investment_id,omitempty"`
	Amount          core.Money `json:"amount"`
	SignedAmount    core.Money `json:"signed_amount"`
	TransactionType string     `json:"transaction_type"`
	Status          string     `json:"status"`
	Period          string     `json:"period,omitempty"`
	Description     string     `json:"description,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:              tx.ID,
		ChildID:         tx.ChildID,
		InvestmentID:    tx.InvestmentID,
		Amount:          tx.Amount,
		SignedAmount:    tx.SignedAmount(),
		TransactionType: string(tx.Type),
		Status:          string(tx.Status),
		Period:          tx.Period,
		Description:     tx.Description,
		CreatedAt:       tx.CreatedAt,
	}
	if !tx.SettledAt.IsZero() {
		settled := tx.SettledAt
		resp.SettledAt = &settled
	}
	return resp
}

type transactionPage struct {
	Transactions []transactionResponse `json:"transactions"`
	// NextBefore is the cursor for the following page, empty on the last.
	NextBefore string `json:"next_before,omitempty"`
}

type dashboardResponse struct {
	TotalSavings     core.Money   `json:"total_savings"`
	TotalChildren    int          `json:"total_children"`
	TotalInvestments int          `json:"total_investments"`
	MonthlyGrowth    core.Money   `json:"monthly_growth"`
	ActiveContracts  int          `json:"active_contracts"`
	PercentageChange core.Percent `json:"percentage_change"`
}

func newDashboardResponse(s core.DashboardStats) dashboardResponse {
	return dashboardResponse{
		TotalSavings:     s.TotalSavings,
		TotalChildren:    s.TotalChildren,
		TotalInvestments: s.TotalInvestments,
		MonthlyGrowth:    s.MonthlyGrowth,
		ActiveContracts:  s.ActiveContracts,
		PercentageChange: s.PercentageChange,
	}
}

type monthBucketResponse struct {
	Month         string     `json:"month"` // YYYY-MM
	Contributions core.Money `json:"contributions"`
	Withdrawals   core.Money `json:"withdrawals"`
	Fees          core.Money `json:"fees"`
	Other         core.Money `json:"other"`
	Net           core.Money `json:"net"`
	Balance       core.Money `json:"balance"`
}

type transactionStatsResponse struct {
	Period string                `json:"period"`
	Months []monthBucketResponse `json:"months"`
}

func newMonthBucketResponse(b core.MonthBucket) monthBucketResponse {
	return monthBucketResponse{
		Month:         time.Date(b.Year, time.Month(b.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01"),
		Contributions: b.Contributions,
		Withdrawals:   b.Withdrawals,
		Fees:          b.Fees,
		Other:         b.Other,
		Net:           b.Net,
		Balance:       b.Balance,
	}
}

type statementLineResponse struct {
	ChildID        string     `json:"child_id,omitempty"`
	ChildName      string     `json:"child_name"`
	OpeningBalance core.Money `json:"opening_balance"`
	Contributions  core.Money `json:"contributions"`
	Withdrawals    core.Money `json:"withdrawals"`
	Fees           core.Money `json:"fees"`
	Interest       core.Money `json:"interest"`
	Refunds        core.Money `json:"refunds"`
	ClosingBalance core.Money `json:"closing_balance"`
}

type statementResponse struct {
	Year     int                     `json:"year"`
	Children []statementLineResponse `json:"children"`
	Totals   statementLineResponse   `json:"totals"`
}

func newStatementLineResponse(l core.StatementLine) statementLineResponse {
	return statementLineResponse{
		ChildID:        l.ChildID,
		ChildName:      l.ChildName,
		OpeningBalance: l.Opening,
		Contributions:  l.Contributions,
		Withdrawals:    l.Withdrawals,
		Fees:           l.Fees,
		Interest:       l.Interest,
		Refunds:        l.Refunds,
		ClosingBalance: l.Closing,
	}
}

func newStatementResponse(st core.AnnualStatement) statementResponse {
	resp := statementResponse{
		Year:     st.Year,
		Children: make([]statementLineResponse, 0, len(st.Lines)),
		Totals:   newStatementLineResponse(st.Totals),
	}
	for _, l := range st.Lines {
		resp.Children = append(resp.Children, newStatementLineResponse(l))
	}
	return resp
}

type projectionResponse struct {
	Principal           core.Money `json:"principal"`
	MonthlyContribution core.Money `json:"monthly_contribution"`
	Years               int        `json:"years"`
	MonthlyRate         string     `json:"monthly_rate"`
	ProjectedValue      core.Money `json:"projected_value"`
}
