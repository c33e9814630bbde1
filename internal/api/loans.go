package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// LoansService manages loan applications under /admins/loans.
type LoansService struct {
	c *Client
}

// CreateLoanInput opens a loan application on behalf of a user. Amount is
// minor units.
type CreateLoanInput struct {
	UserID     int64  `json:"user_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	TermMonths int    `json:"term_months"`
}

type updateLoanStatus struct {
	Status string `json:"status"`
}

// LoanListOptions adds the status filter to the common paging options.
type LoanListOptions struct {
	ListOptions
	Status string
}

func (o LoanListOptions) values() url.Values {
	v := o.ListOptions.values()
	if o.Status != "" {
		v.Set("status", o.Status)
	}
	return v
}

func (s *LoansService) List(ctx context.Context, opts LoanListOptions) (List[Loan], error) {
	var out List[Loan]
	err := s.c.do(ctx, http.MethodGet, "/admins/loans", opts.values(), nil, &out)
	return out, err
}

func (s *LoansService) Get(ctx context.Context, id int64) (Loan, error) {
	var out Loan
	err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/admins/loans/%d", id), nil, nil, &out)
	return out, err
}

func (s *LoansService) Create(ctx context.Context, in CreateLoanInput) (Loan, error) {
	var out Loan
	err := s.c.do(ctx, http.MethodPost, "/admins/loans", nil, in, &out)
	return out, err
}

// SetStatus moves a loan through its review lifecycle (approved, rejected, ...).
// The decision rules live server-side; the console only submits the verdict.
func (s *LoansService) SetStatus(ctx context.Context, id int64, status string) (Loan, error) {
	var out Loan
	err := s.c.do(ctx, http.MethodPatch, fmt.Sprintf("/admins/loans/%d", id), nil, updateLoanStatus{Status: status}, &out)
	return out, err
}

func (s *LoansService) Delete(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/admins/loans/%d", id), nil, nil, nil)
}
