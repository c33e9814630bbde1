package api

import (
	"context"
	"fmt"
	"net/http"
)

// DepositsService manages term deposits under /admins/deposits.
type DepositsService struct {
	c *Client
}

// OpenDepositInput opens a term deposit for a user. Amount is minor units,
// rate is basis points.
type OpenDepositInput struct {
	UserID     int64  `json:"user_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	RateBps    int    `json:"rate_bps"`
	TermMonths int    `json:"term_months"`
}

func (s *DepositsService) List(ctx context.Context, opts ListOptions) (List[Deposit], error) {
	var out List[Deposit]
	err := s.c.do(ctx, http.MethodGet, "/admins/deposits", opts.values(), nil, &out)
	return out, err
}

func (s *DepositsService) Get(ctx context.Context, id int64) (Deposit, error) {
	var out Deposit
	err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/admins/deposits/%d", id), nil, nil, &out)
	return out, err
}

func (s *DepositsService) Open(ctx context.Context, in OpenDepositInput) (Deposit, error) {
	var out Deposit
	err := s.c.do(ctx, http.MethodPost, "/admins/deposits", nil, in, &out)
	return out, err
}

// Close terminates the deposit; accrued interest handling is server-side.
func (s *DepositsService) Close(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/admins/deposits/%d", id), nil, nil, nil)
}
