package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// TransactionsService reads the transaction history under /admins/transactions.
// The console never creates transactions; it observes them.
type TransactionsService struct {
	c *Client
}

// TransactionListOptions adds account and status filters to the paging options.
type TransactionListOptions struct {
	ListOptions
	AccountID string
	Status    string
}

func (o TransactionListOptions) values() url.Values {
	v := o.ListOptions.values()
	if o.AccountID != "" {
		v.Set("account_id", o.AccountID)
	}
	if o.Status != "" {
		v.Set("status", o.Status)
	}
	return v
}

func (s *TransactionsService) List(ctx context.Context, opts TransactionListOptions) (List[Transaction], error) {
	var out List[Transaction]
	err := s.c.do(ctx, http.MethodGet, "/admins/transactions", opts.values(), nil, &out)
	return out, err
}

func (s *TransactionsService) Get(ctx context.Context, id string) (Transaction, error) {
	var out Transaction
	err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/admins/transactions/%s", url.PathEscape(id)), nil, nil, &out)
	return out, err
}
