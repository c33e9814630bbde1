package api

import (
	"context"
	"fmt"
	"net/http"
)

// CardsService manages issued cards under /admins/cards.
type CardsService struct {
	c *Client
}

// IssueCardInput requests a new card for a user.
type IssueCardInput struct {
	UserID int64  `json:"user_id"`
	Kind   string `json:"kind"`
}

type updateCardStatus struct {
	Status string `json:"status"`
}

func (s *CardsService) List(ctx context.Context, opts ListOptions) (List[Card], error) {
	var out List[Card]
	err := s.c.do(ctx, http.MethodGet, "/admins/cards", opts.values(), nil, &out)
	return out, err
}

func (s *CardsService) Get(ctx context.Context, id int64) (Card, error) {
	var out Card
	err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/admins/cards/%d", id), nil, nil, &out)
	return out, err
}

func (s *CardsService) Issue(ctx context.Context, in IssueCardInput) (Card, error) {
	var out Card
	err := s.c.do(ctx, http.MethodPost, "/admins/cards", nil, in, &out)
	return out, err
}

// Block freezes the card immediately.
func (s *CardsService) Block(ctx context.Context, id int64) (Card, error) {
	var out Card
	err := s.c.do(ctx, http.MethodPatch, fmt.Sprintf("/admins/cards/%d", id), nil, updateCardStatus{Status: "blocked"}, &out)
	return out, err
}

func (s *CardsService) Delete(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/admins/cards/%d", id), nil, nil, nil)
}
