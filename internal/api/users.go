package api

import (
	"context"
	"fmt"
	"net/http"
)

// UsersService manages customer accounts under /admins/users.
type UsersService struct {
	c *Client
}

// CreateUserInput is the payload for opening a customer account.
type CreateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// UpdateUserInput carries partial updates; nil fields are left untouched.
type UpdateUserInput struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
	Status   *string `json:"status,omitempty"`
}

func (s *UsersService) List(ctx context.Context, opts ListOptions) (List[User], error) {
	var out List[User]
	err := s.c.do(ctx, http.MethodGet, "/admins/users", opts.values(), nil, &out)
	return out, err
}

func (s *UsersService) Get(ctx context.Context, id int64) (User, error) {
	var out User
	err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/admins/users/%d", id), nil, nil, &out)
	return out, err
}

func (s *UsersService) Create(ctx context.Context, in CreateUserInput) (User, error) {
	var out User
	err := s.c.do(ctx, http.MethodPost, "/admins/users", nil, in, &out)
	return out, err
}

func (s *UsersService) Update(ctx context.Context, id int64, in UpdateUserInput) (User, error) {
	var out User
	err := s.c.do(ctx, http.MethodPatch, fmt.Sprintf("/admins/users/%d", id), nil, in, &out)
	return out, err
}

func (s *UsersService) Delete(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/admins/users/%d", id), nil, nil, nil)
}
