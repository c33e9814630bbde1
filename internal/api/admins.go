package api

import (
	"context"
	"fmt"
	"net/http"
)

// AdminsService manages operator accounts under /admins/admins.
type AdminsService struct {
	c *Client
}

// CreateAdminInput is the payload for creating an operator. A duplicate email
// or username comes back as ErrConflict.
type CreateAdminInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int64  `json:"role_id"`
}

// UpdateAdminInput carries partial updates; nil fields are left untouched.
type UpdateAdminInput struct {
	Email  *string `json:"email,omitempty"`
	RoleID *int64  `json:"role_id,omitempty"`
	Status *string `json:"status,omitempty"`
}

func (s *AdminsService) List(ctx context.Context, opts ListOptions) (List[Admin], error) {
	var out List[Admin]
	err := s.c.do(ctx, http.MethodGet, "/admins/admins", opts.values(), nil, &out)
	return out, err
}

func (s *AdminsService) Get(ctx context.Context, id int64) (Admin, error) {
	var out Admin
	err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/admins/admins/%d", id), nil, nil, &out)
	return out, err
}

func (s *AdminsService) Create(ctx context.Context, in CreateAdminInput) (Admin, error) {
	var out Admin
	err := s.c.do(ctx, http.MethodPost, "/admins/admins", nil, in, &out)
	return out, err
}

func (s *AdminsService) Update(ctx context.Context, id int64, in UpdateAdminInput) (Admin, error) {
	var out Admin
	err := s.c.do(ctx, http.MethodPatch, fmt.Sprintf("/admins/admins/%d", id), nil, in, &out)
	return out, err
}

func (s *AdminsService) Delete(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/admins/admins/%d", id), nil, nil, nil)
}
