package api

import (
	"context"
	"fmt"
	"net/http"
)

// RBACService manages roles and permission assignments under /rbac.
type RBACService struct {
	c *Client
}

// RoleInput creates or renames a role.
type RoleInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type rolePermissionsPayload struct {
	RoleID        int64   `json:"role_id"`
	PermissionIDs []int64 `json:"permission_ids"`
}

func (s *RBACService) ListRoles(ctx context.Context, opts ListOptions) (List[RBACRole], error) {
	var out List[RBACRole]
	err := s.c.do(ctx, http.MethodGet, "/rbac/roles", opts.values(), nil, &out)
	return out, err
}

func (s *RBACService) CreateRole(ctx context.Context, in RoleInput) (RBACRole, error) {
	var out RBACRole
	err := s.c.do(ctx, http.MethodPost, "/rbac/roles", nil, in, &out)
	return out, err
}

func (s *RBACService) UpdateRole(ctx context.Context, id int64, in RoleInput) (RBACRole, error) {
	var out RBACRole
	err := s.c.do(ctx, http.MethodPatch, fmt.Sprintf("/rbac/roles/%d", id), nil, in, &out)
	return out, err
}

func (s *RBACService) DeleteRole(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/rbac/roles/%d", id), nil, nil, nil)
}

func (s *RBACService) ListPermissions(ctx context.Context, opts ListOptions) (List[RBACPermission], error) {
	var out List[RBACPermission]
	err := s.c.do(ctx, http.MethodGet, "/rbac/permissions", opts.values(), nil, &out)
	return out, err
}

// RolePermissions returns the permission ids currently granted to a role.
func (s *RBACService) RolePermissions(ctx context.Context, roleID int64) ([]int64, error) {
	var out rolePermissionsPayload
	err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/rbac/role_permissions/%d", roleID), nil, nil, &out)
	return out.PermissionIDs, err
}

// SetRolePermissions replaces the permission set of a role.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	in := rolePermissionsPayload{RoleID: roleID, PermissionIDs: permissionIDs}
	return s.c.do(ctx, http.MethodPut, "/rbac/role_permissions", nil, in, nil)
}
