package rbac

import "time"

// Role is a named bundle of permission names.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	IsSystem    bool      `json:"isSystem"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission is an atomic capability, conventionally named "resource.action".
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	IsSystem    bool      `json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RoleInput describes a role to create. IsActive defaults to true when nil.
type RoleInput struct {
	Name        string   `validate:"required,max=100"`
	Description string   `validate:"max=500"`
	Permissions []string `validate:"dive,required"`
	IsSystem    bool
	IsActive    *bool
}

// RoleUpdate is a partial update; nil fields are left unchanged.
type RoleUpdate struct {
	Name        *string  `validate:"omitempty,min=1,max=100"`
	Description *string  `validate:"omitempty,max=500"`
	Permissions []string `validate:"omitempty,dive,required"`
	IsActive    *bool
}

// PermissionInput describes a permission to create. Name is derived from
// Resource and Action when empty, and vice versa.
type PermissionInput struct {
	Name        string `validate:"max=100"`
	Description string `validate:"max=500"`
	Resource    string `validate:"max=50"`
	Action      string `validate:"max=50"`
	IsSystem    bool
}

// ListRolesOptions filters ListRoles.
type ListRolesOptions struct {
	IncludeInactive bool
}
