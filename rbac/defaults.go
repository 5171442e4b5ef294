package rbac

import (
	"context"
	"errors"
)

// DefaultPermissions are created by InitializeDefaultRoles.
var DefaultPermissions = []PermissionInput{
	{Name: "user.read", Description: "Read user profiles", IsSystem: true},
	{Name: "user.write", Description: "Modify user profiles", IsSystem: true},
	{Name: "user.delete", Description: "Delete users", IsSystem: true},
	{Name: "admin.access", Description: "Access administrative features", IsSystem: true},
	{Name: "system.manage", Description: "Manage system configuration", IsSystem: true},
}

// DefaultRoles are created by InitializeDefaultRoles.
var DefaultRoles = []RoleInput{
	{Name: "user", Description: "Standard user", Permissions: []string{"user.read"}, IsSystem: true},
	{Name: "moderator", Description: "Content moderator", Permissions: []string{"user.read", "user.write"}, IsSystem: true},
	{Name: "admin", Description: "Administrator", Permissions: []string{"user.read", "user.write", "user.delete", "admin.access", "system.manage"}, IsSystem: true},
}

// InitializeDefaultRoles creates any missing default permissions and roles. Existing
// entities are left as they are, so repeated calls converge without duplicates.
func (d *Directory) InitializeDefaultRoles(ctx context.Context) error {
	for _, in := range DefaultPermissions {
		if _, err := d.GetPermissionByName(ctx, in.Name); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := d.CreatePermission(ctx, in); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
	}

	for _, in := range DefaultRoles {
		if _, err := d.GetRoleByName(ctx, in.Name); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := d.CreateRole(ctx, in); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
	}

	return nil
}
