package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goAuthz/internal/metrics"
	"go.uber.org/zap"
)

// AssignRoleToUser grants roleName to userID. A missing or inactive role is a
// conflict. The forward set write propagates; the reverse index is best-effort.
func (d *Directory) AssignRoleToUser(ctx context.Context, userID, roleName string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	role, err := d.GetRoleByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: role %q does not exist", ErrConflict, roleName)
		}
		return err
	}
	if !role.IsActive {
		return fmt.Errorf("%w: role %q is inactive", ErrConflict, roleName)
	}

	if err := d.gateway.SAdd(ctx, userRolesKey(userID), role.ID); err != nil {
		return err
	}
	d.bestEffort("index role member", d.gateway.SAdd(ctx, roleUsersKey(role.Name), userID),
		zap.String("role", role.Name), zap.String("user_id", userID))

	d.userRoles.Invalidate(userID)
	return nil
}

// RemoveRoleFromUser revokes roleName from userID. Revoking a role the user does
// not hold is not an error.
func (d *Directory) RemoveRoleFromUser(ctx context.Context, userID, roleName string) error {
	role, err := d.GetRoleByName(ctx, roleName)
	if err != nil {
		return err
	}

	if err := d.gateway.SRem(ctx, userRolesKey(userID), role.ID); err != nil {
		return err
	}
	d.bestEffort("unindex role member", d.gateway.SRem(ctx, roleUsersKey(role.Name), userID),
		zap.String("role", role.Name), zap.String("user_id", userID))

	d.userRoles.Invalidate(userID)
	return nil
}

// RemoveRoleFromAllUsers revokes roleName from every user in its reverse index and
// returns how many users were affected.
func (d *Directory) RemoveRoleFromAllUsers(ctx context.Context, roleName string) (int, error) {
	role, err := d.GetRoleByName(ctx, roleName)
	if err != nil {
		return 0, err
	}

	members, err := d.gateway.SMembers(ctx, roleUsersKey(role.Name))
	if err != nil {
		return 0, err
	}

	removed := 0
	var firstErr error
	for _, userID := range members {
		if err := d.gateway.SRem(ctx, userRolesKey(userID), role.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	if firstErr == nil {
		d.bestEffort("delete role members", d.gateway.Del(ctx, roleUsersKey(role.Name)), zap.String("role", role.Name))
	}

	d.userRoles.Invalidate(members...)
	return removed, firstErr
}

// GetUserRoles returns the active roles assigned to userID, sorted by name.
func (d *Directory) GetUserRoles(ctx context.Context, userID string) ([]*Role, error) {
	ids, err := d.gateway.SMembers(ctx, userRolesKey(userID))
	if err != nil {
		return nil, err
	}

	roles := make([]*Role, 0, len(ids))
	for _, id := range ids {
		role, err := d.GetRole(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Left behind by a partially applied delete cascade.
				d.bestEffort("prune dangling role", d.gateway.SRem(ctx, userRolesKey(userID), id),
					zap.String("user_id", userID), zap.String("role_id", id))
				continue
			}
			return nil, err
		}
		if role.IsActive {
			roles = append(roles, role)
		}
	}

	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// GetUserRoleNames is the cached form of GetUserRoles returning names only.
func (d *Directory) GetUserRoleNames(ctx context.Context, userID string) ([]string, error) {
	names, err := d.userRoles.Get(ctx, userID, func(ctx context.Context) ([]string, error) {
		roles, err := d.GetUserRoles(ctx, userID)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(roles))
		for i, role := range roles {
			names[i] = role.Name
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), names...), nil
}

// GetRolePermissions returns the permissions granted by roleName, sorted by name.
// Unknown and inactive roles grant nothing.
func (d *Directory) GetRolePermissions(ctx context.Context, roleName string) ([]Permission, error) {
	perms, err := d.rolePerms.Get(ctx, roleName, func(ctx context.Context) ([]Permission, error) {
		role, err := d.GetRoleByName(ctx, roleName)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return []Permission{}, nil
			}
			return nil, err
		}
		if !role.IsActive {
			return []Permission{}, nil
		}

		out := make([]Permission, 0, len(role.Permissions))
		for _, name := range role.Permissions {
			perm, err := d.GetPermissionByName(ctx, name)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					d.logger.Warn("rbac: role references missing permission",
						zap.String("role", roleName), zap.String("permission", name))
					continue
				}
				return nil, err
			}
			out = append(out, *perm)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]Permission(nil), perms...), nil
}

// GetUserPermissions returns the union of permission names across the user's roles,
// deduplicated and sorted.
func (d *Directory) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	roles, err := d.GetUserRoleNames(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, roleName := range roles {
		perms, err := d.GetRolePermissions(ctx, roleName)
		if err != nil {
			return nil, err
		}
		for _, perm := range perms {
			seen[perm.Name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// GetUsersWithRole lists the reverse index for roleName, sorted.
func (d *Directory) GetUsersWithRole(ctx context.Context, roleName string) ([]string, error) {
	users, err := d.gateway.SMembers(ctx, roleUsersKey(roleName))
	if err != nil {
		return nil, err
	}
	sort.Strings(users)
	return users, nil
}

// CheckRole reports whether userID holds roleName.
func (d *Directory) CheckRole(ctx context.Context, userID, roleName string) (bool, error) {
	return d.CheckAnyRole(ctx, userID, roleName)
}

// CheckAnyRole reports whether userID holds at least one of roleNames.
func (d *Directory) CheckAnyRole(ctx context.Context, userID string, roleNames ...string) (bool, error) {
	held, err := d.GetUserRoleNames(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, want := range roleNames {
		for _, name := range held {
			if name == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// CheckPermission reports whether any of userID's roles grants permission.
func (d *Directory) CheckPermission(ctx context.Context, userID, permission string) (bool, error) {
	return d.CheckAllPermissions(ctx, userID, permission)
}

// CheckAllPermissions reports whether userID is granted every one of permissions.
// An empty list is satisfied once the user's roles could be read.
func (d *Directory) CheckAllPermissions(ctx context.Context, userID string, permissions ...string) (bool, error) {
	granted, err := d.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}

	set := make(map[string]struct{}, len(granted))
	for _, name := range granted {
		set[name] = struct{}{}
	}
	for _, want := range permissions {
		if _, ok := set[want]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// UserHasRole is CheckRole failing closed.
func (d *Directory) UserHasRole(ctx context.Context, userID, roleName string) bool {
	start := time.Now()
	ok, err := d.CheckRole(ctx, userID, roleName)
	return d.decide(start, "role", userID, roleName, ok, err)
}

// UserHasAnyRole is CheckAnyRole failing closed.
func (d *Directory) UserHasAnyRole(ctx context.Context, userID string, roleNames ...string) bool {
	start := time.Now()
	ok, err := d.CheckAnyRole(ctx, userID, roleNames...)
	return d.decide(start, "any_role", userID, "", ok, err)
}

// UserHasPermission is CheckPermission failing closed.
func (d *Directory) UserHasPermission(ctx context.Context, userID, permission string) bool {
	start := time.Now()
	ok, err := d.CheckPermission(ctx, userID, permission)
	return d.decide(start, "permission", userID, permission, ok, err)
}

// UserHasAllPermissions is CheckAllPermissions failing closed.
func (d *Directory) UserHasAllPermissions(ctx context.Context, userID string, permissions ...string) bool {
	start := time.Now()
	ok, err := d.CheckAllPermissions(ctx, userID, permissions...)
	return d.decide(start, "all_permissions", userID, "", ok, err)
}

func (d *Directory) decide(start time.Time, kind, userID, target string, ok bool, err error) bool {
	d.metrics.Observe(metrics.AuthzLatency, time.Since(start))

	if err != nil {
		d.metrics.Inc(metrics.AuthzDegraded)
		d.metrics.Inc(metrics.AuthzDenied)
		d.logger.Warn("rbac: authorization degraded, denying",
			zap.String("check", kind),
			zap.String("user_id", userID),
			zap.String("target", target),
			zap.Error(err),
		)
		return false
	}

	if ok {
		d.metrics.Inc(metrics.AuthzAllowed)
	} else {
		d.metrics.Inc(metrics.AuthzDenied)
	}
	return ok
}
