package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthz/cache"
	"github.com/MrEthical07/goAuthz/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a lookup by id or name resolves to nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for rejected preconditions: duplicate names, system
	// role mutation, assignment of a missing or inactive role. Never retried.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput wraps input validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// Config controls the in-process cache tiers.
type Config struct {
	CacheTimeout time.Duration `mapstructure:"cache_timeout" validate:"gt=0"`
	CacheSize    int           `mapstructure:"cache_size" validate:"gte=0"`
}

// DefaultConfig returns a five minute cache window.
func DefaultConfig() Config {
	return Config{
		CacheTimeout: 5 * time.Minute,
		CacheSize:    cache.DefaultExpiringSize,
	}
}

// Option configures a [Directory].
type Option func(*Directory)

// WithLogger sets the logger used for degraded and best-effort paths.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records decision and cache counters into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Directory) {
		d.metrics = m
	}
}

// Directory is the authorization directory. Each instance owns its own cache tiers;
// instances never share cached state.
type Directory struct {
	gateway  cache.Gateway
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time

	userRoles *cache.Aside[[]string]
	rolePerms *cache.Aside[[]Permission]
}

// NewDirectory creates a [Directory] over gateway. A zero CacheTimeout uses the default.
func NewDirectory(gateway cache.Gateway, cfg Config, opts ...Option) (*Directory, error) {
	if cfg.CacheTimeout <= 0 {
		cfg.CacheTimeout = DefaultConfig().CacheTimeout
	}

	d := &Directory{
		gateway:  gateway,
		cfg:      cfg,
		logger:   zap.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}

	userRoles, err := cache.NewExpiring[[]string](cfg.CacheTimeout, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("user role cache: %w", err)
	}
	rolePerms, err := cache.NewExpiring[[]Permission](cfg.CacheTimeout, cfg.CacheSize)
	if err != nil {
		userRoles.Close()
		return nil, fmt.Errorf("role permission cache: %w", err)
	}

	d.userRoles = cache.NewAside(userRoles, nil)
	d.rolePerms = cache.NewAside(rolePerms, func(hit bool) {
		if hit {
			d.metrics.Inc(metrics.PermissionCacheHit)
		} else {
			d.metrics.Inc(metrics.PermissionCacheMiss)
		}
	})
	return d, nil
}

// Config returns the effective configuration.
func (d *Directory) Config() Config {
	return d.cfg
}

// Close stops the cache timers. The directory must not be used afterwards.
func (d *Directory) Close() {
	d.userRoles.Close()
	d.rolePerms.Close()
}

// InvalidateCaches drops every cached entry. Used after bulk out-of-band changes.
func (d *Directory) InvalidateCaches() {
	d.userRoles.Clear()
	d.rolePerms.Clear()
}

func (d *Directory) check(v any) error {
	if err := d.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// CreateRole stores a new role. Names must be unique and every permission must exist.
// Record and index writes propagate errors; if an index write fails the record is
// removed again so the role is not half-created.
func (d *Directory) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	if err := d.check(in); err != nil {
		return nil, err
	}

	if _, err := d.GetRoleByName(ctx, in.Name); err == nil {
		return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, in.Name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	perms, err := d.resolvePermissionNames(ctx, in.Permissions)
	if err != nil {
		return nil, err
	}

	now := d.now()
	role := &Role{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Permissions: perms,
		IsSystem:    in.IsSystem,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := cache.SetObject(ctx, d.gateway, roleKey(role.ID), role, 0); err != nil {
		return nil, err
	}
	if err := d.indexEntity(ctx, rolesByNameKey, rolesAllKey, role.Name, role.ID); err != nil {
		d.rollback(ctx, roleKey(role.ID))
		return nil, err
	}

	d.rolePerms.Invalidate(role.Name)
	return role, nil
}

// GetRole returns the role with id.
func (d *Directory) GetRole(ctx context.Context, id string) (*Role, error) {
	role, err := cache.GetObject[Role](ctx, d.gateway, roleKey(id))
	if err != nil {
		if cache.IsMiss(err) {
			return nil, fmt.Errorf("%w: role %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &role, nil
}

// GetRoleByName resolves name through roles:by_name.
func (d *Directory) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	names, err := readNameIndex(ctx, d.gateway, rolesByNameKey)
	if err != nil {
		return nil, err
	}
	id, ok := names[name]
	if !ok {
		return nil, fmt.Errorf("%w: role %q", ErrNotFound, name)
	}
	return d.GetRole(ctx, id)
}

// UpdateRole applies a partial update. Renaming a system role is a conflict. A rename
// moves the reverse assignment index to the new name.
func (d *Directory) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (*Role, error) {
	if err := d.check(upd); err != nil {
		return nil, err
	}

	role, err := d.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := *role
	oldName := role.Name

	renamed := upd.Name != nil && *upd.Name != role.Name
	if renamed {
		if role.IsSystem {
			return nil, fmt.Errorf("%w: system role %q cannot be renamed", ErrConflict, role.Name)
		}
		if _, err := d.GetRoleByName(ctx, *upd.Name); err == nil {
			return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, *upd.Name)
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		role.Name = *upd.Name
	}
	if upd.Permissions != nil {
		perms, err := d.resolvePermissionNames(ctx, upd.Permissions)
		if err != nil {
			return nil, err
		}
		role.Permissions = perms
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	activeChanged := upd.IsActive != nil && *upd.IsActive != role.IsActive
	if upd.IsActive != nil {
		role.IsActive = *upd.IsActive
	}
	role.UpdatedAt = d.now()

	if err := cache.SetObject(ctx, d.gateway, roleKey(role.ID), role, 0); err != nil {
		return nil, err
	}

	if renamed {
		if err := putName(ctx, d.gateway, rolesByNameKey, role.Name, role.ID); err != nil {
			d.restoreRole(ctx, &prev)
			return nil, err
		}
		d.bestEffort("drop old role name", dropName(ctx, d.gateway, rolesByNameKey, oldName, role.ID), zap.String("role", oldName))
		d.moveRoleUsers(ctx, oldName, role.Name)
	}

	d.rolePerms.Invalidate(oldName, role.Name)
	if renamed || activeChanged {
		// Users missing from the reverse index may still cache the old state.
		d.userRoles.Clear()
	}

	return role, nil
}

// DeleteRole removes a non-system role and cascades the removal to every assigned
// user. The record delete is authoritative; the cascade is best-effort.
func (d *Directory) DeleteRole(ctx context.Context, id string) error {
	role, err := d.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be deleted", ErrConflict, role.Name)
	}

	if err := d.gateway.Del(ctx, roleKey(role.ID)); err != nil {
		return err
	}

	members, err := d.gateway.SMembers(ctx, roleUsersKey(role.Name))
	d.bestEffort("read role members", err, zap.String("role", role.Name))
	for _, userID := range members {
		d.bestEffort("remove role from user",
			d.gateway.SRem(ctx, userRolesKey(userID), role.ID),
			zap.String("role", role.Name), zap.String("user_id", userID))
	}
	d.bestEffort("delete role members", d.gateway.Del(ctx, roleUsersKey(role.Name)), zap.String("role", role.Name))
	d.bestEffort("drop role name", dropName(ctx, d.gateway, rolesByNameKey, role.Name, role.ID), zap.String("role", role.Name))
	d.bestEffort("drop role id", removeID(ctx, d.gateway, rolesAllKey, role.ID), zap.String("role", role.Name))

	d.userRoles.Clear()
	d.rolePerms.Invalidate(role.Name)
	return nil
}

// ListRoles returns roles sorted by name, active only unless IncludeInactive.
func (d *Directory) ListRoles(ctx context.Context, opts ListRolesOptions) ([]*Role, error) {
	ids, err := readIDList(ctx, d.gateway, rolesAllKey)
	if err != nil {
		return nil, err
	}

	roles := make([]*Role, 0, len(ids))
	for _, id := range ids {
		role, err := d.GetRole(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !role.IsActive && !opts.IncludeInactive {
			continue
		}
		roles = append(roles, role)
	}

	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// CreatePermission stores a new permission with a unique name.
func (d *Directory) CreatePermission(ctx context.Context, in PermissionInput) (*Permission, error) {
	if err := d.check(in); err != nil {
		return nil, err
	}
	in = normalizePermission(in)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: permission needs a name or resource and action", ErrInvalidInput)
	}

	if _, err := d.GetPermissionByName(ctx, in.Name); err == nil {
		return nil, fmt.Errorf("%w: permission %q already exists", ErrConflict, in.Name)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := d.now()
	perm := &Permission{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Resource:    in.Resource,
		Action:      in.Action,
		IsSystem:    in.IsSystem,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := cache.SetObject(ctx, d.gateway, permissionKey(perm.ID), perm, 0); err != nil {
		return nil, err
	}
	if err := d.indexEntity(ctx, permissionsByNameKey, permissionsAllKey, perm.Name, perm.ID); err != nil {
		d.rollback(ctx, permissionKey(perm.ID))
		return nil, err
	}

	// Roles may reference the name already through an out-of-band write.
	d.rolePerms.Clear()
	return perm, nil
}

// normalizePermission fills Name from Resource and Action, or splits Name at its
// first dot when they are missing.
func normalizePermission(in PermissionInput) PermissionInput {
	if in.Name == "" && in.Resource != "" && in.Action != "" {
		in.Name = in.Resource + "." + in.Action
	}
	if in.Name != "" && (in.Resource == "" || in.Action == "") {
		if resource, action, ok := strings.Cut(in.Name, "."); ok {
			if in.Resource == "" {
				in.Resource = resource
			}
			if in.Action == "" {
				in.Action = action
			}
		}
	}
	return in
}

// GetPermission returns the permission with id.
func (d *Directory) GetPermission(ctx context.Context, id string) (*Permission, error) {
	perm, err := cache.GetObject[Permission](ctx, d.gateway, permissionKey(id))
	if err != nil {
		if cache.IsMiss(err) {
			return nil, fmt.Errorf("%w: permission %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &perm, nil
}

// GetPermissionByName resolves name through permissions:by_name.
func (d *Directory) GetPermissionByName(ctx context.Context, name string) (*Permission, error) {
	names, err := readNameIndex(ctx, d.gateway, permissionsByNameKey)
	if err != nil {
		return nil, err
	}
	id, ok := names[name]
	if !ok {
		return nil, fmt.Errorf("%w: permission %q", ErrNotFound, name)
	}
	return d.GetPermission(ctx, id)
}

// ListPermissions returns every permission sorted by name.
func (d *Directory) ListPermissions(ctx context.Context) ([]*Permission, error) {
	ids, err := readIDList(ctx, d.gateway, permissionsAllKey)
	if err != nil {
		return nil, err
	}

	perms := make([]*Permission, 0, len(ids))
	for _, id := range ids {
		perm, err := d.GetPermission(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		perms = append(perms, perm)
	}

	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

// resolvePermissionNames checks every name exists and returns them deduplicated in
// input order.
func (d *Directory) resolvePermissionNames(ctx context.Context, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	if len(names) == 0 {
		return out, nil
	}

	index, err := readNameIndex(ctx, d.gateway, permissionsByNameKey)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: permission %q", ErrNotFound, name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (d *Directory) indexEntity(ctx context.Context, byNameKey, allKey, name, id string) error {
	if err := putName(ctx, d.gateway, byNameKey, name, id); err != nil {
		return err
	}
	if err := appendID(ctx, d.gateway, allKey, id); err != nil {
		d.bestEffort("undo name index", dropName(ctx, d.gateway, byNameKey, name, id), zap.String("name", name))
		return err
	}
	return nil
}

// restoreRole rewrites prev after a rename whose name index could not be updated,
// so the record keeps matching roles:by_name. If that also fails the record and
// index disagree until the next successful rename; cached state is dropped either way.
func (d *Directory) restoreRole(ctx context.Context, prev *Role) {
	if err := cache.SetObject(ctx, d.gateway, roleKey(prev.ID), prev, 0); err != nil {
		d.logger.Error("rbac: restore role after failed rename",
			zap.String("role_id", prev.ID),
			zap.String("role", prev.Name),
			zap.Error(err),
		)
	}
	d.rolePerms.Clear()
	d.userRoles.Clear()
}

func (d *Directory) rollback(ctx context.Context, key string) {
	d.bestEffort("rollback record", d.gateway.Del(ctx, key), zap.String("key", key))
}

func (d *Directory) moveRoleUsers(ctx context.Context, oldName, newName string) {
	members, err := d.gateway.SMembers(ctx, roleUsersKey(oldName))
	if err != nil {
		d.bestEffort("read role members", err, zap.String("role", oldName))
		return
	}
	if len(members) > 0 {
		if err := d.gateway.SAdd(ctx, roleUsersKey(newName), members...); err != nil {
			d.bestEffort("move role members", err, zap.String("role", newName))
			return
		}
	}
	d.bestEffort("delete role members", d.gateway.Del(ctx, roleUsersKey(oldName)), zap.String("role", oldName))
}

// bestEffort logs err, if any, for a secondary effect that must not fail the caller.
func (d *Directory) bestEffort(op string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	d.logger.Warn("rbac: "+op+" failed", append(fields, zap.Error(err))...)
}
