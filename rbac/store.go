package rbac

import (
	"context"

	"github.com/MrEthical07/goAuthz/cache"
)

const (
	rolesByNameKey       = "roles:by_name"
	rolesAllKey          = "roles:all"
	permissionsByNameKey = "permissions:by_name"
	permissionsAllKey    = "permissions:all"
)

func roleKey(id string) string { return "role:" + id }

func permissionKey(id string) string { return "permission:" + id }

func userRolesKey(userID string) string { return "user:" + userID + ":roles" }

func roleUsersKey(roleName string) string { return "role:" + roleName + ":users" }

// The name maps and id lists below are updated with read-modify-write and no version
// check. Concurrent administrative writers can lose an update; the per-id records stay
// authoritative.

func readNameIndex(ctx context.Context, g cache.Gateway, key string) (map[string]string, error) {
	m, err := cache.GetObject[map[string]string](ctx, g, key)
	if err != nil {
		if cache.IsMiss(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func readIDList(ctx context.Context, g cache.Gateway, key string) ([]string, error) {
	ids, err := cache.GetObject[[]string](ctx, g, key)
	if err != nil {
		if cache.IsMiss(err) {
			return []string{}, nil
		}
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func putName(ctx context.Context, g cache.Gateway, key, name, id string) error {
	m, err := readNameIndex(ctx, g, key)
	if err != nil {
		return err
	}
	m[name] = id
	return cache.SetObject(ctx, g, key, m, 0)
}

// dropName removes name only while it still maps to id.
func dropName(ctx context.Context, g cache.Gateway, key, name, id string) error {
	m, err := readNameIndex(ctx, g, key)
	if err != nil {
		return err
	}
	if m[name] != id {
		return nil
	}
	delete(m, name)
	return cache.SetObject(ctx, g, key, m, 0)
}

func appendID(ctx context.Context, g cache.Gateway, key, id string) error {
	ids, err := readIDList(ctx, g, key)
	if err != nil {
		return err
	}
	for _, cur := range ids {
		if cur == id {
			return nil
		}
	}
	return cache.SetObject(ctx, g, key, append(ids, id), 0)
}

func removeID(ctx context.Context, g cache.Gateway, key, id string) error {
	ids, err := readIDList(ctx, g, key)
	if err != nil {
		return err
	}
	out := make([]string, 0, len(ids))
	for _, cur := range ids {
		if cur != id {
			out = append(out, cur)
		}
	}
	return cache.SetObject(ctx, g, key, out, 0)
}
