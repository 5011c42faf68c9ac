package permissions

import (
	"sort"
	"strings"

	"github.com/atiff-automation/QR-Eat-sub000/internal/authkit"
)

// Set is an already-computed permission set. All checks are pure membership
// tests; nothing here touches storage.
type Set map[string]struct{}

// NewSet builds a Set from permission keys, normalising case and whitespace.
func NewSet(perms []string) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether perm is granted.
func (s Set) Has(perm string) bool {
	_, ok := s[strings.ToLower(perm)]
	return ok
}

// HasAny reports whether at least one of perms is granted.
func (s Set) HasAny(perms ...string) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of perms is granted.
func (s Set) HasAll(perms ...string) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// CanAccess reports whether the resource:action capability is granted.
func (s Set) CanAccess(resource, action string) bool {
	return s.Has(resource + ":" + action)
}

// Require returns a PermissionDenied error when perm is not granted.
func (s Set) Require(perm string) error {
	if s.Has(perm) {
		return nil
	}
	return authkit.PermissionDenied(perm, "")
}

// RequireResource returns a PermissionDenied error carrying the resource when
// the resource:action capability is not granted.
func (s Set) RequireResource(resource, action string) error {
	if s.CanAccess(resource, action) {
		return nil
	}
	return authkit.PermissionDenied(resource+":"+action, resource)
}

// List returns the granted keys in sorted order.
func (s Set) List() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
