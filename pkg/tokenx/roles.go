package tokenx

import (
	"encoding/json"
	"strings"
)

// Role is the canonical role representation. Every provider-specific shape is
// mapped to it by NormalizeRoles before it reaches the rest of the system.
type Role struct {
	Name string `json:"name"`
}

// rawRole covers the object shapes seen in the wild.
type rawRole struct {
	Name      string `json:"name"`
	Authority string `json:"authority"`
}

// NormalizeRoles converts a JSON array whose elements are bare strings,
// {"name": ...} objects or {"authority": ...} objects into canonical roles.
// Unknown or empty elements are skipped; a malformed document yields nil.
func NormalizeRoles(raw json.RawMessage) []Role {
	if len(raw) == 0 {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}

	roles := make([]Role, 0, len(elems))
	for _, e := range elems {
		if r, ok := normalizeRole(e); ok {
			roles = appendUnique(roles, r)
		}
	}
	return roles
}

func normalizeRole(e json.RawMessage) (Role, bool) {
	var s string
	if err := json.Unmarshal(e, &s); err == nil {
		s = strings.TrimSpace(s)
		return Role{Name: s}, s != ""
	}

	var obj rawRole
	if err := json.Unmarshal(e, &obj); err != nil {
		return Role{}, false
	}

	switch {
	case obj.Name != "":
		return Role{Name: obj.Name}, true
	case obj.Authority != "":
		return Role{Name: obj.Authority}, true
	default:
		return Role{}, false
	}
}

// RoleNames returns the names of roles in order.
func RoleNames(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.Name
	}
	return out
}

func appendUnique(dst []Role, src ...Role) []Role {
	for _, r := range src {
		dup := false
		for _, have := range dst {
			if have.Name == r.Name {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, r)
		}
	}
	return dst
}
