package auth

import (
	"fmt"
	"sync"
)

// RBACManager implements role-based access control. Roles hold permission
// strings and may inherit from parent roles; users are assigned any number of
// roles. Role and assignment tables are mutated under an internal lock and
// read concurrently.
//
// Inheritance is expected to form a DAG. The traversal is cycle-safe (a
// visited set stops repeat visits) but the manager does not reject cycles;
// keeping the relation acyclic is the caller's responsibility.
type RBACManager struct {
	mu        sync.RWMutex
	roles     map[string]*Role
	userRoles map[string][]string
}

// Role is a named set of permission strings with optional parent roles
type Role struct {
	Name        string
	Permissions []string
	ParentRoles []string
}

// NewRBACManager creates an empty RBAC manager
func NewRBACManager() *RBACManager {
	return &RBACManager{
		roles:     make(map[string]*Role),
		userRoles: make(map[string][]string),
	}
}

// CreateRole creates a new role with no permissions
func (m *RBACManager) CreateRole(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return fmt.Errorf("role name must not be empty")
	}
	if _, exists := m.roles[name]; exists {
		return fmt.Errorf("role %s already exists", name)
	}

	m.roles[name] = &Role{Name: name}
	return nil
}

// AssignPermissionToRole grants a permission string to a role. A stored
// permission of exactly "*" matches everything; a permission ending in ":*"
// matches any requested permission sharing that prefix.
func (m *RBACManager) AssignPermissionToRole(roleName, permission string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, exists := m.roles[roleName]
	if !exists {
		return fmt.Errorf("role %s does not exist", roleName)
	}

	for _, p := range role.Permissions {
		if p == permission {
			return nil
		}
	}
	role.Permissions = append(role.Permissions, permission)
	return nil
}

// AddRoleInheritance makes child inherit every permission reachable from
// parent. Grants flow from parent down to child, never the reverse.
func (m *RBACManager) AddRoleInheritance(childName, parentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, exists := m.roles[childName]
	if !exists {
		return fmt.Errorf("role %s does not exist", childName)
	}
	if _, exists := m.roles[parentName]; !exists {
		return fmt.Errorf("role %s does not exist", parentName)
	}

	for _, p := range child.ParentRoles {
		if p == parentName {
			return nil
		}
	}
	child.ParentRoles = append(child.ParentRoles, parentName)
	return nil
}

// AssignUserToRole adds a role to a user's assignment set
func (m *RBACManager) AssignUserToRole(userID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.roles[roleName]; !exists {
		return fmt.Errorf("role %s does not exist", roleName)
	}

	roles := m.userRoles[userID]
	for _, r := range roles {
		if r == roleName {
			return nil
		}
	}
	m.userRoles[userID] = append(roles, roleName)
	return nil
}

// RemoveUserFromRole removes a role from a user's assignment set
func (m *RBACManager) RemoveUserFromRole(userID, roleName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roles := m.userRoles[userID]
	filtered := roles[:0]
	for _, r := range roles {
		if r != roleName {
			filtered = append(filtered, r)
		}
	}
	m.userRoles[userID] = filtered
}

// GetUserRoles returns a copy of the user's assigned roles
func (m *RBACManager) GetUserRoles(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.userRoles[userID]...)
}

// CheckUserPermission reports whether the user's resolved permission set
// satisfies the requested permission. Resolution is the transitive union of
// the user's roles' own permissions plus all ancestor roles' permissions.
func (m *RBACManager) CheckUserPermission(userID, permission string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, roleName := range m.userRoles[userID] {
		if m.roleHasPermission(roleName, permission, make(map[string]bool)) {
			return true
		}
	}
	return false
}

// roleHasPermission checks one role and its ancestors. The visited set makes
// the traversal terminate even if a caller introduced a cycle.
func (m *RBACManager) roleHasPermission(roleName, permission string, visited map[string]bool) bool {
	if visited[roleName] {
		return false
	}
	visited[roleName] = true

	role, exists := m.roles[roleName]
	if !exists {
		return false
	}

	for _, perm := range role.Permissions {
		if matchPermission(perm, permission) {
			return true
		}
	}

	for _, parent := range role.ParentRoles {
		if m.roleHasPermission(parent, permission, visited) {
			return true
		}
	}
	return false
}

// matchPermission matches a stored permission against a requested one.
// "*" matches everything; "tools:*" matches "tools:read", "tools:write", etc.
func matchPermission(pattern, permission string) bool {
	if pattern == "*" {
		return true
	}
	if len(pattern) > 1 && pattern[len(pattern)-1] == '*' && pattern[len(pattern)-2] == ':' {
		prefix := pattern[:len(pattern)-1]
		return len(permission) >= len(prefix) && permission[:len(prefix)] == prefix
	}
	return pattern == permission
}
