// Package access holds the role set that gates privileged vault and strategy operations.
package access

import (
	"fmt"
	"sort"
	"sync"

	"github.com/elys-network/autocompounder/internal/types"
)

// Role names a privilege.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleStrategist Role = "strategist"
	RoleKeeper     Role = "keeper"
)

// Set maps roles to the accounts holding them. Safe for concurrent use.
type Set struct {
	mu      sync.RWMutex
	members map[Role]map[types.Account]struct{}
}

// NewSet creates a role set with the given admins.
func NewSet(admins ...types.Account) *Set {
	s := &Set{members: make(map[Role]map[types.Account]struct{})}
	for _, a := range admins {
		s.Grant(RoleAdmin, a)
	}
	return s
}

// Grant adds account to role. Granting an empty account is ignored.
func (s *Set) Grant(role Role, account types.Account) {
	if account.IsZero() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[role] == nil {
		s.members[role] = make(map[types.Account]struct{})
	}
	s.members[role][account] = struct{}{}
}

// Revoke removes account from role.
func (s *Set) Revoke(role Role, account types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[role], account)
}

// Has reports whether account holds role.
func (s *Set) Has(role Role, account types.Account) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[role][account]
	return ok
}

// Require returns nil when account holds at least one of roles, ErrNotAuthorized otherwise.
func (s *Set) Require(account types.Account, roles ...Role) error {
	for _, r := range roles {
		if s.Has(r, account) {
			return nil
		}
	}
	return fmt.Errorf("%q requires one of %v: %w", account, roles, types.ErrNotAuthorized)
}

// Members returns the accounts holding role, sorted.
func (s *Set) Members(role Role) []types.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Account, 0, len(s.members[role]))
	for a := range s.members[role] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
