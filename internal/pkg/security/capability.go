package security

import (
	"sort"
	"strings"
)

// Capability is a single permission checked at the HTTP boundary.
type Capability string

const (
	CapPaymentsRead       Capability = "payments:read"
	CapPaymentsWrite      Capability = "payments:write"
	CapPaymentsRefund     Capability = "payments:refund"
	CapSubscriptionsRead  Capability = "subscriptions:read"
	CapSubscriptionsWrite Capability = "subscriptions:write"
	// CapSubscriptionsExempt allows granting subscriptions without a charge.
	CapSubscriptionsExempt Capability = "subscriptions:exempt"
	CapAdminStats          Capability = "admin:stats"
)

// Role is a named bundle of capabilities configured per API key.
type Role string

const (
	RoleClient  Role = "client"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

var roleCapabilities = map[Role][]Capability{
	RoleClient: {
		CapPaymentsRead, CapPaymentsWrite,
		CapSubscriptionsRead, CapSubscriptionsWrite,
	},
	RoleSupport: {
		CapPaymentsRead, CapPaymentsWrite, CapPaymentsRefund,
		CapSubscriptionsRead, CapSubscriptionsWrite,
	},
	RoleAdmin: {
		CapPaymentsRead, CapPaymentsWrite, CapPaymentsRefund,
		CapSubscriptionsRead, CapSubscriptionsWrite, CapSubscriptionsExempt,
		CapAdminStats,
	},
}

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities in stable order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseRole accepts a role name case-insensitively.
func ParseRole(name string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	_, ok := roleCapabilities[r]
	return r, ok
}

// CapabilitiesFor returns the capability set of role; unknown roles get none.
func CapabilitiesFor(role Role) CapabilitySet {
	return NewCapabilitySet(roleCapabilities[role]...)
}

// Allowed is the authorization predicate: every required capability must be
// present. No requirement means allowed.
func Allowed(required []Capability, have CapabilitySet) bool {
	for _, c := range required {
		if !have.Has(c) {
			return false
		}
	}
	return true
}
