// Package namespace models the virtual LDAP tree exposed for a Google
// Apps domain: a two-component root derived from the domain labels, and
// the ou=groups and ou=users containers one level below it. Everything
// here is pure computation over DN strings; no I/O happens.
package namespace

import (
	"fmt"
	"strings"
)

// Kind classifies a DN relative to the virtual tree.
type Kind int

const (
	Unrecognized Kind = iota
	Root
	GroupsContainer
	UsersContainer
	UserLeaf
	GroupLeaf
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case GroupsContainer:
		return "groups-container"
	case UsersContainer:
		return "users-container"
	case UserLeaf:
		return "user-leaf"
	case GroupLeaf:
		return "group-leaf"
	}
	return "unrecognized"
}

// Namespace holds the three structural DNs for a configured domain.
type Namespace struct {
	Domain   string
	RootDN   string // dc=example,dc=com
	GroupsDN string // ou=groups,dc=example,dc=com
	UsersDN  string // ou=users,dc=example,dc=com
}

// New derives the structural DNs from a two-label dotted domain.
func New(domain string) (*Namespace, error) {
	labels := strings.Split(strings.ToLower(domain), ".")
	if len(labels) != 2 || labels[0] == "" || labels[1] == "" {
		return nil, fmt.Errorf("domain %q must have exactly two dot-separated labels", domain)
	}

	root := fmt.Sprintf("dc=%s,dc=%s", labels[0], labels[1])
	return &Namespace{
		Domain:   strings.ToLower(domain),
		RootDN:   root,
		GroupsDN: "ou=groups," + root,
		UsersDN:  "ou=users," + root,
	}, nil
}

// Normalize lowercases a DN and strips whitespace around RDN separators
// so that cache keys and structural comparisons are stable.
func Normalize(dn string) string {
	parts := strings.Split(strings.ToLower(dn), ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, ",")
}

// Depth counts the RDN components of a DN.
func Depth(dn string) int {
	if dn == "" {
		return 0
	}
	return strings.Count(dn, ",") + 1
}

// Classify places a DN in the virtual tree. The leaf name (the value of
// the first RDN) is returned for UserLeaf and GroupLeaf. An unrecognized
// DN is not an error: callers treat it as "no such entry".
func (n *Namespace) Classify(dn string) (Kind, string) {
	dn = Normalize(dn)

	switch Depth(dn) {
	case 2:
		if dn == n.RootDN {
			return Root, ""
		}
	case 3:
		switch dn {
		case n.GroupsDN:
			return GroupsContainer, ""
		case n.UsersDN:
			return UsersContainer, ""
		}
	case 4:
		name, parent, ok := splitLeaf(dn)
		if !ok {
			break
		}
		switch parent {
		case n.UsersDN:
			return UserLeaf, name
		case n.GroupsDN:
			return GroupLeaf, name
		}
	}
	return Unrecognized, ""
}

// UserDN returns the DN of a user leaf for a bare (local-part) name.
func (n *Namespace) UserDN(name string) string {
	return fmt.Sprintf("cn=%s,%s", strings.ToLower(name), n.UsersDN)
}

// GroupDN returns the DN of a group leaf for a bare (local-part) name.
func (n *Namespace) GroupDN(name string) string {
	return fmt.Sprintf("cn=%s,%s", strings.ToLower(name), n.GroupsDN)
}

func splitLeaf(dn string) (name string, parent string, ok bool) {
	idx := strings.Index(dn, ",")
	if idx < 0 {
		return "", "", false
	}
	rdn := dn[:idx]
	if !strings.HasPrefix(rdn, "cn=") {
		return "", "", false
	}
	name = strings.TrimPrefix(rdn, "cn=")
	if name == "" {
		return "", "", false
	}
	return name, dn[idx+1:], true
}
