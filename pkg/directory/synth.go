package directory

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/glauth/ldap"

	"github.com/DABSquared/google-apps-ldap-server/pkg/upstream"
)

// Synthesized entries are protocol-shaped projections of provider
// records. Construction is pure and deterministic: the same upstream
// record always yields an attribute-for-attribute identical entry.
// Entries are never mutated after they are built; a rebuild produces a
// fresh entry rather than touching a cached one.

// Numeric uid/gid values are truncated to at most this many characters,
// because provider ids are longer than what 32-bit consumers of
// posixAccount attributes tolerate.
const maxIDLen = 10

// UserEntry maps a provider user onto a posixAccount/inetOrgPerson
// entry. The username is the local-part of the primary email. cn is set
// twice on purpose, once to the username and once to the display name,
// matching the provider convention. aliases may be nil when the alias
// fetch failed; the entry is then simply built without them.
func UserEntry(dn, username string, u *upstream.User, aliases []string) *ldap.Entry {
	attrs := []*ldap.EntryAttribute{
		{Name: "objectClass", Values: []string{"top", "organizationalPerson", "person", "inetOrgPerson", "posixAccount"}},
		{Name: "cn", Values: []string{username, u.FullName}},
		{Name: "uid", Values: []string{username}},
	}

	mail := append([]string{u.PrimaryEmail}, u.SecondaryEmails...)
	mail = append(mail, aliases...)
	attrs = append(attrs,
		&ldap.EntryAttribute{Name: "mail", Values: mail},
		&ldap.EntryAttribute{Name: "givenName", Values: []string{u.GivenName}},
		&ldap.EntryAttribute{Name: "sn", Values: []string{u.FamilyName}},
		&ldap.EntryAttribute{Name: "ou", Values: []string{"users"}},
		&ldap.EntryAttribute{Name: "uidNumber", Values: []string{truncateID(u.ID)}},
		&ldap.EntryAttribute{Name: "gidNumber", Values: []string{truncateID(u.ID)}},
		&ldap.EntryAttribute{Name: "homeDirectory", Values: []string{"/home/" + username}},
		&ldap.EntryAttribute{Name: "loginShell", Values: []string{"/bin/csh"}},
		&ldap.EntryAttribute{Name: "gecos", Values: []string{u.FullName}},
		&ldap.EntryAttribute{Name: "shadowLastChange", Values: []string{"1"}},
		&ldap.EntryAttribute{Name: "shadowMin", Values: []string{"0"}},
		&ldap.EntryAttribute{Name: "shadowMax", Values: []string{"999999"}},
		&ldap.EntryAttribute{Name: "shadowWarning", Values: []string{"0"}},
		&ldap.EntryAttribute{Name: "shadowInactive", Values: []string{"-1"}},
		&ldap.EntryAttribute{Name: "shadowExpire", Values: []string{"-1"}},
		&ldap.EntryAttribute{Name: "shadowFlag", Values: []string{"0"}},
	)

	// Last value wins when the provider returns several phones of the
	// same type.
	var mobile, work string
	for _, phone := range u.Phones {
		switch phone.Type {
		case "mobile":
			mobile = phone.Value
		case "work":
			work = phone.Value
		}
	}
	if mobile != "" {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "mobile", Values: []string{mobile}})
	}
	if work != "" {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "telephoneNumber", Values: []string{work}})
	}

	return &ldap.Entry{DN: dn, Attributes: attrs}
}

// GroupEntry maps a provider group onto a posixGroup entry. Members with
// an email contribute their local-part; a member record without one
// expands to every known user in the domain, duplicates and all (the
// historical fallback, kept for compatibility with existing
// deployments). allUsers is only consulted for that expansion.
func GroupEntry(dn, groupname string, g *upstream.Group, members []*upstream.Member, allUsers []*upstream.User) *ldap.Entry {
	attrs := []*ldap.EntryAttribute{
		{Name: "objectClass", Values: []string{"top", "posixGroup", "group"}},
		{Name: "gidNumber", Values: []string{GroupGID(g.ID)}},
		{Name: "cn", Values: []string{groupname}},
	}

	if g.Description != "" {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "description", Values: []string{g.Description}})
	}

	var memberUids []string
	for _, member := range members {
		if member.Email == "" {
			for _, user := range allUsers {
				memberUids = append(memberUids, localPart(user.PrimaryEmail))
			}
		} else {
			memberUids = append(memberUids, localPart(member.Email))
		}
	}
	if len(memberUids) > 0 {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "memberUid", Values: memberUids})
	}

	return &ldap.Entry{DN: dn, Attributes: attrs}
}

// GroupGID derives a numeric gid from the provider's opaque group id.
// Collisions are possible and accepted; global uniqueness is a non-goal.
func GroupGID(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	gid := int64(int32(h.Sum32()))
	if gid < 0 {
		gid = -gid
	}
	return truncateID(strconv.FormatInt(gid, 10))
}

func truncateID(id string) string {
	if len(id) > maxIDLen {
		return id[:maxIDLen]
	}
	return id
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
