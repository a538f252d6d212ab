package directory

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DABSquared/google-apps-ldap-server/pkg/upstream"
)

func testUser() *upstream.User {
	return &upstream.User{
		ID:           "12345678901",
		PrimaryEmail: "alice@example.com",
		FullName:     "Alice A",
		GivenName:    "Alice",
		FamilyName:   "A",
		Phones: []upstream.Phone{
			{Type: "work", Value: "111"},
			{Type: "mobile", Value: "222"},
			{Type: "mobile", Value: "333"},
			{Type: "home", Value: "444"},
		},
		SecondaryEmails: []string{"alice.a@example.com"},
	}
}

func TestUserEntry(t *testing.T) {
	entry := UserEntry("cn=alice,ou=users,dc=example,dc=com", "alice", testUser(), []string{"ali@example.com"})

	assert.Equal(t, "cn=alice,ou=users,dc=example,dc=com", entry.DN)
	assert.ElementsMatch(t,
		[]string{"top", "organizationalPerson", "person", "inetOrgPerson", "posixAccount"},
		entry.GetAttributeValues("objectClass"))

	// cn carries both the local-part and the display name, in that order.
	assert.Equal(t, []string{"alice", "Alice A"}, entry.GetAttributeValues("cn"))
	assert.Equal(t, "alice", entry.GetAttributeValue("uid"))

	// mail order: primary, secondary emails, aliases.
	assert.Equal(t,
		[]string{"alice@example.com", "alice.a@example.com", "ali@example.com"},
		entry.GetAttributeValues("mail"))

	// The 11-digit provider id is truncated to 10 characters.
	assert.Equal(t, "1234567890", entry.GetAttributeValue("uidNumber"))
	assert.Equal(t, "1234567890", entry.GetAttributeValue("gidNumber"))

	assert.Equal(t, "/home/alice", entry.GetAttributeValue("homeDirectory"))
	assert.Equal(t, "/bin/csh", entry.GetAttributeValue("loginShell"))
	assert.Equal(t, "Alice A", entry.GetAttributeValue("gecos"))

	// shadow defaults
	assert.Equal(t, "1", entry.GetAttributeValue("shadowLastChange"))
	assert.Equal(t, "0", entry.GetAttributeValue("shadowMin"))
	assert.Equal(t, "999999", entry.GetAttributeValue("shadowMax"))
	assert.Equal(t, "0", entry.GetAttributeValue("shadowWarning"))
	assert.Equal(t, "-1", entry.GetAttributeValue("shadowInactive"))
	assert.Equal(t, "-1", entry.GetAttributeValue("shadowExpire"))
	assert.Equal(t, "0", entry.GetAttributeValue("shadowFlag"))

	// Last value wins per phone type; unknown types are dropped.
	assert.Equal(t, "333", entry.GetAttributeValue("mobile"))
	assert.Equal(t, "111", entry.GetAttributeValue("telephoneNumber"))
}

func TestUserEntryWithoutAliases(t *testing.T) {
	entry := UserEntry("cn=alice,ou=users,dc=example,dc=com", "alice", testUser(), nil)

	assert.Equal(t,
		[]string{"alice@example.com", "alice.a@example.com"},
		entry.GetAttributeValues("mail"))
}

func TestUserEntryIsDeterministic(t *testing.T) {
	first := UserEntry("cn=alice,ou=users,dc=example,dc=com", "alice", testUser(), []string{"ali@example.com"})
	second := UserEntry("cn=alice,ou=users,dc=example,dc=com", "alice", testUser(), []string{"ali@example.com"})

	assert.Equal(t, first, second)
}

func TestGroupEntry(t *testing.T) {
	group := &upstream.Group{ID: "g-42", Email: "eng@example.com", Description: "Engineering"}
	members := []*upstream.Member{{Email: "alice@example.com"}, {Email: "bob@example.com"}}

	entry := GroupEntry("cn=eng,ou=groups,dc=example,dc=com", "eng", group, members, nil)

	assert.ElementsMatch(t, []string{"top", "posixGroup", "group"}, entry.GetAttributeValues("objectClass"))
	assert.Equal(t, "eng", entry.GetAttributeValue("cn"))
	assert.Equal(t, "Engineering", entry.GetAttributeValue("description"))
	assert.Equal(t, []string{"alice", "bob"}, entry.GetAttributeValues("memberUid"))

	gid := entry.GetAttributeValue("gidNumber")
	assert.LessOrEqual(t, len(gid), 10)
	n, err := strconv.ParseInt(gid, 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(0))

	// Same provider id, same gid.
	again := GroupEntry("cn=eng,ou=groups,dc=example,dc=com", "eng", group, members, nil)
	assert.Equal(t, gid, again.GetAttributeValue("gidNumber"))
}

func TestGroupEntryOmitsEmptyDescription(t *testing.T) {
	group := &upstream.Group{ID: "g-42", Email: "eng@example.com"}

	entry := GroupEntry("cn=eng,ou=groups,dc=example,dc=com", "eng", group, nil, nil)

	for _, attr := range entry.Attributes {
		assert.NotEqual(t, "description", attr.Name)
	}
	for _, attr := range entry.Attributes {
		assert.NotEqual(t, "memberUid", attr.Name)
	}
}

func TestGroupEntryExpandsMemberlessRecords(t *testing.T) {
	group := &upstream.Group{ID: "g-42", Email: "everyone@example.com"}
	members := []*upstream.Member{
		{Email: "alice@example.com"},
		{Email: ""}, // expands to every known user
	}
	allUsers := []*upstream.User{
		{PrimaryEmail: "alice@example.com"},
		{PrimaryEmail: "bob@example.com"},
	}

	entry := GroupEntry("cn=everyone,ou=groups,dc=example,dc=com", "everyone", group, members, allUsers)

	// alice appears twice: once directly, once via the expansion.
	// Duplicates are deliberately not removed.
	assert.Equal(t, []string{"alice", "alice", "bob"}, entry.GetAttributeValues("memberUid"))
}
