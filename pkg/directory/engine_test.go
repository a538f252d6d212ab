package directory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/glauth/ldap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DABSquared/google-apps-ldap-server/pkg/namespace"
	"github.com/DABSquared/google-apps-ldap-server/pkg/upstream"
)

type fakeClient struct {
	users   []*upstream.User
	groups  []*upstream.Group
	members map[string][]*upstream.Member
	aliases map[string][]string

	listUsersErr  error
	listGroupsErr error
	aliasErr      error

	listUserCalls int
	getUserCalls  int
}

func (f *fakeClient) ListUsers(ctx context.Context) ([]*upstream.User, error) {
	f.listUserCalls++
	if f.listUsersErr != nil {
		return nil, f.listUsersErr
	}
	return f.users, nil
}

func (f *fakeClient) GetUser(ctx context.Context, login string) (*upstream.User, error) {
	f.getUserCalls++
	for _, u := range f.users {
		if u.PrimaryEmail == login {
			return u, nil
		}
	}
	return nil, upstream.ErrNotFound
}

func (f *fakeClient) ListUserAliases(ctx context.Context, login string) ([]string, error) {
	if f.aliasErr != nil {
		return nil, f.aliasErr
	}
	return f.aliases[login], nil
}

func (f *fakeClient) ListGroups(ctx context.Context) ([]*upstream.Group, error) {
	if f.listGroupsErr != nil {
		return nil, f.listGroupsErr
	}
	return f.groups, nil
}

func (f *fakeClient) GetGroup(ctx context.Context, key string) (*upstream.Group, error) {
	for _, g := range f.groups {
		if g.Email == key {
			return g, nil
		}
	}
	return nil, upstream.ErrNotFound
}

func (f *fakeClient) ListGroupMembers(ctx context.Context, groupKey string) ([]*upstream.Member, error) {
	return f.members[groupKey], nil
}

func (f *fakeClient) MailLogin(ctx context.Context, fullLogin, secret string) error {
	return nil
}

func newTestEngine(t *testing.T, client upstream.Client) *Engine {
	t.Helper()
	ns, err := namespace.New("example.com")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := NewEngine(logger, ns, client, 300)
	require.NoError(t, err)
	return engine
}

func aliceClient() *fakeClient {
	return &fakeClient{
		users: []*upstream.User{{
			ID:           "12345678901",
			PrimaryEmail: "alice@example.com",
			FullName:     "Alice A",
			GivenName:    "Alice",
			FamilyName:   "A",
		}},
		aliases: map[string][]string{},
		members: map[string][]*upstream.Member{},
	}
}

func TestOneLevelOnRootReturnsContainers(t *testing.T) {
	engine := newTestEngine(t, aliceClient())

	entries, err := engine.Search(context.Background(), "dc=example,dc=com", ldap.ScopeSingleLevel, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ou=groups,dc=example,dc=com", entries[0].DN)
	assert.Equal(t, "ou=users,dc=example,dc=com", entries[1].DN)
}

func TestOneLevelUsersWildcard(t *testing.T) {
	client := aliceClient()
	engine := newTestEngine(t, client)

	entries, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "(uid=*)")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "cn=alice,ou=users,dc=example,dc=com", entry.DN)
	assert.Equal(t, "alice", entry.GetAttributeValue("uid"))
	assert.Contains(t, entry.GetAttributeValues("mail"), "alice@example.com")
	assert.Equal(t, "1234567890", entry.GetAttributeValue("uidNumber"))
	assert.Equal(t, 1, client.listUserCalls)
}

func TestOneLevelUsersLookupQualifiesBareUID(t *testing.T) {
	client := aliceClient()
	engine := newTestEngine(t, client)

	entries, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "(uid=alice)")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, client.getUserCalls)
	assert.Zero(t, client.listUserCalls)
}

func TestOneLevelUsersSubstringListsForPostFiltering(t *testing.T) {
	client := aliceClient()
	client.users = append(client.users, &upstream.User{
		ID:           "22222222222",
		PrimaryEmail: "bob@example.com",
		FullName:     "Bob B",
	})
	engine := newTestEngine(t, client)

	// A substring match cannot be pushed upstream as a lookup; the full
	// population is served and the protocol layer narrows it.
	entries, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "(uid=bo*)")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, client.listUserCalls)
	assert.Zero(t, client.getUserCalls)
}

func TestOneLevelUsersLookupMissIsEmpty(t *testing.T) {
	engine := newTestEngine(t, aliceClient())

	entries, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "(uid=nobody)")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnsupportedFilterShortCircuits(t *testing.T) {
	client := aliceClient()
	engine := newTestEngine(t, client)

	entries, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "(uidNumber>=1000)")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, client.listUserCalls)
	assert.Zero(t, client.getUserCalls)
}

func TestExactScopeIsCacheOnly(t *testing.T) {
	client := aliceClient()
	engine := newTestEngine(t, client)

	dn := "cn=alice,ou=users,dc=example,dc=com"

	entries, err := engine.Search(context.Background(), dn, ldap.ScopeBaseObject, "")
	require.NoError(t, err)
	assert.Empty(t, entries, "a cache miss must not trigger an upstream call")
	assert.Zero(t, client.getUserCalls)

	// Populate via one-level traversal, then the exact search hits.
	_, err = engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "(uid=alice)")
	require.NoError(t, err)

	entries, err = engine.Search(context.Background(), dn, ldap.ScopeBaseObject, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dn, entries[0].DN)
}

func TestSubtreeCollapsesToOneLevel(t *testing.T) {
	engine := newTestEngine(t, aliceClient())

	oneLevel, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "")
	require.NoError(t, err)
	subtree, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeWholeSubtree, "")
	require.NoError(t, err)

	assert.Equal(t, oneLevel, subtree)
}

func TestOneLevelGroups(t *testing.T) {
	client := aliceClient()
	client.groups = []*upstream.Group{{ID: "g-1", Email: "eng@example.com", Description: "Engineering"}}
	client.members["g-1"] = []*upstream.Member{{Email: "alice@example.com"}}
	engine := newTestEngine(t, client)

	entries, err := engine.Search(context.Background(), "ou=groups,dc=example,dc=com", ldap.ScopeSingleLevel, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cn=eng,ou=groups,dc=example,dc=com", entries[0].DN)
	assert.Equal(t, []string{"alice"}, entries[0].GetAttributeValues("memberUid"))
}

func TestListFailureDegradesToEmpty(t *testing.T) {
	client := aliceClient()
	client.listUsersErr = errors.New("quota exceeded")
	engine := newTestEngine(t, client)

	entries, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "")
	assert.Error(t, err)
	assert.Empty(t, entries)
}

func TestAliasFailureDegradesTheEntry(t *testing.T) {
	client := aliceClient()
	client.aliasErr = errors.New("aliases unavailable")
	engine := newTestEngine(t, client)

	entries, err := engine.Search(context.Background(), "ou=users,dc=example,dc=com", ldap.ScopeSingleLevel, "(uid=alice)")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"alice@example.com"}, entries[0].GetAttributeValues("mail"))
}

func TestHasEntryStructuralNodes(t *testing.T) {
	engine := newTestEngine(t, aliceClient())
	ctx := context.Background()

	assert.True(t, engine.HasEntry(ctx, "dc=example,dc=com"))
	assert.True(t, engine.HasEntry(ctx, "ou=groups,dc=example,dc=com"))
	assert.True(t, engine.HasEntry(ctx, "ou=users,dc=example,dc=com"))
	assert.False(t, engine.HasEntry(ctx, "dc=other,dc=com"))
	assert.False(t, engine.HasEntry(ctx, "ou=machines,dc=example,dc=com"))
}

func TestHasEntrySynthesizesUserLeaf(t *testing.T) {
	engine := newTestEngine(t, aliceClient())
	ctx := context.Background()
	dn := "cn=alice,ou=users,dc=example,dc=com"

	require.Nil(t, engine.Lookup(dn))
	assert.True(t, engine.HasEntry(ctx, dn))

	// Synthesis cached the entry as a side effect.
	assert.NotNil(t, engine.Lookup(dn))
}

func TestHasEntryNotFoundLeavesCacheUnmodified(t *testing.T) {
	engine := newTestEngine(t, aliceClient())
	ctx := context.Background()
	dn := "cn=ghost,ou=users,dc=example,dc=com"

	assert.False(t, engine.HasEntry(ctx, dn))
	assert.Nil(t, engine.Lookup(dn))
}

func TestHasEntrySynthesizesGroupLeaf(t *testing.T) {
	client := aliceClient()
	client.groups = []*upstream.Group{{ID: "g-1", Email: "eng@example.com"}}
	engine := newTestEngine(t, client)

	assert.True(t, engine.HasEntry(context.Background(), "cn=eng,ou=groups,dc=example,dc=com"))
	assert.NotNil(t, engine.Lookup("cn=eng,ou=groups,dc=example,dc=com"))
}

func TestLookupIsCacheOnly(t *testing.T) {
	client := aliceClient()
	engine := newTestEngine(t, client)

	assert.Nil(t, engine.Lookup("cn=alice,ou=users,dc=example,dc=com"))
	assert.Zero(t, client.getUserCalls)

	// Scaffold entries are present from construction.
	assert.NotNil(t, engine.Lookup("dc=example,dc=com"))
}
