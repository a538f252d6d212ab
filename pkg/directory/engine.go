// Package directory synthesizes an LDAP namespace for a Google Apps
// domain on demand. Nothing is stored locally: leaf entries are built
// from provider records as queries arrive and kept in a bounded LRU
// cache keyed by normalized DN.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glauth/ldap"

	"github.com/DABSquared/google-apps-ldap-server/pkg/cache"
	"github.com/DABSquared/google-apps-ldap-server/pkg/namespace"
	"github.com/DABSquared/google-apps-ldap-server/pkg/upstream"
)

// Engine answers exact, one-level and subtree queries over the virtual
// tree. It exclusively owns the entry cache and the namespace model; the
// upstream client is a shared stateless collaborator.
//
// Lookup is cache-only and never fetches; Search with one-level scope is
// the materializing operation. Subtree scope collapses to one level
// because users and groups are leaves.
type Engine struct {
	log    *slog.Logger
	ns     *namespace.Namespace
	cache  *cache.EntryCache
	client upstream.Client

	rootEntry   *ldap.Entry
	groupsEntry *ldap.Entry
	usersEntry  *ldap.Entry
}

// NewEngine seeds the cache with the three scaffold entries. Those are
// not pinned: the capacity (validated at config time) is assumed to
// exceed the live working set, so normal traffic never evicts them.
func NewEngine(logger *slog.Logger, ns *namespace.Namespace, client upstream.Client, cacheSize int) (*Engine, error) {
	entryCache, err := cache.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create entry cache: %w", err)
	}

	e := &Engine{
		log:    logger,
		ns:     ns,
		cache:  entryCache,
		client: client,
	}

	dc, _, _ := strings.Cut(ns.Domain, ".")
	e.rootEntry = &ldap.Entry{DN: ns.RootDN, Attributes: []*ldap.EntryAttribute{
		{Name: "objectClass", Values: []string{"top", "domain", "dcObject"}},
		{Name: "dc", Values: []string{dc}},
		{Name: "description", Values: []string{"Google Domain"}},
	}}
	e.groupsEntry = &ldap.Entry{DN: ns.GroupsDN, Attributes: []*ldap.EntryAttribute{
		{Name: "objectClass", Values: []string{"top", "organizationalUnit"}},
		{Name: "ou", Values: []string{"groups"}},
		{Name: "description", Values: []string{"Google Groups"}},
	}}
	e.usersEntry = &ldap.Entry{DN: ns.UsersDN, Attributes: []*ldap.EntryAttribute{
		{Name: "objectClass", Values: []string{"top", "organizationalUnit"}},
		{Name: "ou", Values: []string{"users"}},
		{Name: "description", Values: []string{"Google Users"}},
	}}

	e.cache.Put(ns.RootDN, e.rootEntry)
	e.cache.Put(ns.GroupsDN, e.groupsEntry)
	e.cache.Put(ns.UsersDN, e.usersEntry)

	return e, nil
}

// Namespace exposes the structural DNs to the protocol handler.
func (e *Engine) Namespace() *namespace.Namespace {
	return e.ns
}

// CachedEntries reports the live cache size, for the stats endpoint.
func (e *Engine) CachedEntries() int {
	return e.cache.Len()
}

// Search dispatches on scope. Entries synthesized before a container
// fault are returned alongside the error so the caller can decide to
// serve the partial result.
func (e *Engine) Search(ctx context.Context, baseDN string, scope int, filter string) ([]*ldap.Entry, error) {
	e.log.Debug("search", "basedn", baseDN, "scope", scope, "filter", filter)

	switch scope {
	case ldap.ScopeBaseObject:
		return e.findObject(baseDN), nil
	case ldap.ScopeSingleLevel:
		return e.findOneLevel(ctx, baseDN, filter)
	case ldap.ScopeWholeSubtree:
		// Users and groups are leaves; there is never more than one
		// level below a container.
		return e.findOneLevel(ctx, baseDN, filter)
	}
	return nil, nil
}

// Lookup is a read accessor for already-materialized entries. A miss is
// not a fault and triggers no upstream call.
func (e *Engine) Lookup(dn string) *ldap.Entry {
	entry, ok := e.cache.Get(dn)
	if !ok {
		e.log.Debug("lookup: no cached entry", "dn", dn)
		return nil
	}
	return entry
}

// HasEntry checks existence. Structural DNs answer from the namespace
// model; a leaf DN triggers an on-demand synthesis attempt whose result
// is cached as a side effect. A provider not-found is a plain false.
func (e *Engine) HasEntry(ctx context.Context, dn string) bool {
	if e.cache.Contains(dn) {
		return true
	}

	kind, name := e.ns.Classify(dn)
	switch kind {
	case namespace.Root:
		e.cache.Put(e.ns.RootDN, e.rootEntry)
		return true
	case namespace.GroupsContainer:
		e.cache.Put(e.ns.GroupsDN, e.groupsEntry)
		return true
	case namespace.UsersContainer:
		e.cache.Put(e.ns.UsersDN, e.usersEntry)
		return true
	case namespace.UserLeaf:
		if _, err := e.userEntry(ctx, name, nil); err != nil {
			e.logMiss("user", name, err)
			return false
		}
		return true
	case namespace.GroupLeaf:
		if _, err := e.groupEntry(ctx, name, nil); err != nil {
			e.logMiss("group", name, err)
			return false
		}
		return true
	}
	return false
}

// Preload warms the cache with the full user and group population, the
// way the original deployment primed its partition at startup. Failures
// are logged and non-fatal: the cache fills lazily either way.
func (e *Engine) Preload(ctx context.Context) {
	users, err := e.listUserEntries(ctx)
	if err != nil {
		e.log.Warn("preload: user listing failed", "err", err)
	}
	groups, err := e.listGroupEntries(ctx)
	if err != nil {
		e.log.Warn("preload: group listing failed", "err", err)
	}
	e.log.Info("preload complete", "users", len(users), "groups", len(groups))
}

func (e *Engine) findObject(dn string) []*ldap.Entry {
	if entry, ok := e.cache.Get(dn); ok {
		return []*ldap.Entry{entry}
	}
	// Exact-scope misses never fetch: population happens through
	// one-level traversal or existence checks.
	return nil
}

func (e *Engine) findOneLevel(ctx context.Context, baseDN, filter string) ([]*ldap.Entry, error) {
	kind, _ := e.ns.Classify(baseDN)
	switch kind {
	case namespace.Root:
		return []*ldap.Entry{e.groupsEntry, e.usersEntry}, nil
	case namespace.GroupsContainer:
		return e.listGroupEntries(ctx)
	case namespace.UsersContainer:
		return e.findUsers(ctx, filter)
	}
	e.log.Debug("one-level search outside the tree", "basedn", baseDN)
	return nil, nil
}

func (e *Engine) findUsers(ctx context.Context, filter string) ([]*ldap.Entry, error) {
	action, key := EvaluateUserFilter(filter)
	e.log.Debug("users filter classified", "filter", filter, "action", action.String(), "key", key)

	switch action {
	case FilterNoMatch:
		return nil, nil
	case FilterLookupOne:
		if !strings.Contains(key, "@") {
			key = key + "@" + e.ns.Domain
		}
		user, err := e.client.GetUser(ctx, key)
		if err != nil {
			if errors.Is(err, upstream.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("user lookup %s: %w", key, err)
		}
		entry, err := e.userEntry(ctx, localPart(user.PrimaryEmail), user)
		if err != nil {
			return nil, err
		}
		return []*ldap.Entry{entry}, nil
	}
	return e.listUserEntries(ctx)
}

func (e *Engine) listUserEntries(ctx context.Context) ([]*ldap.Entry, error) {
	users, err := e.client.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("user listing: %w", err)
	}

	entries := make([]*ldap.Entry, 0, len(users))
	for _, user := range users {
		entry, err := e.userEntry(ctx, localPart(user.PrimaryEmail), user)
		if err != nil {
			e.log.Warn("skipping user entry", "user", user.PrimaryEmail, "err", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e *Engine) listGroupEntries(ctx context.Context) ([]*ldap.Entry, error) {
	groups, err := e.client.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("group listing: %w", err)
	}

	entries := make([]*ldap.Entry, 0, len(groups))
	for _, group := range groups {
		entry, err := e.groupEntry(ctx, localPart(group.Email), group)
		if err != nil {
			e.log.Warn("skipping group entry", "group", group.Email, "err", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// userEntry returns the cached entry for a username or synthesizes one.
// user may be nil, in which case the record is fetched by login. A
// failed alias fetch degrades the entry instead of failing it.
func (e *Engine) userEntry(ctx context.Context, username string, user *upstream.User) (*ldap.Entry, error) {
	dn := e.ns.UserDN(username)
	if entry, ok := e.cache.Get(dn); ok {
		return entry, nil
	}

	if user == nil {
		var err error
		user, err = e.client.GetUser(ctx, username+"@"+e.ns.Domain)
		if err != nil {
			return nil, err
		}
	}

	aliases, err := e.client.ListUserAliases(ctx, user.PrimaryEmail)
	if err != nil {
		e.log.Debug("partial user entry: alias fetch failed", "user", user.PrimaryEmail, "err", err)
		aliases = nil
	}

	entry := UserEntry(dn, username, user, aliases)
	e.cache.Put(dn, entry)
	return entry, nil
}

// groupEntry mirrors userEntry for groups. A failed membership fetch
// degrades the entry; a member record without an email expands to the
// whole user population.
func (e *Engine) groupEntry(ctx context.Context, groupname string, group *upstream.Group) (*ldap.Entry, error) {
	dn := e.ns.GroupDN(groupname)
	if entry, ok := e.cache.Get(dn); ok {
		return entry, nil
	}

	if group == nil {
		var err error
		group, err = e.client.GetGroup(ctx, groupname+"@"+e.ns.Domain)
		if err != nil {
			return nil, err
		}
	}

	members, err := e.client.ListGroupMembers(ctx, group.ID)
	if err != nil {
		e.log.Debug("partial group entry: member fetch failed", "group", group.Email, "err", err)
		members = nil
	}

	var allUsers []*upstream.User
	for _, member := range members {
		if member.Email == "" {
			allUsers, err = e.client.ListUsers(ctx)
			if err != nil {
				e.log.Debug("partial group entry: member expansion failed", "group", group.Email, "err", err)
			}
			break
		}
	}

	entry := GroupEntry(dn, groupname, group, members, allUsers)
	e.cache.Put(dn, entry)
	return entry, nil
}

func (e *Engine) logMiss(kind, name string, err error) {
	if errors.Is(err, upstream.ErrNotFound) {
		e.log.Debug("no such "+kind, "name", name)
		return
	}
	e.log.Warn(kind+" existence check failed", "name", name, "err", err)
}
