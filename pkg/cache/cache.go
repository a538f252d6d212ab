// Package cache bounds the memory spent on synthesized entries. Keys are
// normalized DN strings; eviction is strictly least-recently-used at a
// capacity fixed on construction.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/glauth/ldap"

	"github.com/DABSquared/google-apps-ldap-server/pkg/namespace"
)

// DefaultSize matches the partition cache of the original deployment.
const DefaultSize = 300

// EntryCache is safe for concurrent use; golang-lru serializes access
// internally. Concurrent population of the same key is not deduplicated,
// the last Put wins.
type EntryCache struct {
	entries *lru.Cache[string, *ldap.Entry]
}

func New(size int) (*EntryCache, error) {
	entries, err := lru.New[string, *ldap.Entry](size)
	if err != nil {
		return nil, err
	}
	return &EntryCache{entries: entries}, nil
}

// Get returns the cached entry and refreshes its recency.
func (c *EntryCache) Get(dn string) (*ldap.Entry, bool) {
	return c.entries.Get(namespace.Normalize(dn))
}

// Put inserts or overwrites, evicting the least-recently-used entry when
// at capacity.
func (c *EntryCache) Put(dn string, entry *ldap.Entry) {
	c.entries.Add(namespace.Normalize(dn), entry)
}

// Contains reports presence without refreshing recency.
func (c *EntryCache) Contains(dn string) bool {
	return c.entries.Contains(namespace.Normalize(dn))
}

// Len reports the number of live entries, for the stats endpoint.
func (c *EntryCache) Len() int {
	return c.entries.Len()
}
