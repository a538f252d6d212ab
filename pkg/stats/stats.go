// Package stats exposes process counters through expvar so the web API
// (and anything else scraping /debug/vars) can observe them.
package stats

import "expvar"

var (
	General  = expvar.NewMap("google_ldap_general")
	Frontend = expvar.NewMap("google_ldap_frontend")
	Backend  = expvar.NewMap("google_ldap_backend")
)

// Stringer adapts a plain string to the expvar.Var interface.
type Stringer string

func (s Stringer) String() string {
	return "\"" + string(s) + "\""
}
