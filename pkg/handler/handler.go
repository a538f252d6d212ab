// Package handler adapts the virtual directory engine and the bind
// authenticator to the LDAP server's handler contract.
package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/glauth/ldap"
	"golang.org/x/crypto/bcrypt"

	"github.com/DABSquared/google-apps-ldap-server/pkg/auth"
	"github.com/DABSquared/google-apps-ldap-server/pkg/config"
	"github.com/DABSquared/google-apps-ldap-server/pkg/directory"
	"github.com/DABSquared/google-apps-ldap-server/pkg/namespace"
	"github.com/DABSquared/google-apps-ldap-server/pkg/stats"
)

// Handler is the full backend contract of the LDAP server. All write
// operations are rejected: the namespace is synthesized, never stored.
type Handler interface {
	ldap.Binder
	ldap.Searcher
	ldap.Closer
	ldap.Adder
	ldap.Modifier
	ldap.Deleter
}

type googleHandler struct {
	// baseCtx is the service lifecycle context; shutdown cancels any
	// in-flight provider call made on behalf of a connection.
	baseCtx       context.Context
	log           *slog.Logger
	cfg           *config.Config
	engine        *directory.Engine
	authenticator *auth.Authenticator
}

func NewGoogleHandler(ctx context.Context, logger *slog.Logger, cfg *config.Config, engine *directory.Engine, authenticator *auth.Authenticator) Handler {
	return &googleHandler{
		baseCtx:       ctx,
		log:           logger,
		cfg:           cfg,
		engine:        engine,
		authenticator: authenticator,
	}
}

func (h *googleHandler) Bind(bindDN, bindSimplePw string, conn net.Conn) (ldap.LDAPResultCode, error) {
	stats.Frontend.Add("bind_reqs", 1)
	bindDN = strings.ToLower(bindDN)

	h.log.Info("Bind request", "binddn", bindDN, "src", remoteAddr(conn))

	// Special Case: bind as anonymous
	if bindDN == "" && bindSimplePw == "" {
		h.log.Info("Anonymous Bind success", "src", remoteAddr(conn))
		return ldap.LDAPResultSuccess, nil
	}

	loginName, ok := h.bindName(bindDN)
	if !ok {
		h.log.Info("Bind Error: BindDN not in our BaseDN", "binddn", bindDN, "basedn", h.engine.Namespace().RootDN)
		return ldap.LDAPResultInvalidCredentials, nil
	}

	if sa := h.findServiceAccount(loginName); sa != nil {
		if h.checkServiceAccount(sa, bindSimplePw) {
			h.log.Info("Bind success using service account", "binddn", bindDN)
			return ldap.LDAPResultSuccess, nil
		}
		h.log.Info("invalid credentials", "binddn", bindDN, "serviceaccount", sa.Name)
		return ldap.LDAPResultInvalidCredentials, nil
	}

	if _, err := h.authenticator.Authenticate(h.baseCtx, loginName, bindSimplePw); err != nil {
		h.log.Info("Bind failed", "binddn", bindDN, "err", err)
		return ldap.LDAPResultInvalidCredentials, nil
	}

	h.log.Info("Bind success", "binddn", bindDN)
	return ldap.LDAPResultSuccess, nil
}

func (h *googleHandler) Search(boundDN string, searchReq ldap.SearchRequest, conn net.Conn) (ldap.ServerSearchResult, error) {
	stats.Frontend.Add("search_reqs", 1)
	searchBaseDN := namespace.Normalize(searchReq.BaseDN)
	rootDN := h.engine.Namespace().RootDN

	h.log.Info("Search request", "binddn", boundDN, "searchbasedn", searchBaseDN, "scope", searchReq.Scope, "filter", searchReq.Filter)

	if !strings.HasSuffix(searchBaseDN, rootDN) {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultInsufficientAccessRights},
			fmt.Errorf("search base %s is not under %s", searchBaseDN, rootDN)
	}

	entries, err := h.engine.Search(h.baseCtx, searchBaseDN, searchReq.Scope, searchReq.Filter)
	if err != nil {
		// Serve what was synthesized before the fault; the degraded
		// listing is preferable to failing the whole search.
		h.log.Warn("degraded search result", "searchbasedn", searchBaseDN, "entries", len(entries), "err", err)
	}
	if entries == nil {
		entries = []*ldap.Entry{}
	}

	stats.Backend.Add("entries_served", int64(len(entries)))
	return ldap.ServerSearchResult{
		Entries:    entries,
		Referrals:  []string{},
		Controls:   []ldap.Control{},
		ResultCode: ldap.LDAPResultSuccess,
	}, nil
}

func (h *googleHandler) Close(boundDN string, conn net.Conn) error {
	stats.Frontend.Add("closes", 1)
	h.log.Debug("Close request", "binddn", boundDN, "src", remoteAddr(conn))
	return nil
}

func (h *googleHandler) Add(boundDN string, req ldap.AddRequest, conn net.Conn) (ldap.LDAPResultCode, error) {
	h.log.Info("Add rejected: this namespace is read-only", "binddn", boundDN)
	return ldap.LDAPResultUnwillingToPerform, nil
}

func (h *googleHandler) Modify(boundDN string, req ldap.ModifyRequest, conn net.Conn) (ldap.LDAPResultCode, error) {
	h.log.Info("Modify rejected: this namespace is read-only", "binddn", boundDN)
	return ldap.LDAPResultUnwillingToPerform, nil
}

func (h *googleHandler) Delete(boundDN, deleteDN string, conn net.Conn) (ldap.LDAPResultCode, error) {
	h.log.Info("Delete rejected: this namespace is read-only", "binddn", boundDN)
	return ldap.LDAPResultUnwillingToPerform, nil
}

// bindName extracts the login from a bind DN. Accepted forms: a bare or
// domain-qualified login (UPN style), or a DN whose first RDN names the
// user and whose suffix is our root.
func (h *googleHandler) bindName(bindDN string) (string, bool) {
	if !strings.Contains(bindDN, ",") {
		return strings.TrimPrefix(strings.TrimPrefix(bindDN, "cn="), "uid="), true
	}

	rootDN := h.engine.Namespace().RootDN
	if !strings.HasSuffix(bindDN, ","+rootDN) {
		return "", false
	}
	rdn, _, _ := strings.Cut(bindDN, ",")
	for _, prefix := range []string{"cn=", "uid="} {
		if strings.HasPrefix(rdn, prefix) {
			return strings.TrimPrefix(rdn, prefix), true
		}
	}
	return "", false
}

func (h *googleHandler) findServiceAccount(name string) *config.ServiceAccount {
	for i := range h.cfg.ServiceAccounts {
		if strings.EqualFold(h.cfg.ServiceAccounts[i].Name, name) {
			return &h.cfg.ServiceAccounts[i]
		}
	}
	return nil
}

func (h *googleHandler) checkServiceAccount(sa *config.ServiceAccount, pw string) bool {
	if sa.PassBcrypt != "" {
		decoded, err := hex.DecodeString(sa.PassBcrypt)
		if err != nil {
			h.log.Info("invalid service account credentials", "incorrect stored hash", "(omitted)")
			return false
		}
		return bcrypt.CompareHashAndPassword(decoded, []byte(pw)) == nil
	}
	if sa.PassSHA256 != "" {
		hash := sha256.New()
		hash.Write([]byte(pw))
		return sa.PassSHA256 == hex.EncodeToString(hash.Sum(nil))
	}
	return false
}

func remoteAddr(conn net.Conn) string {
	if conn == nil {
		return "unknown"
	}
	return conn.RemoteAddr().String()
}
