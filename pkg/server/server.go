// Package server runs the LDAP listener and routes every operation to
// the backend handler.
package server

import (
	"errors"
	"log/slog"

	"github.com/glauth/ldap"

	"github.com/DABSquared/google-apps-ldap-server/pkg/config"
)

type LdapSvc struct {
	log *slog.Logger
	c   *config.Config
	l   *ldap.Server
}

func NewServer(opts ...Option) (*LdapSvc, error) {
	options := newOptions(opts...)
	if options.Config == nil {
		return nil, errors.New("no configuration provided")
	}
	if options.Handler == nil {
		return nil, errors.New("no backend handler provided")
	}

	s := LdapSvc{
		log: options.Logger,
		c:   options.Config,
	}

	s.l = ldap.NewServer()
	// Let the library post-filter entries against the request filter and
	// trim unrequested attributes; the backend only narrows by uid.
	s.l.EnforceLDAP = true

	h := options.Handler
	s.l.BindFunc("", h)
	s.l.SearchFunc("", h)
	s.l.CloseFunc("", h)
	s.l.AddFunc("", h)
	s.l.ModifyFunc("", h)
	s.l.DeleteFunc("", h)

	return &s, nil
}

// ListenAndServe listens on the TCP network address s.c.LDAP.Listen
func (s *LdapSvc) ListenAndServe() error {
	if s.c.LDAP.TLS {
		s.log.Info("LDAPS server listening", "address", s.c.LDAP.Listen)
		return s.l.ListenAndServeTLS(s.c.LDAP.Listen, s.c.LDAP.TLSCertPath, s.c.LDAP.TLSKeyPath)
	}
	s.log.Info("LDAP server listening", "address", s.c.LDAP.Listen)
	return s.l.ListenAndServe(s.c.LDAP.Listen)
}

// Shutdown ends listeners by sending true to the ldap serves quit channel
func (s *LdapSvc) Shutdown() {
	s.l.Quit <- true
}
