// Package auth validates bind credentials against the provider's mail
// endpoint. Credentials live for exactly one authentication attempt and
// are never persisted.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrDomainMismatch reports a login whose domain segment is not the
	// configured domain. An authentication failure, not a fault.
	ErrDomainMismatch = errors.New("auth: login domain does not match the configured domain")
	// ErrInvalidCredentials reports that the provider rejected the
	// mail-login probe.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Prober is the slice of the upstream client the authenticator needs.
type Prober interface {
	MailLogin(ctx context.Context, fullLogin, secret string) error
}

// Principal identifies a successfully bound caller.
type Principal struct {
	// BindName is the identity exactly as presented at bind time.
	BindName string
	// Login is the resolved, domain-qualified login.
	Login string
}

type Authenticator struct {
	log    *slog.Logger
	domain string
	prober Prober
}

func NewAuthenticator(logger *slog.Logger, domain string, prober Prober) *Authenticator {
	return &Authenticator{
		log:    logger,
		domain: strings.ToLower(domain),
		prober: prober,
	}
}

// Authenticate qualifies a bare login with the configured domain,
// rejects logins for foreign domains without touching the provider, and
// otherwise delegates to the mail-login probe. The probe session is
// closed by the prober on every path.
func (a *Authenticator) Authenticate(ctx context.Context, loginName, secret string) (Principal, error) {
	login := strings.ToLower(loginName)
	if !strings.Contains(login, "@") {
		login = login + "@" + a.domain
	}

	_, domain, _ := strings.Cut(login, "@")
	if domain != a.domain {
		return Principal{}, fmt.Errorf("%w: %s", ErrDomainMismatch, login)
	}

	if err := a.prober.MailLogin(ctx, login, secret); err != nil {
		a.log.Debug("mail-login probe rejected", "login", login, "err", err)
		return Principal{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, login)
	}

	a.log.Debug("authenticated", "login", login)
	return Principal{BindName: loginName, Login: login}, nil
}
