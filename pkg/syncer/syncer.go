// Package syncer pushes the Google directory into a second, writable
// LDAP store in one batch run. It reuses the entry mapping of the live
// gateway and applies it with create-or-replace semantics.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glauth/ldap"
	goldap "github.com/go-ldap/ldap/v3"

	"github.com/DABSquared/google-apps-ldap-server/pkg/config"
	"github.com/DABSquared/google-apps-ldap-server/pkg/directory"
	"github.com/DABSquared/google-apps-ldap-server/pkg/upstream"
)

// TargetConn is the slice of the target directory connection the syncer
// writes through.
type TargetConn interface {
	Add(*goldap.AddRequest) error
	Modify(*goldap.ModifyRequest) error
}

// Connect dials the target store and binds with the configured identity.
func Connect(cfg config.Sync) (*goldap.Conn, error) {
	conn, err := goldap.DialURL(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("could not reach target directory %s: %w", cfg.Server, err)
	}
	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("could not bind to target directory as %s: %w", cfg.BindDN, err)
		}
	}
	return conn, nil
}

// Syncer runs sequentially and to completion: every entity is attempted
// exactly once per run, regardless of how earlier entities fared.
type Syncer struct {
	log    *slog.Logger
	client upstream.Client
	target TargetConn
	baseDN string
}

func New(logger *slog.Logger, client upstream.Client, target TargetConn, baseDN string) *Syncer {
	return &Syncer{
		log:    logger,
		client: client,
		target: target,
		baseDN: strings.ToLower(baseDN),
	}
}

// Run pulls the full snapshot and upserts it. Only a failed listing
// aborts the run; per-entity failures are logged and skipped.
func (s *Syncer) Run(ctx context.Context) error {
	users, err := s.client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("sync: user listing failed: %w", err)
	}

	var synced, failed int
	for _, user := range users {
		if err := s.syncUser(ctx, user); err != nil {
			s.log.Warn("user sync failed", "user", user.PrimaryEmail, "err", err)
			failed++
			continue
		}
		synced++
	}
	s.log.Info("user sync done", "synced", synced, "failed", failed)

	groups, err := s.client.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("sync: group listing failed: %w", err)
	}

	synced, failed = 0, 0
	for _, group := range groups {
		if err := s.syncGroup(ctx, group, users); err != nil {
			s.log.Warn("group sync failed", "group", group.Email, "err", err)
			failed++
			continue
		}
		synced++
	}
	s.log.Info("group sync done", "synced", synced, "failed", failed)

	return nil
}

func (s *Syncer) syncUser(ctx context.Context, user *upstream.User) error {
	username, _, _ := strings.Cut(user.PrimaryEmail, "@")
	dn := fmt.Sprintf("cn=%s,ou=users,%s", strings.ToLower(username), s.baseDN)

	aliases, err := s.client.ListUserAliases(ctx, user.PrimaryEmail)
	if err != nil {
		s.log.Debug("syncing user without aliases", "user", user.PrimaryEmail, "err", err)
		aliases = nil
	}

	return s.upsert(directory.UserEntry(dn, strings.ToLower(username), user, aliases))
}

func (s *Syncer) syncGroup(ctx context.Context, group *upstream.Group, users []*upstream.User) error {
	groupname, _, _ := strings.Cut(group.Email, "@")
	dn := fmt.Sprintf("cn=%s,ou=groups,%s", strings.ToLower(groupname), s.baseDN)

	members, err := s.client.ListGroupMembers(ctx, group.ID)
	if err != nil {
		s.log.Debug("syncing group without members", "group", group.Email, "err", err)
		members = nil
	}

	return s.upsert(directory.GroupEntry(dn, strings.ToLower(groupname), group, members, users))
}

// upsert creates the entry, and when the target already holds one under
// that DN, strips the naming attribute and replaces the rest.
func (s *Syncer) upsert(entry *ldap.Entry) error {
	add := goldap.NewAddRequest(entry.DN, nil)
	for _, attr := range entry.Attributes {
		add.Attribute(attr.Name, attr.Values)
	}

	err := s.target.Add(add)
	if err == nil {
		return nil
	}
	if !goldap.IsErrorWithCode(err, goldap.LDAPResultEntryAlreadyExists) {
		return fmt.Errorf("add %s: %w", entry.DN, err)
	}

	mod := goldap.NewModifyRequest(entry.DN, nil)
	for _, attr := range entry.Attributes {
		if strings.EqualFold(attr.Name, "cn") {
			continue
		}
		mod.Replace(attr.Name, attr.Values)
	}
	if err := s.target.Modify(mod); err != nil {
		return fmt.Errorf("replace %s: %w", entry.DN, err)
	}
	return nil
}
