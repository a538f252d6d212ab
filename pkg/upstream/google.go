package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	imapclient "github.com/emersion/go-imap/client"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// The Admin SDK resolves "my_customer" to the customer account the
	// authorized credentials belong to.
	myCustomer = "my_customer"

	defaultCallTimeout = 30 * time.Second
	defaultIMAPAddr    = "imap.gmail.com:993"
)

// GoogleClient implements Client against the Admin SDK Directory API and
// the Gmail IMAP endpoint. It is stateless apart from the underlying
// HTTP client and safe for concurrent use.
type GoogleClient struct {
	svc      *admin.Service
	log      *slog.Logger
	timeout  time.Duration
	imapAddr string
}

type GoogleOption func(*GoogleClient)

// WithCallTimeout bounds every provider call. Live queries sit on the
// request's critical path, so a hung call must not hang the search.
func WithCallTimeout(d time.Duration) GoogleOption {
	return func(g *GoogleClient) { g.timeout = d }
}

// WithIMAPAddr overrides the mail endpoint probed during bind.
func WithIMAPAddr(addr string) GoogleOption {
	return func(g *GoogleClient) { g.imapAddr = addr }
}

// NewGoogleClient builds an authorized Directory client from a
// client-secret bundle on disk, requesting read-only scopes for users,
// groups and memberships.
func NewGoogleClient(ctx context.Context, clientSecretFile string, logger *slog.Logger, opts ...GoogleOption) (*GoogleClient, error) {
	svc, err := admin.NewService(ctx,
		option.WithCredentialsFile(clientSecretFile),
		option.WithScopes(
			admin.AdminDirectoryUserReadonlyScope,
			admin.AdminDirectoryGroupReadonlyScope,
			admin.AdminDirectoryGroupMemberReadonlyScope,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build directory service: %w", err)
	}

	g := &GoogleClient{
		svc:      svc,
		log:      logger,
		timeout:  defaultCallTimeout,
		imapAddr: defaultIMAPAddr,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GoogleClient) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func (g *GoogleClient) ListUsers(ctx context.Context) ([]*User, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	var users []*User
	call := g.svc.Users.List().Customer(myCustomer).OrderBy("email").Projection("full")
	err := call.Pages(ctx, func(page *admin.Users) error {
		for _, u := range page.Users {
			users = append(users, projectUser(u))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (g *GoogleClient) GetUser(ctx context.Context, login string) (*User, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	u, err := g.svc.Users.Get(login).Projection("full").Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting user %s: %w", login, err)
	}
	return projectUser(u), nil
}

func (g *GoogleClient) ListUserAliases(ctx context.Context, login string) ([]string, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	res, err := g.svc.Users.Aliases.List(login).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("listing aliases for %s: %w", login, err)
	}

	var aliases []string
	for _, raw := range res.Aliases {
		rec, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if alias, ok := rec["alias"].(string); ok && alias != "" {
			aliases = append(aliases, alias)
		}
	}
	return aliases, nil
}

func (g *GoogleClient) ListGroups(ctx context.Context) ([]*Group, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	var groups []*Group
	call := g.svc.Groups.List().Customer(myCustomer)
	err := call.Pages(ctx, func(page *admin.Groups) error {
		for _, grp := range page.Groups {
			groups = append(groups, &Group{
				ID:          grp.Id,
				Email:       grp.Email,
				Description: grp.Description,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	return groups, nil
}

func (g *GoogleClient) GetGroup(ctx context.Context, key string) (*Group, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	grp, err := g.svc.Groups.Get(key).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting group %s: %w", key, err)
	}
	return &Group{ID: grp.Id, Email: grp.Email, Description: grp.Description}, nil
}

func (g *GoogleClient) ListGroupMembers(ctx context.Context, groupKey string) ([]*Member, error) {
	ctx, cancel := g.callCtx(ctx)
	defer cancel()

	var members []*Member
	call := g.svc.Members.List(groupKey)
	err := call.Pages(ctx, func(page *admin.Members) error {
		for _, m := range page.Members {
			members = append(members, &Member{Email: m.Email})
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("listing members of %s: %w", groupKey, err)
	}
	return members, nil
}

// MailLogin opens an IMAP session over TLS and attempts a LOGIN with the
// supplied credentials. The session is torn down on every path.
func (g *GoogleClient) MailLogin(ctx context.Context, fullLogin, secret string) error {
	dialer := &net.Dialer{Timeout: g.timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	c, err := imapclient.DialWithDialerTLS(dialer, g.imapAddr, nil)
	if err != nil {
		return fmt.Errorf("mail endpoint unreachable: %w", err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			g.log.Debug("IMAP logout failed", "err", err)
		}
	}()

	if err := c.Login(fullLogin, secret); err != nil {
		return fmt.Errorf("mail login rejected for %s: %w", fullLogin, err)
	}
	return nil
}

// projectUser flattens the loosely typed SDK record. Phones and Emails
// arrive as untyped JSON arrays under the "full" projection.
func projectUser(u *admin.User) *User {
	out := &User{
		ID:           u.Id,
		PrimaryEmail: u.PrimaryEmail,
	}
	if u.Name != nil {
		out.FullName = u.Name.FullName
		out.GivenName = u.Name.GivenName
		out.FamilyName = u.Name.FamilyName
	}

	for _, rec := range untypedRecords(u.Phones) {
		ptype, _ := rec["type"].(string)
		value, _ := rec["value"].(string)
		if value != "" {
			out.Phones = append(out.Phones, Phone{Type: ptype, Value: value})
		}
	}

	for _, rec := range untypedRecords(u.Emails) {
		address, _ := rec["address"].(string)
		if address == "" || strings.EqualFold(address, u.PrimaryEmail) {
			continue
		}
		out.SecondaryEmails = append(out.SecondaryEmails, address)
	}

	return out
}

func untypedRecords(v interface{}) []map[string]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var records []map[string]interface{}
	for _, item := range items {
		if rec, ok := item.(map[string]interface{}); ok {
			records = append(records, rec)
		}
	}
	return records
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 404
}
