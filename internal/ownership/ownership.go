package ownership

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

var (
	// ErrUnknownAccount is returned when the user or group does not exist on this host.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrPermission is returned when the process may not change ownership.
	ErrPermission = errors.New("insufficient privilege to change ownership")
)

// Changer changes ownership of every path under a root.
type Changer interface {
	// Chown reassigns root and everything below it. Symlinks are changed, not followed.
	Chown(ctx context.Context, root string) error
	// Supported reports whether this changer touches the filesystem at all.
	Supported() bool
}

// Account is a resolved owner.
type Account struct {
	User  string
	Group string
	UID   int
	GID   int
}

// LookupFunc resolves user and group names to numeric ids.
type LookupFunc func(userName, groupName string) (Account, error)

// LchownFunc changes ownership of a single path without following symlinks.
type LchownFunc func(name string, uid, gid int) error

// Option configures the POSIX changer.
type Option func(*posixChanger)

// WithLookup replaces account resolution.
func WithLookup(fn LookupFunc) Option {
	return func(c *posixChanger) {
		if fn != nil {
			c.lookup = fn
		}
	}
}

// WithLchown replaces the per-path ownership call.
func WithLchown(fn LchownFunc) Option {
	return func(c *posixChanger) {
		if fn != nil {
			c.lchown = fn
		}
	}
}

// SupportsOwnership reports whether goos has POSIX user and group ownership.
func SupportsOwnership(goos string) bool {
	switch goos {
	case "windows", "plan9", "js", "wasip1":
		return false
	default:
		return true
	}
}

// New returns the changer appropriate for goos.
func New(goos, userName, groupName string, opts ...Option) Changer {
	if !SupportsOwnership(goos) {
		return Noop{}
	}

	c := &posixChanger{
		user:   userName,
		group:  groupName,
		lookup: LookupAccount,
		lchown: os.Lchown,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Noop is the changer used where ownership has no meaning.
type Noop struct{}

// Chown does nothing.
func (Noop) Chown(context.Context, string) error {
	return nil
}

// Supported always reports false.
func (Noop) Supported() bool {
	return false
}

type posixChanger struct {
	user   string
	group  string
	lookup LookupFunc
	lchown LchownFunc
}

func (c *posixChanger) Supported() bool {
	return true
}

func (c *posixChanger) Chown(ctx context.Context, root string) error {
	account, err := c.lookup(c.user, c.group)
	if err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return classify(path, walkErr)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.lchown(path, account.UID, account.GID); err != nil {
			return classify(path, err)
		}

		return nil
	})
}

func classify(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w: %w", path, ErrPermission, err)
	}

	return fmt.Errorf("%s: %w", path, err)
}

// LookupAccount resolves names through the system account database.
// Numeric ids are accepted as-is. An empty group selects the user's primary group.
func LookupAccount(userName, groupName string) (Account, error) {
	account := Account{User: userName, Group: groupName}

	u, err := lookupUser(userName)
	if err != nil {
		return account, fmt.Errorf("user %q: %w: %w", userName, ErrUnknownAccount, err)
	}

	if account.UID, err = strconv.Atoi(u.Uid); err != nil {
		return account, fmt.Errorf("user %q has non-numeric uid %q: %w", userName, u.Uid, ErrUnknownAccount)
	}

	gid := u.Gid

	if groupName != "" {
		g, err := lookupGroup(groupName)
		if err != nil {
			return account, fmt.Errorf("group %q: %w: %w", groupName, ErrUnknownAccount, err)
		}

		gid = g.Gid
	}

	if account.GID, err = strconv.Atoi(gid); err != nil {
		return account, fmt.Errorf("group %q has non-numeric gid %q: %w", groupName, gid, ErrUnknownAccount)
	}

	return account, nil
}

func lookupUser(name string) (*user.User, error) {
	if _, err := strconv.Atoi(name); err == nil {
		return user.LookupId(name)
	}

	return user.Lookup(name)
}

func lookupGroup(name string) (*user.Group, error) {
	if _, err := strconv.Atoi(name); err == nil {
		return user.LookupGroupId(name)
	}

	return user.LookupGroup(name)
}
