// Package identity supplies the user the core acts for. The core treats the
// user id as an opaque string.
package identity

import (
	"context"
	"os/user"
	"strings"

	"github.com/google/uuid"

	"github.com/sadopc/itrack/internal/errs"
)

type Identity struct {
	UserID      string
	DisplayName string
	Email       string
}

type Provider interface {
	CurrentUser(ctx context.Context) (Identity, error)
}

// namespace for ids derived from local user names.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/sadopc/itrack/users"))

// UserID derives a stable id from a user name. The same name always maps to
// the same id.
func UserID(name string) string {
	return uuid.NewSHA1(namespace, []byte(strings.ToLower(strings.TrimSpace(name)))).String()
}

// Local identifies the user by a name, typically the OS account.
type Local struct {
	Name  string
	Email string
}

var _ Provider = Local{}

// NewLocal uses name, or the OS account name when name is empty.
func NewLocal(name string) Local {
	name = strings.TrimSpace(name)
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	return Local{Name: name}
}

func (l Local) CurrentUser(context.Context) (Identity, error) {
	name := strings.TrimSpace(l.Name)
	if name == "" {
		return Identity{}, errs.Validation("user", "no user name configured")
	}
	return Identity{UserID: UserID(name), DisplayName: name, Email: l.Email}, nil
}

// Static always returns the same identity. Useful for tests and for the
// sync worker, which acts on behalf of whatever user a message names.
type Static Identity

func (s Static) CurrentUser(context.Context) (Identity, error) {
	return Identity(s), nil
}
