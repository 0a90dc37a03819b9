//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
)

// Actor identifies who runs the tool and where.
type Actor struct {
	// Hostname is the machine name.
	Hostname string
	// Username is the account of the invoking process.
	Username string
	// UID is the numeric user id on POSIX systems, empty elsewhere.
	UID string
}

// DetectActor gathers host and user information for the run log.
func DetectActor() (*Actor, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}

	return &Actor{
		Hostname: hostname,
		Username: currentUser.Username,
		UID:      currentUser.Uid,
	}, nil
}

// IsPrivileged reports whether the actor is the POSIX superuser.
func (a *Actor) IsPrivileged() bool {
	return a != nil && a.UID == "0"
}
