//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"strings"

	"github.com/mitchellh/go-ps"
)

// Process is a running process matched by name.
type Process struct {
	PID        int
	Executable string
}

// ProcessLister returns the processes running on the host.
type ProcessLister func() ([]ps.Process, error)

// FindProcesses returns running processes whose executable name matches one
// of names, ignoring case and the current process.
func FindProcesses(list ProcessLister, names []string) ([]Process, error) {
	if list == nil {
		list = ps.Processes
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[strings.ToLower(name)] = struct{}{}
	}

	processList, err := list()
	if err != nil {
		return nil, err
	}

	thisProcessID := os.Getpid()

	var found []Process

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		executable := strings.ToLower(process.Executable())
		executable = strings.TrimSuffix(executable, ".exe")

		if _, ok := wanted[executable]; !ok {
			continue
		}

		found = append(found, Process{PID: process.Pid(), Executable: process.Executable()})
	}

	return found, nil
}
