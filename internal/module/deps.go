package module

import (
	"fmt"
	"os/exec"
	"strings"
)

// BinaryStatus reports the availability of an executable a module relies on.
type BinaryStatus struct {
	Command   string
	Path      string
	Available bool
	Detail    string
}

// LookPathFunc resolves an executable name, like exec.LookPath.
type LookPathFunc func(file string) (string, error)

// CheckBinaries evaluates every command and reports availability. All
// commands are checked so callers can report every missing one at once.
func CheckBinaries(commands []string, lookPath LookPathFunc) []BinaryStatus {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	results := make([]BinaryStatus, 0, len(commands))
	for _, c := range commands {
		cmd := strings.TrimSpace(c)
		status := BinaryStatus{Command: cmd}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		p, err := lookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = p
		status.Available = true
		results = append(results, status)
	}
	return results
}
