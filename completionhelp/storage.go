// Package completionhelp offers values for the shell completion of the CLI
// flags.
package completionhelp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// StorageLocations returns the directories where the agent storages are
// usually kept.
func StorageLocations() (locations []string) {
	defer err2.Catch(err2.Err(func(err error) {
		_, _ = fmt.Fprintln(os.Stderr, err)
	}))

	locations = []string{"."}
	home := try.To1(os.UserHomeDir())
	return append(locations, filepath.Join(home, ".findy", "exchange"))
}

// Scenarios returns the completion values of a comma separated list. The
// already given items are completed with the rest of the names.
func Scenarios(names []string, given string) []string {
	prefix, last := "", given
	if i := strings.LastIndex(given, ","); i >= 0 {
		prefix, last = given[:i+1], given[i+1:]
	}
	used := make(map[string]bool)
	for _, n := range strings.Split(prefix, ",") {
		used[strings.TrimSpace(n)] = true
	}
	var values []string
	for _, n := range names {
		if !used[n] && strings.HasPrefix(n, last) {
			values = append(values, prefix+n)
		}
	}
	return values
}
