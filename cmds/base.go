// Package cmds holds the command objects of the CLI. A command is validated
// first and then executed with a writer where it prints its progress. The
// cobra layer in cmd only fills the commands from flags.
package cmds

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/lainio/err2/try"
)

// storage keys are 32 bytes in hex
const storageKeyLength = 64

var ErrInvalid = errors.New("invalid command, check arguments")

type Result interface {
	JSON() ([]byte, error)
}

type Command interface {
	Validate() error
	Exec(w io.Writer) (r Result, err error)
}

// ValidateKey checks the storage key. An empty key is allowed, the storage
// isn't encrypted then.
func ValidateKey(k string) error {
	if k == "" {
		return nil
	}
	if len(k) != storageKeyLength {
		return fmt.Errorf("%w: storage key must be %d hex digits", ErrInvalid, storageKeyLength)
	}
	if _, err := hex.DecodeString(k); err != nil {
		return fmt.Errorf("%w: storage key: %v", ErrInvalid, err)
	}
	return nil
}

func ValidateInterval(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
	}
	return nil
}

// ParseLoggingArgs parses the glog flags of the string like they were given
// on the command line.
func ParseLoggingArgs(s string) {
	args := make([]string, 1, 12)
	args[0] = os.Args[0]
	args = append(args, strings.Fields(s)...)
	orgArgs := os.Args
	os.Args = args
	flag.Parse()
	os.Args = orgArgs
}

// Fprintln is fmt.Fprintln but it allows writer to be nil. Note! it throws an
// error.
func Fprintln(w io.Writer, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintln(w, a...))
	}
}

// Fprintf is fmt.Fprintf but it allows writer to be nil. Note! it throws an
// error.
func Fprintf(w io.Writer, format string, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintf(w, format, a...))
	}
}

// Fprint is fmt.Fprint but it allows writer to be nil. Note! it throws an
// error.
func Fprint(w io.Writer, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprint(w, a...))
	}
}
