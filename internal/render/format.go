// Package render turns task data into TOON, pretty or JSON text for the
// command line and the tool server.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format is an output format.
type Format string

const (
	FormatToon   Format = "toon"
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

// Formatter renders each kind of output as a string ending in a newline.
type Formatter interface {
	FormatTaskList(data *TaskList) string
	FormatTaskDetail(data *TaskDetail) string
	FormatTransition(data *TransitionData) string
	FormatStats(data *StatsData) string
	FormatProjects(rows []ProjectRow) string
	FormatMessage(msg string) string
}

// New returns the Formatter for f. Unknown formats get TOON.
func New(f Format) Formatter {
	switch f {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatPretty:
		return &PrettyFormatter{}
	default:
		return &ToonFormatter{}
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatToon, FormatPretty, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want toon, pretty or json)", s)
}

// DetectTTY reports whether w is a terminal. Anything that is not an
// *os.File is not.
func DetectTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ResolveFormat picks the format from the format flags, at most one of
// which may be set. With none set, terminals get pretty output and
// everything else TOON.
func ResolveFormat(toonFlag, prettyFlag, jsonFlag, isTTY bool) (Format, error) {
	count := 0
	for _, set := range []bool{toonFlag, prettyFlag, jsonFlag} {
		if set {
			count++
		}
	}
	if count > 1 {
		return "", errors.New("cannot specify multiple format flags (--toon, --pretty, --json)")
	}

	switch {
	case toonFlag:
		return FormatToon, nil
	case prettyFlag:
		return FormatPretty, nil
	case jsonFlag:
		return FormatJSON, nil
	case isTTY:
		return FormatPretty, nil
	}
	return FormatToon, nil
}
