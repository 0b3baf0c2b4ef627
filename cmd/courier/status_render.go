package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

// renderStatusLine formats one aligned status row, optionally colorized.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	body := fmt.Sprintf("[%s] %s", statusKindLabel(kind), message)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			body = color + body + ansiReset
		}
	}
	return fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", body)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ""
	}
}

// boolStatusKind maps a healthy/unhealthy flag onto OK or ERROR.
func boolStatusKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := fmt.Sprintf("== %s ==", title)
	underline := strings.Repeat("-", len(heading))
	if colorize {
		heading = ansiBlue + heading + ansiReset
	}
	return []string{heading, underline}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
