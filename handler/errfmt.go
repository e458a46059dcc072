package handler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// positionRe matches the "handler:LINE:COL" locations goja embeds in
// exception messages and stack frames.
var positionRe = regexp.MustCompile(`handler:(\d+):(\d+)`)

// formatHandlerError renders a resolution failure as a line-numbered
// excerpt of the handler source with the failing line marked, so the
// app author sees the broken script rather than a bare message.
func formatHandlerError(code string, err error) string {
	line, col := 0, 0
	if m := positionRe.FindStringSubmatch(err.Error()); m != nil {
		line, _ = strconv.Atoi(m[1])
		col, _ = strconv.Atoi(m[2])
		// The compiler wraps the snippet as a function body, shifting
		// every source line down by one.
		line--
	}

	var b strings.Builder
	fmt.Fprintf(&b, "handler failed: %s\n", firstLine(err.Error()))
	lines := strings.Split(code, "\n")
	for i, text := range lines {
		n := i + 1
		marker := "  "
		if n == line {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%3d | %s\n", marker, n, text)
		if n == line && col > 0 && col <= len(text)+1 {
			fmt.Fprintf(&b, "  %3s | %s^\n", "", strings.Repeat(" ", col-1))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
