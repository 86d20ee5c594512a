package commitmsg

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	begin = "--- published files begin ---"
	end   = "--- published files end ---"

	startTag = "{{"
	endTag   = "}}"
)

// Render substitutes every "{{name}}" placeholder in tpl
// with vars[name]. Whitespace around name is ignored.
// Placeholders without a value are kept verbatim.
func Render(tpl string, vars map[string]string) (string, error) {
	const errCtx = "rendering commit message"

	t, err := fasttemplate.NewTemplate(tpl, startTag, endTag)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return t.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if v, ok := vars[strings.TrimSpace(tag)]; ok {
			return io.WriteString(w, v)
		}

		return io.WriteString(w, startTag+tag+endTag)
	}), nil
}

// ExtractPaths returns the file paths listed between the
// trailer markers of msg, or nil when there is no
// complete trailer.
func ExtractPaths(msg string) []string {
	var paths []string

	betweenMarkers := false

	for _, line := range strings.Split(msg, "\n") {
		switch line {
		case begin:
			betweenMarkers = true
		case end:
			betweenMarkers = false
		default:
			if betweenMarkers && line != "" {
				paths = append(paths, line)
			}
		}
	}

	if betweenMarkers {
		slog.Warn("unable to find end marker in commit message")

		return nil
	}

	return paths
}

// Generate produces a commit message trailer listing paths
// between begin/end markers.
func Generate(paths []string) string {
	var sb strings.Builder

	sb.WriteByte('\n')
	sb.WriteString(begin)
	sb.WriteByte('\n')

	for _, p := range paths {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}

	sb.WriteString(end)
	sb.WriteByte('\n')

	return sb.String()
}
