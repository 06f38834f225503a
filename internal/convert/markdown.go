// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"regexp"
	"strings"
)

// inlineImagePattern matches Markdown image syntax ![alt](dest) and
// captures the destination, stopping before an optional title.
var inlineImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(\s*(<[^>]*>|[^)\s]+)[^)]*\)`)

// ImageRefs returns every image reference destination in the Markdown, in
// order of appearance, including duplicates. References inside fenced code
// blocks are not references and are skipped.
func ImageRefs(markdown string) []string {
	var refs []string
	inFence := false
	fenceMarker := ""

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			}
			continue
		}
		if marker, ok := fenceOpen(trimmed); ok {
			inFence = true
			fenceMarker = marker
			continue
		}

		for _, m := range inlineImagePattern.FindAllStringSubmatch(line, -1) {
			dest := strings.Trim(m[1], "<>")
			if dest != "" {
				refs = append(refs, dest)
			}
		}
	}

	return refs
}

// fenceOpen reports whether the line opens a fenced code block and returns
// the closing marker to look for.
func fenceOpen(line string) (string, bool) {
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			return marker, true
		}
	}
	return "", false
}

// LocalRefs filters refs down to session-local asset paths, dropping
// remote URLs and absolute paths that cannot name an extracted asset.
func LocalRefs(refs []string) []string {
	var local []string
	for _, r := range refs {
		if strings.Contains(r, "://") || strings.HasPrefix(r, "/") {
			continue
		}
		local = append(local, r)
	}
	return local
}
