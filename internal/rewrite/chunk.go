// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import "strings"

// splitBlocks splits Markdown into blocks at blank-line boundaries. Fenced
// code blocks are atomic: a blank line inside a fence never splits, so no
// chunk boundary can fall inside a code block, and an image reference
// always stays with its surrounding text.
func splitBlocks(markdown string) []string {
	lines := strings.Split(markdown, "\n")

	var blocks []string
	var current []string
	inFence := false
	fenceMarker := ""

	flush := func() {
		if len(current) == 0 {
			return
		}
		blocks = append(blocks, strings.Join(current, "\n"))
		current = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inFence {
			current = append(current, line)
			if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
			}
			continue
		}

		if trimmed == "" {
			flush()
			continue
		}

		if strings.HasPrefix(trimmed, "```") {
			inFence = true
			fenceMarker = "```"
		} else if strings.HasPrefix(trimmed, "~~~") {
			inFence = true
			fenceMarker = "~~~"
		}
		current = append(current, line)
	}
	flush()

	return blocks
}

// packChunks greedily merges consecutive blocks into chunks no larger than
// maxBytes. A single block above the ceiling becomes its own chunk rather
// than being split mid-block.
func packChunks(blocks []string, maxBytes int) []string {
	var chunks []string
	var current strings.Builder

	for _, block := range blocks {
		if current.Len() > 0 && current.Len()+2+len(block) > maxBytes {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(block)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
