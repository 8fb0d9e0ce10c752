package similarity

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/cespare/xxhash/v2"
)

// Digest is a 64-bit content hash of one line of a commit's diff body.
type Digest uint64

// digestPatch computes the commit's comparable representation from its
// rendered patch: one digest per distinct diff-body line (hunk lines plus a
// per-file name marker), and a whole-diff digest over the normalized body in
// order. Header noise like index lines and blob hashes is excluded, so a
// rebase that leaves the change intact digests identically.
func digestPatch(patch string) (map[Digest]struct{}, Digest, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(patch))
	if err != nil {
		return nil, 0, fmt.Errorf("parse patch: %w", err)
	}

	set := make(map[Digest]struct{})
	whole := xxhash.New()

	add := func(line string) {
		set[Digest(xxhash.Sum64String(line))] = struct{}{}
		whole.WriteString(line)
		whole.WriteString("\n")
	}

	for _, f := range files {
		add("file\x00" + f.OldName + "\x00" + f.NewName)
		for _, frag := range f.TextFragments {
			for _, line := range frag.Lines {
				add(strings.TrimRight(line.String(), "\n"))
			}
		}
	}
	return set, Digest(whole.Sum64()), nil
}
