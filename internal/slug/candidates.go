// Package slug maps a public URL path segment to the invitation it names.
//
// Slugs are user-chosen Unicode strings. The same visible slug may arrive
// percent-encoded or not, and in composed (NFC) or decomposed (NFD) form,
// so a segment expands into a small candidate set that is looked up in one batch.
package slug

import (
	"net/url"
	"slices"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Candidates returns the sorted, de-duplicated spellings raw may stand for:
// the raw segment, its percent-decoded form, and the NFC and NFD forms of that.
func Candidates(raw string) []string {
	set := map[string]struct{}{raw: {}}

	decoded := raw
	if d, err := url.PathUnescape(raw); err == nil && d != raw {
		decoded = d
		set[decoded] = struct{}{}
	}

	nfc := norm.NFC.String(decoded)
	set[nfc] = struct{}{}
	if nfd := norm.NFD.String(decoded); nfd != nfc {
		set[nfd] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for s := range set {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Key joins candidates into the batch key used for caching.
func Key(candidates []string) string {
	return "slug:" + strings.Join(candidates, "\x1f")
}

// Forms returns the spellings of a stored slug that lookups can reach it by.
func Forms(s string) []string {
	if s == "" {
		return nil
	}
	forms := []string{s}
	for _, f := range []string{norm.NFC.String(s), norm.NFD.String(s)} {
		if !slices.Contains(forms, f) {
			forms = append(forms, f)
		}
	}
	return forms
}

// InvitationTag is the cache tag of every lookup that returned invitation id.
func InvitationTag(id string) string {
	return "invitation:" + id
}

// SlugTag is the cache tag of every lookup that had s among its candidates.
func SlugTag(s string) string {
	return "slug:" + s
}

// Tags lists what a write to an invitation must invalidate: the invitation itself
// and every spelling of each slug it had before or after the write.
func Tags(id string, slugs ...string) []string {
	tags := []string{InvitationTag(id)}
	seen := map[string]bool{}
	for _, s := range slugs {
		for _, f := range Forms(s) {
			if seen[f] {
				continue
			}
			seen[f] = true
			tags = append(tags, SlugTag(f))
		}
	}
	return tags
}
