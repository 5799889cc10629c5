package registry

import "strings"

// SpecSuffix is the filename suffix for single-file suites
const SpecSuffix = ".spec.ts"

// Suite ids are lower_snake_case; spec files carry the dash-cased form.
// The transform is canonical: discovery, invocation arguments and result
// title back-mapping must all agree on it.

// DashCase converts a suite id to its on-disk spec name
func DashCase(id string) string {
	return strings.ReplaceAll(id, "_", "-")
}

// UnderscoreCase converts a spec name back to its suite id
func UnderscoreCase(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// titleToID maps the describe-block titles the external runner emits back to
// canonical suite ids. Order within the table does not matter; lookups are
// exact after whitespace trimming.
var titleToID = map[string]string{
	"Core Pages":      "core_pages",
	"Authentication":  "auth",
	"Content Editing": "content_editing",
	"Webform":         "webform",
	"Media":           "media",
	"Search":          "search",
}

// TitleToID resolves a report title to a canonical suite id. Unmapped titles
// fall back to a slugified form of the title; the fallback is deterministic
// but lossy.
func TitleToID(title string) string {
	title = strings.TrimSpace(title)
	if id, ok := titleToID[title]; ok {
		return id
	}
	return Slugify(title)
}

// Slugify lowercases a title and collapses every non-alphanumeric run into a
// single underscore
func Slugify(title string) string {
	var b strings.Builder
	lastUnderscore := true // suppress a leading underscore
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
