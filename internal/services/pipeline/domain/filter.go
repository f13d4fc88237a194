package domain

import (
	"strings"

	perr "graphpipe/internal/platform/errors"
)

// EntityFilter applies the supported-entity allowlist configured as
// "type[:required];type[:required]...". Mentions of unlisted types are
// dropped; a sentence is dropped entirely when any required type is absent
// from what remains. A nil filter keeps everything
type EntityFilter struct {
	allowed  map[string]bool
	required []string
}

// ParseEntityFilter parses the allowlist config string. An empty string
// returns a nil filter (keep everything)
func ParseEntityFilter(spec string) (*EntityFilter, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	f := &EntityFilter{allowed: map[string]bool{}}
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, attr, hasAttr := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, perr.InvalidArgf("entity filter: empty type in %q", spec)
		}
		if hasAttr {
			if strings.TrimSpace(attr) != "required" {
				return nil, perr.InvalidArgf("entity filter: unknown attribute %q for type %q", attr, name)
			}
			if !f.allowed[name] {
				f.required = append(f.required, name)
			}
		}
		f.allowed[name] = true
	}
	if len(f.allowed) == 0 {
		return nil, perr.InvalidArgf("entity filter: no types in %q", spec)
	}
	return f, nil
}

// Apply filters mentions down to allowed types and reports whether the
// sentence survives (every required type still present)
func (f *EntityFilter) Apply(mentions []Mention) ([]Mention, bool) {
	if f == nil {
		return mentions, true
	}

	kept := make([]Mention, 0, len(mentions))
	seen := map[string]bool{}
	for _, m := range mentions {
		if !f.allowed[m.Type] {
			continue
		}
		kept = append(kept, m)
		seen[m.Type] = true
	}
	for _, req := range f.required {
		if !seen[req] {
			return nil, false
		}
	}
	return kept, true
}
