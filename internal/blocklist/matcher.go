package blocklist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules is the on-disk form of a blocklist.
//
//	domains:
//	  - ads.example.com     # the host and all of its subdomains
//	patterns:
//	  - ^track[0-9]+\.      # regexp matched against the host
//	  - -^track0\.          # leading "-" excludes, overriding everything else
type Rules struct {
	Domains  []string `yaml:"domains"`
	Patterns []string `yaml:"patterns"`
}

// Matcher is an immutable compiled set of rules.
type Matcher struct {
	domains  map[string]struct{}
	include  *regexp.Regexp
	exclude  *regexp.Regexp
	patterns int
}

// ParseRules decodes YAML rules and compiles them. Unknown keys are an
// error; an empty document yields a Matcher that blocks nothing.
func ParseRules(data []byte) (*Matcher, error) {
	var r Rules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return r.Compile()
}

func (r Rules) Compile() (*Matcher, error) {
	m := &Matcher{domains: make(map[string]struct{}, len(r.Domains))}
	for _, d := range r.Domains {
		d = normalizeHost(strings.TrimPrefix(strings.TrimSpace(d), "*."))
		if d == "" {
			continue
		}
		m.domains[d] = struct{}{}
	}

	var include, exclude []string
	for _, p := range r.Patterns {
		p, neg := strings.CutPrefix(strings.TrimSpace(p), "-")
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		if neg {
			exclude = append(exclude, p)
		} else {
			include = append(include, p)
		}
	}
	m.include = union(include)
	m.exclude = union(exclude)
	m.patterns = len(include) + len(exclude)
	return m, nil
}

// Match reports whether host is blocked. Excludes win over both domain and
// pattern matches.
func (m *Matcher) Match(host string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	if m.exclude != nil && m.exclude.MatchString(host) {
		return false
	}
	for h := host; ; {
		if _, ok := m.domains[h]; ok {
			return true
		}
		_, parent, ok := strings.Cut(h, ".")
		if !ok {
			break
		}
		h = parent
	}
	return m.include != nil && m.include.MatchString(host)
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	return len(m.domains) + m.patterns
}

func union(patterns []string) *regexp.Regexp {
	if len(patterns) == 0 {
		return nil
	}
	var sb strings.Builder
	for i, p := range patterns {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("(?:")
		sb.WriteString(p)
		sb.WriteByte(')')
	}
	return regexp.MustCompile(sb.String())
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
