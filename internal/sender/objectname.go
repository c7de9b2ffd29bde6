package sender

import (
	"fmt"
	"sort"
	"strings"
)

// ObjectName identifies a remote management object, e.g.
// "Coherence:type=Node,nodeId=1". Properties are kept sorted by key so the
// String form is canonical and usable as a map key.
//
// A pattern ObjectName may end its property list with "*" (match any extra
// properties) and may use "*" as a property value (match any value).
type ObjectName struct {
	domain   string
	props    []property
	wildcard bool
}

type property struct {
	key   string
	value string
}

// ParseObjectName parses "domain:key=value[,key=value...][,*]". Values may be
// double-quoted to contain commas or colons.
func ParseObjectName(s string) (ObjectName, error) {
	domain, rest, ok := strings.Cut(s, ":")
	if !ok {
		return ObjectName{}, fmt.Errorf("object name %q: missing domain separator", s)
	}
	if domain == "" {
		return ObjectName{}, fmt.Errorf("object name %q: empty domain", s)
	}

	on := ObjectName{domain: domain}
	seen := make(map[string]bool)
	for _, part := range splitProperties(rest) {
		if part == "*" {
			on.wildcard = true
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" || v == "" {
			return ObjectName{}, fmt.Errorf("object name %q: malformed property %q", s, part)
		}
		if seen[k] {
			return ObjectName{}, fmt.Errorf("object name %q: duplicate key %q", s, k)
		}
		seen[k] = true
		on.props = append(on.props, property{key: k, value: v})
	}
	if len(on.props) == 0 && !on.wildcard {
		return ObjectName{}, fmt.Errorf("object name %q: no properties", s)
	}

	sort.Slice(on.props, func(i, j int) bool { return on.props[i].key < on.props[j].key })
	return on, nil
}

// MustObjectName is like ParseObjectName but panics on error. Intended for
// constants and tests.
func MustObjectName(s string) ObjectName {
	on, err := ParseObjectName(s)
	if err != nil {
		panic(err)
	}
	return on
}

// splitProperties splits on commas that are not inside double quotes.
func splitProperties(s string) []string {
	var (
		parts  []string
		quoted bool
		start  int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

// Domain returns the domain part of the name.
func (o ObjectName) Domain() string { return o.domain }

// Key returns the value of property k, or "" when absent.
func (o ObjectName) Key(k string) string {
	i := sort.Search(len(o.props), func(i int) bool { return o.props[i].key >= k })
	if i < len(o.props) && o.props[i].key == k {
		return o.props[i].value
	}
	return ""
}

// IsPattern reports whether the name contains any wildcard.
func (o ObjectName) IsPattern() bool {
	if o.wildcard {
		return true
	}
	for _, p := range o.props {
		if p.value == "*" {
			return true
		}
	}
	return false
}

// IsZero reports whether o is the zero ObjectName.
func (o ObjectName) IsZero() bool {
	return o.domain == "" && len(o.props) == 0 && !o.wildcard
}

// String returns the canonical form with properties sorted by key.
func (o ObjectName) String() string {
	if o.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString(o.domain)
	b.WriteByte(':')
	for i, p := range o.props {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	if o.wildcard {
		if len(o.props) > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('*')
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (o ObjectName) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Matches reports whether o is selected by pattern. Every property named in
// the pattern must be present in o with an equal value (or a "*" value);
// unless the pattern has a trailing "*", o may not carry extra properties.
func (o ObjectName) Matches(pattern ObjectName) bool {
	if o.domain != pattern.domain {
		return false
	}
	for _, p := range pattern.props {
		v := o.Key(p.key)
		if v == "" {
			return false
		}
		if p.value != "*" && p.value != v {
			return false
		}
	}
	if !pattern.wildcard && len(o.props) != len(pattern.props) {
		return false
	}
	return true
}

// SortObjectNames sorts names by their canonical string form.
func SortObjectNames(names []ObjectName) {
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
}
