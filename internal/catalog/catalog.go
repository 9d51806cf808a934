// Package catalog holds the operator-curated list of products of interest
// and matches free-text tender items against it.
package catalog

import (
	"embed"
	"errors"
	"strings"
)

//go:embed config/catalog.txt
var catalogFS embed.FS

// ErrEmptyCatalog is returned when the raw catalog configuration is empty.
// A catalog with zero entries parsed from non-empty input is valid.
var ErrEmptyCatalog = errors.New("catalog configuration is empty")

// Entry is one product: the canonical name in its original casing plus its
// lowercase keyword variants. The lowercased canonical name is always the
// first keyword.
type Entry struct {
	Name     string
	Keywords []string
}

// Catalog is an ordered set of product entries. Iteration order is the
// order lines appear in the source text; a duplicated canonical name
// replaces the earlier entry's keywords in place (last line wins).
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// Load parses the embedded production catalog.
func Load() (*Catalog, error) {
	data, err := catalogFS.ReadFile("config/catalog.txt")
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse builds a Catalog from raw tab-delimited text: one product per
// line, CANONICAL_NAME<TAB>comma,separated,keywords. The second field is
// optional. Blank lines are skipped.
func Parse(raw string) (*Catalog, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{index: make(map[string]int)}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}

		keywords := []string{strings.ToLower(name)}
		if len(parts) > 1 {
			for _, kw := range strings.Split(parts[1], ",") {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw != "" {
					keywords = appendUnique(keywords, kw)
				}
			}
		}

		if i, ok := c.index[name]; ok {
			// Last line wins; the entry keeps its original position.
			c.entries[i].Keywords = keywords
			continue
		}
		c.index[name] = len(c.entries)
		c.entries = append(c.entries, Entry{Name: name, Keywords: keywords})
	}

	return c, nil
}

// Match reports the canonical product for a tender item. The item name and
// description are lowercased, joined with a space and trimmed; empty text
// matches nothing. Entries are scanned in catalog order and the first
// whose keyword occurs as a substring of the text wins. Containment is
// substring, not token: "ceftri" matches "ceftriaxona-500mg".
func (c *Catalog) Match(itemName, description string) (string, bool) {
	text := strings.TrimSpace(strings.ToLower(itemName) + " " + strings.ToLower(description))
	if text == "" {
		return "", false
	}

	for _, e := range c.entries {
		for _, kw := range e.Keywords {
			if strings.Contains(text, kw) {
				return e.Name, true
			}
		}
	}
	return "", false
}

// Len reports the number of products in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns the catalog in iteration order.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
