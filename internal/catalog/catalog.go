// Package catalog loads the list of courses offered for exclusion.
//
// The list is data, not code: a YAML file supplied by the caller, with a
// built-in default for the School's own programmes.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is a named list of course titles.
type Catalog struct {
	Name            string   `yaml:"name"`
	ExcludedCourses []string `yaml:"excluded_courses"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in default is invalid: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog. Titles are trimmed; blanks and repeats are
// dropped, keeping the first occurrence's position.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if c.ExcludedCourses == nil {
		return nil, errors.New("excluded_courses is missing")
	}
	c.ExcludedCourses = normalize(c.ExcludedCourses)
	return &c, nil
}

// Courses returns a copy of the course titles in file order.
func (c *Catalog) Courses() []string {
	return append([]string(nil), c.ExcludedCourses...)
}

// ParseList splits a comma-separated list of course titles, as used on the
// command line.
func ParseList(s string) []string {
	return normalize(strings.Split(s, ","))
}

func normalize(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, course := range in {
		course = strings.TrimSpace(course)
		if course == "" || seen[course] {
			continue
		}
		seen[course] = true
		out = append(out, course)
	}
	return out
}
