// Package catalog describes the oracles users can select.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/oguzhaangumuss/zer0gravis-command-center/internal/domain"
)

//go:embed oracles.yaml
var embedded []byte

// Oracle is a selectable oracle with sample questions.
type Oracle struct {
	Kind     domain.OracleKind `yaml:"kind" json:"kind"`
	Name     string            `yaml:"name" json:"name"`
	Color    string            `yaml:"color" json:"color"`
	Examples []string          `yaml:"examples" json:"examples"`
}

type document struct {
	Oracles []Oracle `yaml:"oracles"`
}

// Catalog is an ordered list of oracles.
type Catalog struct {
	oracles []Oracle
	byKind  map[domain.OracleKind]int
}

// Parse decodes and validates a catalog document. Every routable kind must
// appear exactly once and nothing else may.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse oracle catalog: %w", err)
	}

	c := &Catalog{byKind: make(map[domain.OracleKind]int, len(doc.Oracles))}
	for _, o := range doc.Oracles {
		if !o.Kind.Routable() {
			return nil, fmt.Errorf("oracle catalog: kind %q is not routable", o.Kind)
		}
		if _, dup := c.byKind[o.Kind]; dup {
			return nil, fmt.Errorf("oracle catalog: duplicate kind %q", o.Kind)
		}
		if o.Name == "" {
			return nil, fmt.Errorf("oracle catalog: kind %q has no name", o.Kind)
		}
		c.byKind[o.Kind] = len(c.oracles)
		c.oracles = append(c.oracles, o)
	}
	for _, kind := range domain.RoutableKinds {
		if _, ok := c.byKind[kind]; !ok {
			return nil, fmt.Errorf("oracle catalog: missing kind %q", kind)
		}
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is invalid.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// List returns the oracles in display order.
func (c *Catalog) List() []Oracle {
	out := make([]Oracle, len(c.oracles))
	copy(out, c.oracles)
	return out
}

// Lookup returns the oracle for kind.
func (c *Catalog) Lookup(kind domain.OracleKind) (Oracle, bool) {
	i, ok := c.byKind[kind]
	if !ok {
		return Oracle{}, false
	}
	return c.oracles[i], true
}
