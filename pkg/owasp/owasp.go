// Package owasp assigns vulnerabilities to OWASP IoT Top 10 categories by
// keyword matching over their description and service details.
package owasp

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vulntor/exposure/pkg/vuln"
)

// Uncategorized is reported when no keyword of any category matches.
const Uncategorized = "Uncategorized"

//go:embed categories.yaml
var defaultCatalog []byte

// Category is one OWASP IoT entry with its trigger keywords.
type Category struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Catalog is an ordered list of categories. Order breaks ties.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// ParseCatalog decodes a YAML catalog. Keywords are lower-cased.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse owasp catalog: %w", err)
	}
	if len(c.Categories) == 0 {
		return nil, fmt.Errorf("parse owasp catalog: no categories")
	}
	for i := range c.Categories {
		if c.Categories[i].Name == "" {
			return nil, fmt.Errorf("parse owasp catalog: category %d has no name", i)
		}
		for j, kw := range c.Categories[i].Keywords {
			c.Categories[i].Keywords[j] = strings.ToLower(kw)
		}
	}
	return &c, nil
}

var defaultCatalogParsed = mustParse(defaultCatalog)

func mustParse(data []byte) *Catalog {
	c, err := ParseCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the built-in OWASP IoT Top 10 catalog.
func Default() *Catalog {
	return defaultCatalogParsed
}

// Input is the text a vulnerability is classified on.
type Input struct {
	Description string
	Service     string
	Product     string
	Version     string
	CVEID       string
}

func (in Input) text() string {
	return strings.ToLower(strings.Join([]string{in.Description, in.Service, in.Product, in.Version, in.CVEID}, " "))
}

// Classify scores every category by how many of its keywords occur in the
// input and returns the highest scorer. Ties go to the category listed first;
// a zero score everywhere yields Uncategorized with no keywords.
func (c *Catalog) Classify(in Input) vuln.Classification {
	text := in.text()

	best := -1
	var bestMatched []string
	for i, cat := range c.Categories {
		var matched []string
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if best < 0 || len(matched) > len(bestMatched) {
			best = i
			bestMatched = matched
		}
	}

	if best < 0 {
		return vuln.Classification{Category: Uncategorized, MatchedKeywords: []string{}}
	}
	return vuln.Classification{Category: c.Categories[best].Name, MatchedKeywords: bestMatched}
}

// Classify runs the default catalog.
func Classify(in Input) vuln.Classification {
	return Default().Classify(in)
}
