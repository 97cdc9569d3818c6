// Package reference holds the carrier and airport directories used to turn
// free-text search results into provider codes.
package reference

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed directory.yaml
var defaultDirectory []byte

// DefaultTicketPrefix is used when a carrier has no known ticket stock.
const DefaultTicketPrefix = "000"

type Carrier struct {
	Code         string   `yaml:"code"`
	Name         string   `yaml:"name"`
	Aliases      []string `yaml:"aliases"`
	TicketPrefix string   `yaml:"ticket_prefix"`
	Phone        string   `yaml:"phone"`
}

type Airport struct {
	Code    string   `yaml:"code"`
	City    string   `yaml:"city"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Directory is read-only after construction and safe for concurrent use.
type Directory struct {
	carriers     map[string]Carrier
	carrierNames map[string]string
	nameKeys     []string
	airports     map[string]Airport
	airportNames map[string]string
}

var (
	defaultOnce sync.Once
	defaultDir  *Directory
)

// Default returns the embedded directory. It panics if the embedded file is
// malformed, which is a build defect.
func Default() *Directory {
	defaultOnce.Do(func() {
		d, err := Parse(defaultDirectory)
		if err != nil {
			panic(fmt.Sprintf("reference: embedded directory: %v", err))
		}
		defaultDir = d
	})
	return defaultDir
}

func Parse(data []byte) (*Directory, error) {
	var doc struct {
		Carriers []Carrier `yaml:"carriers"`
		Airports []Airport `yaml:"airports"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse directory: %w", err)
	}

	d := &Directory{
		carriers:     make(map[string]Carrier, len(doc.Carriers)),
		carrierNames: make(map[string]string),
		airports:     make(map[string]Airport, len(doc.Airports)),
		airportNames: make(map[string]string),
	}

	for _, c := range doc.Carriers {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			return nil, fmt.Errorf("carrier %q has no code", c.Name)
		}
		c.Code = code
		d.carriers[code] = c
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			key := nameKey(name)
			if key == "" {
				continue
			}
			if _, ok := d.carrierNames[key]; !ok {
				d.carrierNames[key] = code
				d.nameKeys = append(d.nameKeys, key)
			}
		}
	}
	// Longest names first so "delta air lines" wins over "delta".
	sort.SliceStable(d.nameKeys, func(i, j int) bool {
		return len(d.nameKeys[i]) > len(d.nameKeys[j])
	})

	for _, a := range doc.Airports {
		code := strings.ToUpper(strings.TrimSpace(a.Code))
		if len(code) != 3 {
			return nil, fmt.Errorf("airport %q has invalid code %q", a.Name, a.Code)
		}
		a.Code = code
		d.airports[code] = a
		for _, name := range append([]string{a.Name, a.City}, a.Aliases...) {
			key := nameKey(name)
			if key == "" {
				continue
			}
			if _, ok := d.airportNames[key]; !ok {
				d.airportNames[key] = code
			}
		}
	}

	return d, nil
}

func (d *Directory) Carrier(code string) (Carrier, bool) {
	c, ok := d.carriers[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// CarrierByName matches a full carrier name or alias, ignoring case and punctuation.
func (d *Directory) CarrierByName(name string) (string, bool) {
	code, ok := d.carrierNames[nameKey(name)]
	return code, ok
}

// MatchCarrierName finds a known carrier name contained in text.
func (d *Directory) MatchCarrierName(text string) (string, bool) {
	key := " " + nameKey(text) + " "
	if strings.TrimSpace(key) == "" {
		return "", false
	}
	for _, name := range d.nameKeys {
		if strings.Contains(key, " "+name+" ") {
			return d.carrierNames[name], true
		}
	}
	return "", false
}

// TicketPrefix returns the carrier's ticket stock number or DefaultTicketPrefix.
func (d *Directory) TicketPrefix(code string) string {
	if c, ok := d.Carrier(code); ok && c.TicketPrefix != "" {
		return c.TicketPrefix
	}
	return DefaultTicketPrefix
}

func (d *Directory) Airport(code string) (Airport, bool) {
	a, ok := d.airports[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// AirportByName resolves an airport name, alias or city to its code.
func (d *Directory) AirportByName(name string) (string, bool) {
	code, ok := d.airportNames[nameKey(name)]
	return code, ok
}

// nameKey lowercases and collapses everything but letters, digits and apostrophes.
func nameKey(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
