package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// #region types

// ID names one psychometric inventory (assessment stage).
type ID string

// ErrUnknownInventory is returned when a caller names an inventory the catalog does not declare.
var ErrUnknownInventory = errors.New("unknown inventory")

// Profile declares the dimension key set, score range, and oracle
// instruction for one inventory.
type Profile struct {
	ID          ID       `yaml:"id"`
	Title       string   `yaml:"title"`
	Dimensions  []string `yaml:"dimensions"`
	Min         float64  `yaml:"min"`
	Max         float64  `yaml:"max"`
	Opening     string   `yaml:"opening"`
	Instruction string   `yaml:"instruction"`
}

// #endregion types

// #region profile

// HasDimension reports whether key belongs to the profile's key set.
func (p Profile) HasDimension(key string) bool {
	for _, d := range p.Dimensions {
		if d == key {
			return true
		}
	}
	return false
}

// Prompt returns the full system instruction sent to the oracle: the
// inventory-specific text followed by the response contract for its key set.
func (p Profile) Prompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Instruction))
	b.WriteString("\n\nReturn JSON strictly in this format:\n{\n")
	fmt.Fprintf(&b, "  \"scores\": {%s},\n", p.fieldList("float"))
	fmt.Fprintf(&b, "  \"confidence\": {%s},\n", p.fieldList("float"))
	b.WriteString("  \"next_question\": \"string\",\n")
	b.WriteString("  \"should_finish\": boolean\n}\n\n")
	fmt.Fprintf(&b, "Scores range from %.1f to %.1f. Confidence ranges from 0.0 to 1.0.\n", p.Min, p.Max)
	b.WriteString("Set \"should_finish\" to true once every confidence is at least 0.8.\n")
	b.WriteString("No other fields and no text outside the JSON.")
	return b.String()
}

func (p Profile) fieldList(typ string) string {
	parts := make([]string, len(p.Dimensions))
	for i, d := range p.Dimensions {
		parts[i] = fmt.Sprintf("%q: %s", d, typ)
	}
	return strings.Join(parts, ", ")
}

func (p Profile) validate() error {
	if p.ID == "" {
		return errors.New("inventory id is empty")
	}
	if len(p.Dimensions) == 0 {
		return fmt.Errorf("inventory %s: no dimensions", p.ID)
	}
	seen := make(map[string]bool, len(p.Dimensions))
	for _, d := range p.Dimensions {
		if d == "" {
			return fmt.Errorf("inventory %s: empty dimension key", p.ID)
		}
		if seen[d] {
			return fmt.Errorf("inventory %s: duplicate dimension %q", p.ID, d)
		}
		seen[d] = true
	}
	if p.Min >= p.Max {
		return fmt.Errorf("inventory %s: min %.2f must be below max %.2f", p.ID, p.Min, p.Max)
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return fmt.Errorf("inventory %s: empty instruction", p.ID)
	}
	return nil
}

// #endregion profile

// #region catalog

// Catalog is the ordered, read-only table of inventories. Its order is the
// stage order every user walks through.
type Catalog struct {
	profiles []Profile
	index    map[ID]int
}

// NewCatalog validates profiles and fixes their order.
func NewCatalog(profiles []Profile) (*Catalog, error) {
	if len(profiles) == 0 {
		return nil, errors.New("catalog has no inventories")
	}
	c := &Catalog{
		profiles: make([]Profile, len(profiles)),
		index:    make(map[ID]int, len(profiles)),
	}
	for i, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("duplicate inventory %s", p.ID)
		}
		p.Dimensions = append([]string(nil), p.Dimensions...)
		c.profiles[i] = p
		c.index[p.ID] = i
	}
	return c, nil
}

// Lookup returns the profile for id, or ErrUnknownInventory.
func (c *Catalog) Lookup(id ID) (Profile, error) {
	i, ok := c.index[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownInventory, id)
	}
	return c.profiles[i], nil
}

// At returns the profile at stage index i.
func (c *Catalog) At(i int) (Profile, error) {
	if i < 0 || i >= len(c.profiles) {
		return Profile{}, fmt.Errorf("stage index %d out of range [0, %d)", i, len(c.profiles))
	}
	return c.profiles[i], nil
}

// Len returns the number of stages.
func (c *Catalog) Len() int {
	return len(c.profiles)
}

// Profiles returns a copy of every profile in stage order.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// #endregion catalog
