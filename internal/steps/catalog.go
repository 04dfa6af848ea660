package steps

import (
	"errors"
	"fmt"
	"strings"
)

// Definition describes one stage in the catalog.
type Definition struct {
	Label string
	Kind  Kind
}

// Group is a named, contiguous run of stages.
type Group struct {
	Label string
	Steps []Definition
}

// Catalog is the immutable, flattened view of a set of groups.
type Catalog struct {
	groups      []Group
	flattened   []Definition
	groupStarts []int
	groupOf     []int
	indexOf     map[Kind]int
}

// Step constructs a Definition labelled with the kind's display name.
func Step(kind Kind) Definition {
	return Definition{Label: kind.String(), Kind: kind}
}

// Default returns the demo catalog: five groups, ten steps.
func Default() *Catalog {
	cat, err := New(
		Group{Label: "File Upload", Steps: []Definition{Step(FileUpload)}},
		Group{Label: "Encoding", Steps: []Definition{Step(EncodingStarted), Step(EncodingFinished)}},
		Group{Label: "Decoding", Steps: []Definition{Step(DecodingStarted), Step(DecodedVideo), Step(DecodingFinished)}},
		Group{Label: "Compare PSNR", Steps: []Definition{Step(ComparePSNR)}},
		Group{Label: "Screenshots", Steps: []Definition{Step(UploadScreenshots), Step(ProcessImages), Step(ShowTimestamps)}},
	)
	if err != nil {
		panic(fmt.Sprintf("steps: default catalog invalid: %v", err))
	}
	return cat
}

// New validates the groups and builds the lookup tables.
func New(groups ...Group) (*Catalog, error) {
	if len(groups) == 0 {
		return nil, errors.New("catalog requires at least one group")
	}
	cat := &Catalog{
		groups:      make([]Group, len(groups)),
		groupStarts: make([]int, len(groups)),
		indexOf:     make(map[Kind]int),
	}
	for g, group := range groups {
		if strings.TrimSpace(group.Label) == "" {
			return nil, fmt.Errorf("group %d: label is required", g)
		}
		if len(group.Steps) == 0 {
			return nil, fmt.Errorf("group %q: at least one step is required", group.Label)
		}
		cat.groupStarts[g] = len(cat.flattened)
		stepsCopy := make([]Definition, len(group.Steps))
		for i, def := range group.Steps {
			if strings.TrimSpace(def.Label) == "" {
				return nil, fmt.Errorf("group %q step %d: label is required", group.Label, i)
			}
			if !def.Kind.Valid() {
				return nil, fmt.Errorf("group %q step %q: unknown kind %d", group.Label, def.Label, def.Kind)
			}
			if _, dup := cat.indexOf[def.Kind]; dup {
				return nil, fmt.Errorf("group %q step %q: kind %s declared twice", group.Label, def.Label, def.Kind.Slug())
			}
			cat.indexOf[def.Kind] = len(cat.flattened)
			cat.flattened = append(cat.flattened, def)
			cat.groupOf = append(cat.groupOf, g)
			stepsCopy[i] = def
		}
		cat.groups[g] = Group{Label: group.Label, Steps: stepsCopy}
	}
	return cat, nil
}

// Total returns the number of flattened steps.
func (c *Catalog) Total() int { return len(c.flattened) }

// GroupCount returns the number of groups.
func (c *Catalog) GroupCount() int { return len(c.groups) }

// Groups returns a copy of the group list.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	copy(out, c.groups)
	return out
}

// Group returns the group at g.
func (c *Catalog) Group(g int) (Group, bool) {
	if g < 0 || g >= len(c.groups) {
		return Group{}, false
	}
	return c.groups[g], true
}

// Flattened returns every step in workflow order.
func (c *Catalog) Flattened() []Definition {
	out := make([]Definition, len(c.flattened))
	copy(out, c.flattened)
	return out
}

// GroupStarts returns the flattened index at which each group begins.
func (c *Catalog) GroupStarts() []int {
	out := make([]int, len(c.groupStarts))
	copy(out, c.groupStarts)
	return out
}

// GroupRange returns the half-open flattened range [start, end) of group g.
func (c *Catalog) GroupRange(g int) (start, end int, ok bool) {
	if g < 0 || g >= len(c.groups) {
		return 0, 0, false
	}
	start = c.groupStarts[g]
	return start, start + len(c.groups[g].Steps), true
}

// GroupOf returns the group containing the flattened index.
func (c *Catalog) GroupOf(index int) (int, bool) {
	if !c.Contains(index) {
		return 0, false
	}
	return c.groupOf[index], true
}

// Definition returns the step at the flattened index.
func (c *Catalog) Definition(index int) (Definition, bool) {
	if !c.Contains(index) {
		return Definition{}, false
	}
	return c.flattened[index], true
}

// IndexOf returns the flattened index of kind.
func (c *Catalog) IndexOf(kind Kind) (int, bool) {
	idx, ok := c.indexOf[kind]
	return idx, ok
}

// Contains reports whether index is a valid flattened index.
func (c *Catalog) Contains(index int) bool {
	return index >= 0 && index < len(c.flattened)
}
