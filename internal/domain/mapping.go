package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// formLinePrefix prefixes every computed form line identifier, so bucket
// names and line references cannot collide in formula text.
const formLinePrefix = "line_"

// FormLineKey converts a mapping line id into the identifier used in the
// form line set and in formulas (e.g. "10" -> "line_10").
func FormLineKey(lineID string) string {
	return formLinePrefix + lineID
}

// LineSpec declares how one form line gets its value: copied from a bucket,
// computed by a formula, or defaulted to zero when neither is given.
type LineSpec struct {
	Line    LineID `yaml:"line"`
	Bucket  string `yaml:"bucket,omitempty"`
	Formula string `yaml:"formula,omitempty"`
}

// LineID is a form line identifier. Mapping files write ids as bare
// scalars ("10", 12B), so decoding accepts any scalar kind.
type LineID string

// UnmarshalYAML accepts both quoted and unquoted scalar line ids.
func (l *LineID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line id must be a scalar, got %v", value.Kind)
	}
	*l = LineID(value.Value)
	return nil
}

// MappingSection is one named, ordered group of line specs.
type MappingSection struct {
	Name  string
	Lines []LineSpec
}

// FormMapping is the declarative spec tying form lines to buckets and
// formulas. Section order and line order are significant: lines are
// evaluated strictly in declaration order, and a formula may only reference
// lines computed earlier in that order.
type FormMapping struct {
	Sections []MappingSection
}

// UnmarshalYAML decodes a mapping file preserving section order, which the
// generic map decoding would lose. Top-level entries without a "lines"
// sequence (titles, metadata) are skipped.
func (m *FormMapping) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("form mapping must be a mapping, got %v", value.Kind)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]
		if valNode.Kind != yaml.MappingNode {
			continue
		}

		var section struct {
			Lines []LineSpec `yaml:"lines"`
		}
		if err := valNode.Decode(&section); err != nil {
			return fmt.Errorf("section %q: %w", keyNode.Value, err)
		}
		if section.Lines == nil {
			continue
		}
		m.Sections = append(m.Sections, MappingSection{
			Name:  keyNode.Value,
			Lines: section.Lines,
		})
	}
	return nil
}

// Validate ensures every line id is unique across the whole mapping.
// A duplicate is a configuration error: the later line would silently
// overwrite the earlier one during traversal.
func (m *FormMapping) Validate() error {
	seen := make(map[LineID]string)
	for _, section := range m.Sections {
		for _, line := range section.Lines {
			if prev, ok := seen[line.Line]; ok {
				return fmt.Errorf("%w: line %q declared in sections %q and %q",
					ErrDuplicateLine, line.Line, prev, section.Name)
			}
			seen[line.Line] = section.Name
		}
	}
	return nil
}
