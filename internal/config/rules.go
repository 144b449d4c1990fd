// Package config defines the cleaning rules document and loads it from disk.
//
// The document has up to four optional top-level keys:
//
//	drop_columns:   [Cabin, Ticket]
//	missing_values: {strategy: {Age: median, Embarked: mode}}
//	encoding:       {strategy: {Sex: label, Embarked: onehot}}
//	scaling:        {strategy: {Fare: standard, Age: minmax}}
//
// An absent key decodes to a nil section (or empty DropColumns), which the
// pipeline treats as "stage skipped". Strategy maps keep document order so
// columns are processed in the order the author wrote them.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stage names double as the top-level document keys.
const (
	StageDrop          = "drop_columns"
	StageMissingValues = "missing_values"
	StageEncoding      = "encoding"
	StageScaling       = "scaling"
)

// Method is the per-column operation selected in a strategy map.
type Method int

const (
	MethodUnknown Method = iota
	MethodMedian
	MethodMode
	MethodLabel
	MethodOneHot
	MethodStandard
	MethodMinMax
)

var methodNames = map[Method]string{
	MethodMedian:   "median",
	MethodMode:     "mode",
	MethodLabel:    "label",
	MethodOneHot:   "onehot",
	MethodStandard: "standard",
	MethodMinMax:   "minmax",
}

// ParseMethod maps a method string to a Method. Matching is exact; anything
// else yields MethodUnknown.
func ParseMethod(s string) Method {
	for m, name := range methodNames {
		if name == s {
			return m
		}
	}
	return MethodUnknown
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "unknown"
}

// Stage returns the stage a method belongs to, or "" for MethodUnknown.
func (m Method) Stage() string {
	switch m {
	case MethodMedian, MethodMode:
		return StageMissingValues
	case MethodLabel, MethodOneHot:
		return StageEncoding
	case MethodStandard, MethodMinMax:
		return StageScaling
	default:
		return ""
	}
}

// Assignment binds one column to a method. Raw keeps the method text as
// written so diagnostics can quote it.
type Assignment struct {
	Column string
	Method Method
	Raw    string
}

// StrategyMap is an ordered column → method mapping.
type StrategyMap []Assignment

// Lookup returns the assignment for column.
func (s StrategyMap) Lookup(column string) (Assignment, bool) {
	for _, a := range s {
		if a.Column == column {
			return a, true
		}
	}
	return Assignment{}, false
}

// set adds or overwrites an assignment. A repeated key keeps its first
// position and takes the last value.
func (s *StrategyMap) set(column, raw string) {
	a := Assignment{Column: column, Method: ParseMethod(raw), Raw: raw}
	for i := range *s {
		if (*s)[i].Column == column {
			(*s)[i] = a
			return
		}
	}
	*s = append(*s, a)
}

// UnmarshalYAML decodes a mapping node while preserving key order.
func (s *StrategyMap) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		*s = nil
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: strategy must be a mapping of column to method", n.Line)
	}

	out := make(StrategyMap, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: strategy key must be a column name", k.Line)
		}
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: method for %q must be a string", v.Line, k.Value)
		}
		raw := v.Value
		if v.Tag == "!!null" {
			raw = ""
		}
		out.set(k.Value, raw)
	}
	*s = out
	return nil
}

// UnmarshalJSON decodes an object while preserving key order.
func (s *StrategyMap) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(b)))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("strategy must be an object of column to method")
	}

	out := StrategyMap{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("strategy %q: %w", key, err)
		}
		var method string
		if err := json.Unmarshal(raw, &method); err != nil {
			// Non-string methods are kept verbatim and resolve to MethodUnknown.
			method = string(raw)
		}
		out.set(key, method)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalYAML emits the assignments as a mapping in their stored order.
func (s StrategyMap) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, a := range s {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Column},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Raw},
		)
	}
	return n, nil
}

// MarshalJSON emits the assignments as an object in their stored order.
func (s StrategyMap) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, a := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(a.Column)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.Raw)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Section is a stage block holding a strategy map.
type Section struct {
	Strategy StrategyMap `yaml:"strategy" json:"strategy"`
}

// Active reports whether the section is present and has work to do.
func (s *Section) Active() bool {
	return s != nil && len(s.Strategy) > 0
}

// Rules is the parsed cleaning configuration. It is treated as immutable
// once loaded.
type Rules struct {
	DropColumns   []string `yaml:"drop_columns,omitempty" json:"drop_columns,omitempty"`
	MissingValues *Section `yaml:"missing_values,omitempty" json:"missing_values,omitempty"`
	Encoding      *Section `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Scaling       *Section `yaml:"scaling,omitempty" json:"scaling,omitempty"`
}

// Section returns the section for a stage name, or nil.
func (r Rules) Section(stage string) *Section {
	switch stage {
	case StageMissingValues:
		return r.MissingValues
	case StageEncoding:
		return r.Encoding
	case StageScaling:
		return r.Scaling
	default:
		return nil
	}
}
