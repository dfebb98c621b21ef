package value

import (
	"bytes"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Dump renders v as a YAML document for manual inspection. The output is
// deterministic, keeps Mapping order and is never empty.
func Dump(v Value) string {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node(v)); err != nil {
		return Render(v) + "\n"
	}
	if err := enc.Close(); err != nil || buf.Len() == 0 {
		return Render(v) + "\n"
	}
	return buf.String()
}

func node(v Value) *yaml.Node {
	switch v := v.(type) {
	case Mapping:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, f := range v.Fields {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
				node(f.Value))
		}
		return n
	case Sequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v.Elems {
			n.Content = append(n.Content, node(e))
		}
		return n
	case Matrix:
		if err := v.Validate(); err != nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: Render(v)}
		}
		if v.Rank() == 1 {
			return rowNode(v)
		}
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for r := 0; r < v.Rows(); r++ {
			n.Content = append(n.Content, rowNode(v.Row(r)))
		}
		return n
	case Scalar:
		return scalarNode(v)
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func rowNode(m Matrix) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for i := 0; i < m.Len(); i++ {
		n.Content = append(n.Content, scalarNode(m.Elem1(i)))
	}
	return n
}

func scalarNode(s Scalar) *yaml.Node {
	switch s.Kind {
	case KindEmpty:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case KindFloat:
		// untagged: integral floats would otherwise print as "!!float 29"
		return &yaml.Node{Kind: yaml.ScalarNode, Value: yamlFloat(s.F)}
	case KindInt, KindUint:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: s.Text()}
	case KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(s.B)}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Text()}
}

func yamlFloat(f float64) string {
	switch text := FormatFloat(f); text {
	case "":
		return ".nan"
	case "inf":
		return ".inf"
	case "-inf":
		return "-.inf"
	default:
		return text
	}
}
