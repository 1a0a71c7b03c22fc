package output

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/snapql/internal/core/domain"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format formats data as YAML.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	var err error
	switch v := data.(type) {
	case []*domain.Row:
		err = enc.Encode(rowsNode(v))
	case *domain.Row:
		err = enc.Encode(rowNode(v))
	default:
		err = enc.Encode(data)
	}
	if err != nil {
		return err
	}
	return enc.Close()
}

func rowsNode(rows []*domain.Row) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	if len(rows) == 0 {
		seq.Style = yaml.FlowStyle
	}
	for _, r := range rows {
		seq.Content = append(seq.Content, rowNode(r))
	}
	return seq
}

// rowNode keeps the column order a plain map would lose.
func rowNode(r *domain.Row) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if r == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	for _, col := range r.Columns() {
		v, _ := r.Get(col)
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: col},
			valueNode(v),
		)
	}
	return m
}

func valueNode(v any) *yaml.Node {
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}

	switch x := v.(type) {
	case nil:
		return scalar("!!null", "null")
	case string:
		return scalar("!!str", x)
	case bool:
		return scalar("!!bool", fmt.Sprint(x))
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return scalar("!!int", x.String())
		}
		return scalar("!!float", x.String())
	case int64, int:
		return scalar("!!int", fmt.Sprint(x))
	case float64:
		return scalar("!!float", fmt.Sprint(x))
	case []byte:
		return scalar("!!binary", base64.StdEncoding.EncodeToString(x))
	default:
		var n yaml.Node
		if err := n.Encode(x); err != nil {
			return scalar("!!str", fmt.Sprint(x))
		}
		return &n
	}
}
