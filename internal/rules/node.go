package rules

import (
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
)

// rawNode is the YAML shape of a condition node: either a predicate
// (field/op/value) or exactly one of and/or/not.
type rawNode struct {
	And   []rawNode `yaml:"and"`
	Or    []rawNode `yaml:"or"`
	Not   *rawNode  `yaml:"not"`
	Field string    `yaml:"field"`
	Op    string    `yaml:"op"`
	Value any       `yaml:"value"`

	keys []string
}

var (
	logicKeys     = []string{"and", "or", "not"}
	predicateKeys = []string{"field", "op", "value"}
)

func (n *rawNode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: condition node must be a mapping", value.Line)
	}
	type plain rawNode
	if err := value.Decode((*plain)(n)); err != nil {
		return err
	}
	n.keys = n.keys[:0]
	for i := 0; i < len(value.Content); i += 2 {
		n.keys = append(n.keys, value.Content[i].Value)
	}
	return nil
}

func (n *rawNode) toNode() (domain.Node, error) {
	var logic, pred []string
	for _, k := range n.keys {
		switch {
		case slices.Contains(logicKeys, k):
			logic = append(logic, k)
		case slices.Contains(predicateKeys, k):
			pred = append(pred, k)
		default:
			return nil, fmt.Errorf("unknown condition key %q", k)
		}
	}

	switch {
	case len(logic) > 1:
		return nil, fmt.Errorf("condition node mixes %v", logic)
	case len(logic) == 1 && len(pred) > 0:
		return nil, fmt.Errorf("condition node mixes %s with predicate keys", logic[0])
	case len(logic) == 1:
		return n.compound(logic[0])
	case len(pred) == 0:
		return nil, errors.New("empty condition node")
	default:
		return n.predicate()
	}
}

func (n *rawNode) compound(key string) (domain.Node, error) {
	var (
		op       domain.Logic
		children []rawNode
	)
	switch key {
	case "and":
		op, children = domain.LogicAnd, n.And
	case "or":
		op, children = domain.LogicOr, n.Or
	default:
		if n.Not == nil {
			return nil, errors.New("NOT needs exactly one child, got 0")
		}
		op, children = domain.LogicNot, []rawNode{*n.Not}
	}

	out := domain.Compound{Logic: op, Children: make([]domain.Node, 0, len(children))}
	for i := range children {
		child, err := children[i].toNode()
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, child)
	}
	return out, nil
}

func (n *rawNode) predicate() (domain.Node, error) {
	field := domain.Field(n.Field)
	if !field.Valid() {
		return nil, fmt.Errorf("unknown field %q", n.Field)
	}
	op := domain.Operator(n.Op)
	if !op.Valid() {
		return nil, fmt.Errorf("unknown operator %q", n.Op)
	}

	if field == domain.FieldCondition {
		s, ok := n.Value.(string)
		if !ok {
			return nil, fmt.Errorf("value for %q must be a string", field)
		}
		return domain.ConditionIs(op, s), nil
	}

	var v float64
	switch x := n.Value.(type) {
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint64:
		v = float64(x)
	case float64:
		v = x
	default:
		return nil, fmt.Errorf("value for %q must be a number", field)
	}
	return domain.Compare(field, op, v), nil
}
