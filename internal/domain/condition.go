package domain

import (
	"errors"
	"fmt"
)

// Field names a reading attribute a predicate can test.
type Field string

const (
	FieldTemperature Field = "temperature"
	FieldFeelsLike   Field = "feels_like"
	FieldHumidity    Field = "humidity"
	FieldCondition   Field = "condition"
)

// Numeric reports whether the field holds a number.
func (f Field) Numeric() bool {
	switch f {
	case FieldTemperature, FieldFeelsLike, FieldHumidity:
		return true
	default:
		return false
	}
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	return f.Numeric() || f == FieldCondition
}

// Operator is a predicate comparison.
type Operator string

const (
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
)

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual, OpEqual, OpNotEqual:
		return true
	default:
		return false
	}
}

// Relational reports whether o orders values rather than testing equality.
func (o Operator) Relational() bool {
	switch o {
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		return true
	default:
		return false
	}
}

// Logic joins compound children.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
	LogicNot Logic = "NOT"
)

// Node is a condition tree node: either a Predicate or a Compound.
type Node interface {
	node()
}

// Predicate compares one reading field to a constant. Number is used for
// numeric fields and Text for the condition field.
type Predicate struct {
	Field  Field
	Op     Operator
	Number float64
	Text   string
}

// Compound combines child nodes. NOT takes exactly one child; AND and OR
// take one or more.
type Compound struct {
	Logic    Logic
	Children []Node
}

func (Predicate) node() {}
func (Compound) node()  {}

// Compare builds a numeric predicate.
func Compare(f Field, op Operator, v float64) Predicate {
	return Predicate{Field: f, Op: op, Number: v}
}

// ConditionIs builds a predicate on the condition field.
func ConditionIs(op Operator, v string) Predicate {
	return Predicate{Field: FieldCondition, Op: op, Text: v}
}

// And builds an AND node.
func And(children ...Node) Compound { return Compound{Logic: LogicAnd, Children: children} }

// Or builds an OR node.
func Or(children ...Node) Compound { return Compound{Logic: LogicOr, Children: children} }

// Not builds a NOT node.
func Not(child Node) Compound { return Compound{Logic: LogicNot, Children: []Node{child}} }

// Evaluate walks the tree against one reading. It is pure and total: a
// predicate over a field the reading lacks is false, and so is any node
// Validate would have rejected.
func Evaluate(n Node, r Reading) bool {
	switch n := n.(type) {
	case Predicate:
		return n.matches(r)
	case *Predicate:
		return n != nil && n.matches(r)
	case Compound:
		return n.evaluate(r)
	case *Compound:
		return n != nil && n.evaluate(r)
	default:
		return false
	}
}

func (c Compound) evaluate(r Reading) bool {
	switch c.Logic {
	case LogicAnd:
		if len(c.Children) == 0 {
			return false
		}
		for _, child := range c.Children {
			if !Evaluate(child, r) {
				return false
			}
		}
		return true
	case LogicOr:
		for _, child := range c.Children {
			if Evaluate(child, r) {
				return true
			}
		}
		return false
	case LogicNot:
		if len(c.Children) != 1 {
			return false
		}
		return !Evaluate(c.Children[0], r)
	default:
		return false
	}
}

func (p Predicate) matches(r Reading) bool {
	if p.Field == FieldCondition {
		switch p.Op {
		case OpEqual:
			return r.Condition == p.Text
		case OpNotEqual:
			return r.Condition != p.Text
		default:
			return false
		}
	}

	v, ok := r.numeric(p.Field)
	if !ok {
		return false
	}
	switch p.Op {
	case OpGreater:
		return v > p.Number
	case OpGreaterOrEqual:
		return v >= p.Number
	case OpLess:
		return v < p.Number
	case OpLessOrEqual:
		return v <= p.Number
	case OpEqual:
		return v == p.Number
	case OpNotEqual:
		return v != p.Number
	default:
		return false
	}
}

// Validate checks tree shape, operator/field pairing, and depth. A lone
// predicate has depth 1.
func Validate(n Node, maxDepth int) error {
	if maxDepth < 1 {
		return errors.New("max depth must be at least 1")
	}
	return validate(n, 1, maxDepth)
}

func validate(n Node, depth, maxDepth int) error {
	if depth > maxDepth {
		return fmt.Errorf("condition tree deeper than %d", maxDepth)
	}
	switch n := n.(type) {
	case Predicate:
		return n.validate()
	case *Predicate:
		if n == nil {
			return errors.New("nil predicate")
		}
		return n.validate()
	case Compound:
		return n.validate(depth, maxDepth)
	case *Compound:
		if n == nil {
			return errors.New("nil compound")
		}
		return n.validate(depth, maxDepth)
	case nil:
		return errors.New("empty condition")
	default:
		return fmt.Errorf("unsupported node type %T", n)
	}
}

func (p Predicate) validate() error {
	if !p.Field.Valid() {
		return fmt.Errorf("unknown field %q", p.Field)
	}
	if !p.Op.Valid() {
		return fmt.Errorf("unknown operator %q", p.Op)
	}
	if p.Field == FieldCondition && p.Op.Relational() {
		return fmt.Errorf("operator %q is not allowed on field %q", p.Op, p.Field)
	}
	return nil
}

func (c Compound) validate(depth, maxDepth int) error {
	switch c.Logic {
	case LogicAnd, LogicOr:
		if len(c.Children) == 0 {
			return fmt.Errorf("%s needs at least one child", c.Logic)
		}
	case LogicNot:
		if len(c.Children) != 1 {
			return fmt.Errorf("NOT needs exactly one child, got %d", len(c.Children))
		}
	default:
		return fmt.Errorf("unknown logic %q", c.Logic)
	}
	for _, child := range c.Children {
		if err := validate(child, depth+1, maxDepth); err != nil {
			return err
		}
	}
	return nil
}

// String renders the tree in the prefix form used in logs.
func (p Predicate) String() string {
	if p.Field == FieldCondition {
		return fmt.Sprintf("%s %s %q", p.Field, p.Op, p.Text)
	}
	return fmt.Sprintf("%s %s %g", p.Field, p.Op, p.Number)
}

func (c Compound) String() string {
	s := string(c.Logic) + "("
	for i, child := range c.Children {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprint(child)
	}
	return s + ")"
}
