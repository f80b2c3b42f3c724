package domain_test

import (
	"testing"
	"time"

	"github.com/couchcryptid/weather-monitor-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(temp float64, cond string) domain.Reading {
	return domain.Reading{
		City:        "Delhi",
		Timestamp:   time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
		Temperature: temp,
		FeelsLike:   temp,
		Condition:   cond,
	}
}

func hazeOrDust() domain.Node {
	return domain.And(
		domain.Compare(domain.FieldTemperature, domain.OpGreater, 40),
		domain.Or(
			domain.ConditionIs(domain.OpEqual, "Haze"),
			domain.ConditionIs(domain.OpEqual, "Dust"),
		),
	)
}

func TestEvaluate_NestedTree(t *testing.T) {
	tree := hazeOrDust()
	require.NoError(t, domain.Validate(tree, 8))

	assert.True(t, domain.Evaluate(tree, reading(42, "Dust")))
	assert.False(t, domain.Evaluate(tree, reading(42, "Clear")))
	assert.False(t, domain.Evaluate(tree, reading(39, "Haze")))
}

func TestEvaluate_MissingHumidityIsFalse(t *testing.T) {
	rule := domain.Compare(domain.FieldHumidity, domain.OpGreater, 80)
	r := reading(30, "Rain")

	assert.False(t, domain.Evaluate(rule, r))
	// The missing field only falsifies its own predicate.
	assert.True(t, domain.Evaluate(domain.Or(rule, domain.ConditionIs(domain.OpEqual, "Rain")), r))
	assert.True(t, domain.Evaluate(domain.Not(rule), r))

	r.Humidity = domain.Float(85)
	assert.True(t, domain.Evaluate(rule, r))
}

func TestEvaluate_Operators(t *testing.T) {
	r := reading(35, "Clear")
	tests := []struct {
		op   domain.Operator
		want bool
	}{
		{domain.OpGreater, false},
		{domain.OpGreaterOrEqual, true},
		{domain.OpLess, false},
		{domain.OpLessOrEqual, true},
		{domain.OpEqual, true},
		{domain.OpNotEqual, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, domain.Evaluate(domain.Compare(domain.FieldTemperature, tt.op, 35), r))
		})
	}
}

func TestEvaluate_ConditionIsCaseSensitive(t *testing.T) {
	assert.False(t, domain.Evaluate(domain.ConditionIs(domain.OpEqual, "haze"), reading(30, "Haze")))
	assert.True(t, domain.Evaluate(domain.ConditionIs(domain.OpNotEqual, "haze"), reading(30, "Haze")))
}

func TestEvaluate_RelationalOnConditionIsFalse(t *testing.T) {
	bad := domain.ConditionIs(domain.OpGreater, "A")
	assert.False(t, domain.Evaluate(bad, reading(30, "Haze")))
	assert.Error(t, domain.Validate(bad, 8))
}

func TestEvaluate_Deterministic(t *testing.T) {
	tree := hazeOrDust()
	r := reading(42, "Haze")
	first := domain.Evaluate(tree, r)
	for range 50 {
		assert.Equal(t, first, domain.Evaluate(tree, r))
	}
}

func TestValidate(t *testing.T) {
	deep := domain.Node(domain.Compare(domain.FieldTemperature, domain.OpGreater, 1))
	for range 4 {
		deep = domain.Not(deep)
	}

	tests := []struct {
		name    string
		node    domain.Node
		wantErr string
	}{
		{"predicate", domain.Compare(domain.FieldFeelsLike, domain.OpLess, 0), ""},
		{"nested", hazeOrDust(), ""},
		{"depth at limit", deep, ""},
		{"nil", nil, "empty condition"},
		{"unknown field", domain.Predicate{Field: "pressure", Op: domain.OpGreater}, "unknown field"},
		{"unknown operator", domain.Predicate{Field: domain.FieldTemperature, Op: "=~"}, "unknown operator"},
		{"relational on condition", domain.ConditionIs(domain.OpLessOrEqual, "Rain"), "not allowed"},
		{"empty and", domain.And(), "at least one child"},
		{"not with two children", domain.Compound{Logic: domain.LogicNot, Children: []domain.Node{hazeOrDust(), hazeOrDust()}}, "exactly one child"},
		{"unknown logic", domain.Compound{Logic: "XOR", Children: []domain.Node{hazeOrDust()}}, "unknown logic"},
		{"too deep", domain.Not(deep), "deeper than 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.Validate(tt.node, 5)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompound_String(t *testing.T) {
	assert.Equal(t, `AND(temperature > 40, OR(condition == "Haze", condition == "Dust"))`, hazeOrDust().(domain.Compound).String())
}
