package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipeflow/recipeflow/internal/core/run"
	"github.com/recipeflow/recipeflow/internal/core/step"
)

func TestEvalPredicateOps(t *testing.T) {
	scope := run.NewScope(map[string]interface{}{
		"usage":  94,
		"ratio":  0.5,
		"name":   "db-1",
		"empty":  "",
		"zero":   0,
		"truthy": true,
	})

	tests := []struct {
		name string
		pred step.Predicate
		want bool
	}{
		{"exists", step.Predicate{Var: "usage", Op: step.OpExists}, true},
		{"exists missing", step.Predicate{Var: "ghost", Op: step.OpExists}, false},
		{"truthy bool", step.Predicate{Var: "truthy", Op: step.OpTruthy}, true},
		{"truthy zero", step.Predicate{Var: "zero", Op: step.OpTruthy}, false},
		{"truthy empty string", step.Predicate{Var: "empty", Op: step.OpTruthy}, false},
		{"eq string", step.Predicate{Var: "name", Op: step.OpEq, Value: "db-1"}, true},
		{"eq numeric cross-type", step.Predicate{Var: "usage", Op: step.OpEq, Value: 94.0}, true},
		{"ne", step.Predicate{Var: "name", Op: step.OpNe, Value: "db-2"}, true},
		{"gt", step.Predicate{Var: "usage", Op: step.OpGt, Value: 90}, true},
		{"lt", step.Predicate{Var: "ratio", Op: step.OpLt, Value: 1}, true},
		{"gte boundary", step.Predicate{Var: "usage", Op: step.OpGte, Value: 94}, true},
		{"lte false", step.Predicate{Var: "usage", Op: step.OpLte, Value: 90}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalPredicate(&tt.pred, scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalPredicateErrors(t *testing.T) {
	scope := run.NewScope(map[string]interface{}{"name": "db-1"})

	_, err := evalPredicate(&step.Predicate{Var: "ghost", Op: step.OpGt, Value: 1}, scope)
	assert.ErrorIs(t, err, run.ErrUnknownBinding)

	_, err = evalPredicate(&step.Predicate{Var: "name", Op: step.OpGt, Value: 1}, scope)
	assert.Error(t, err, "ordering comparisons need numeric operands")
}

func TestToFloat(t *testing.T) {
	for _, v := range []interface{}{int(3), int32(3), int64(3), uint(3), float32(3), float64(3)} {
		got, ok := toFloat(v)
		require.True(t, ok, "%T", v)
		assert.Equal(t, float64(3), got)
	}
	_, ok := toFloat("3")
	assert.False(t, ok)
	_, ok = toFloat(nil)
	assert.False(t, ok)
}

func TestToFloatMap(t *testing.T) {
	got := toFloatMap(map[string]interface{}{"impact": 0.8, "exposure": 1})
	require.NotNil(t, got)
	assert.Equal(t, 0.8, got["impact"])
	assert.Equal(t, 1.0, got["exposure"])

	assert.Equal(t, map[string]float64{"impact": 0.8}, toFloatMap(map[string]float64{"impact": 0.8}))
	assert.Nil(t, toFloatMap("nope"))
	assert.Nil(t, toFloatMap(nil))
}

func TestAsList(t *testing.T) {
	items, err := asList([]interface{}{1, "a"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = asList([]string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", "y"}, items)

	_, err = asList("scalar")
	assert.ErrorIs(t, err, run.ErrSourceNotList)

	_, err = asList(map[string]interface{}{})
	assert.ErrorIs(t, err, run.ErrSourceNotList)
}
