package eval

import (
	"math"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Registry is an immutable set of named formula functions. It is built once
// at startup and passed explicitly into every Evaluator; there is no
// process-wide function table.
type Registry struct {
	funcs map[string]function.Function
}

// NewRegistry builds a registry from the given function map. The map is
// copied; names are matched case-insensitively.
func NewRegistry(funcs map[string]function.Function) *Registry {
	copied := make(map[string]function.Function, len(funcs))
	for name, fn := range funcs {
		copied[strings.ToLower(name)] = fn
	}
	return &Registry{funcs: copied}
}

// Lookup resolves a function name.
func (r *Registry) Lookup(name string) (function.Function, bool) {
	fn, ok := r.funcs[strings.ToLower(name)]
	return fn, ok
}

// Names returns all registered function names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry builds the standard function set: the numeric and string
// functions from cty's stdlib plus the engine-specific helpers.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]function.Function{
		"abs":    stdlib.AbsoluteFunc,
		"ceil":   stdlib.CeilFunc,
		"floor":  stdlib.FloorFunc,
		"min":    stdlib.MinFunc,
		"max":    stdlib.MaxFunc,
		"upper":  stdlib.UpperFunc,
		"lower":  stdlib.LowerFunc,
		"strlen": stdlib.StrlenFunc,
		"len":    stdlib.StrlenFunc,
		"substr": stdlib.SubstrFunc,
		"trim":   stdlib.TrimSpaceFunc,
		"format": stdlib.FormatFunc,

		"if":         ifFunc,
		"round":      roundFunc,
		"concat":     concatFunc,
		"contains":   containsFunc,
		"startswith": startsWithFunc,
		"endswith":   endsWithFunc,
		"coalesce":   coalesceFunc,
		"number":     numberFunc,
		"text":       textFunc,
		"bool":       boolFunc,
	})
}

// ParseBoolToken maps the engine's fixed boolean token table. The second
// return value reports whether the token was recognized.
func ParseBoolToken(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	}
	return false, false
}

func anyParam(name string) function.Parameter {
	return function.Parameter{
		Name:             name,
		Type:             cty.DynamicPseudoType,
		AllowNull:        true,
		AllowDynamicType: true,
	}
}

// ifFunc selects between two values on a truthy condition. Both branches are
// evaluated before the call; only 'and'/'or' short-circuit.
var ifFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("condition"), anyParam("then"), anyParam("else")},
	Type: func(args []cty.Value) (cty.Type, error) {
		return cty.DynamicPseudoType, nil
	},
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		if Truthy(args[0]) {
			return args[1], nil
		}
		return args[2], nil
	},
})

var roundFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "value", Type: cty.Number}},
	Type:   function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		f, _ := args[0].AsBigFloat().Float64()
		return cty.NumberFloatVal(math.Round(f)), nil
	},
})

var concatFunc = function.New(&function.Spec{
	// AllowDynamicType lets null literals through to the null skip below;
	// without it the call short-circuits to an unknown result.
	VarParam: &function.Parameter{
		Name:             "parts",
		Type:             cty.String,
		AllowNull:        true,
		AllowDynamicType: true,
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		var sb strings.Builder
		for _, arg := range args {
			if arg.IsNull() {
				continue
			}
			sb.WriteString(arg.AsString())
		}
		return cty.StringVal(sb.String()), nil
	},
})

var containsFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "haystack", Type: cty.String},
		{Name: "needle", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.BoolVal(strings.Contains(args[0].AsString(), args[1].AsString())), nil
	},
})

var startsWithFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "value", Type: cty.String},
		{Name: "prefix", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.BoolVal(strings.HasPrefix(args[0].AsString(), args[1].AsString())), nil
	},
})

var endsWithFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "value", Type: cty.String},
		{Name: "suffix", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.BoolVal(strings.HasSuffix(args[0].AsString(), args[1].AsString())), nil
	},
})

// coalesceFunc returns the first non-null argument, or null when all
// arguments are null.
var coalesceFunc = function.New(&function.Spec{
	VarParam: &function.Parameter{
		Name:             "values",
		Type:             cty.DynamicPseudoType,
		AllowNull:        true,
		AllowDynamicType: true,
	},
	Type: func(args []cty.Value) (cty.Type, error) {
		return cty.DynamicPseudoType, nil
	},
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		for _, arg := range args {
			if !arg.IsNull() {
				return arg, nil
			}
		}
		return cty.NullVal(cty.DynamicPseudoType), nil
	},
})

var numberFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value")},
	Type:   function.StaticReturnType(cty.Number),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return convert.Convert(args[0], cty.Number)
	},
})

var textFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value")},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		if args[0].IsNull() {
			return cty.StringVal(""), nil
		}
		return convert.Convert(args[0], cty.String)
	},
})

var boolFunc = function.New(&function.Spec{
	Params: []function.Parameter{anyParam("value")},
	Type:   function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		v := args[0]
		if v.IsNull() {
			return cty.False, nil
		}
		if v.Type() == cty.String {
			b, ok := ParseBoolToken(v.AsString())
			if !ok {
				return cty.NilVal, function.NewArgErrorf(0, "cannot read %q as a boolean", v.AsString())
			}
			return cty.BoolVal(b), nil
		}
		return convert.Convert(v, cty.Bool)
	},
})
