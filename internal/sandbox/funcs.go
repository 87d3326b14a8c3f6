package sandbox

import (
	"math"
	"math/big"
	"sort"
)

// function is an entry of the math whitelist. minArgs and maxArgs bound the
// accepted arity; apply receives exactly that many arguments.
type function struct {
	name    string
	minArgs int
	maxArgs int
	apply   func(args []num) (num, error)
}

// constants are the names, besides the time variable, that may appear as
// values in a formula.
var constants = map[string]num{
	"pi":  floatNum(math.Pi),
	"e":   floatNum(math.E),
	"tau": floatNum(2 * math.Pi),
}

var functions = map[string]*function{}

func init() {
	for name, fn := range map[string]func(float64) float64{
		"sin":     math.Sin,
		"cos":     math.Cos,
		"tan":     math.Tan,
		"asin":    math.Asin,
		"acos":    math.Acos,
		"atan":    math.Atan,
		"sinh":    math.Sinh,
		"cosh":    math.Cosh,
		"tanh":    math.Tanh,
		"asinh":   math.Asinh,
		"acosh":   math.Acosh,
		"atanh":   math.Atanh,
		"exp":     math.Exp,
		"expm1":   math.Expm1,
		"log1p":   math.Log1p,
		"sqrt":    math.Sqrt,
		"cbrt":    math.Cbrt,
		"fabs":    math.Abs,
		"degrees": func(x float64) float64 { return x * 180 / math.Pi },
		"radians": func(x float64) float64 { return x * math.Pi / 180 },
	} {
		registerFloat1(name, fn)
	}
	for name, fn := range map[string]func(float64, float64) float64{
		"atan2":    math.Atan2,
		"pow":      math.Pow,
		"fmod":     math.Mod,
		"hypot":    math.Hypot,
		"copysign": math.Copysign,
	} {
		registerFloat2(name, fn)
	}
	for name, fn := range map[string]func(float64) float64{
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"trunc": math.Trunc,
	} {
		registerRounding(name, fn)
	}
	registerLog("log2", math.Log2, 1)
	registerLog("log10", math.Log10, math.Log10(2))
	functions["log"] = &function{
		name:    "log",
		minArgs: 1,
		maxArgs: 2,
		apply: func(args []num) (num, error) {
			x, err := logOf(args[0], math.Log, math.Ln2)
			if err != nil {
				return num{}, err
			}
			if len(args) == 1 {
				return checkedFloat(x, args[0])
			}
			lb, err := logOf(args[1], math.Log, math.Ln2)
			if err != nil {
				return num{}, err
			}
			if lb == 0 {
				return num{}, ErrDivisionByZero
			}
			return checkedFloat(x/lb, args[0], args[1])
		},
	}
}

// registerLog adds a logarithm that also accepts integers too wide for a
// float64. perBit is the logarithm of 2 in the same base.
func registerLog(name string, fn func(float64) float64, perBit float64) {
	functions[name] = &function{
		name:    name,
		minArgs: 1,
		maxArgs: 1,
		apply: func(args []num) (num, error) {
			r, err := logOf(args[0], fn, perBit)
			if err != nil {
				return num{}, err
			}
			return checkedFloat(r, args[0])
		},
	}
}

// logOf splits wide positive integers into mantissa and binary exponent
// before taking the logarithm.
func logOf(n num, fn func(float64) float64, perBit float64) (float64, error) {
	if n.b != nil {
		if n.b.Sign() < 0 {
			return 0, ErrDomain
		}
		mant := new(big.Float)
		exp := new(big.Float).SetInt(n.b).MantExp(mant)
		m, _ := mant.Float64()
		return fn(m) + float64(exp)*perBit, nil
	}
	x, err := n.toFloat()
	if err != nil {
		return 0, err
	}
	return fn(x), nil
}

func registerFloat1(name string, fn func(float64) float64) {
	functions[name] = &function{
		name:    name,
		minArgs: 1,
		maxArgs: 1,
		apply: func(args []num) (num, error) {
			x, err := args[0].toFloat()
			if err != nil {
				return num{}, err
			}
			return checkedFloat(fn(x), args[0])
		},
	}
}

func registerFloat2(name string, fn func(float64, float64) float64) {
	functions[name] = &function{
		name:    name,
		minArgs: 2,
		maxArgs: 2,
		apply: func(args []num) (num, error) {
			x, y, err := floats(args[0], args[1])
			if err != nil {
				return num{}, err
			}
			return checkedFloat(fn(x, y), args[0], args[1])
		},
	}
}

// registerRounding adds a function returning an integer. Integers pass
// through unchanged.
func registerRounding(name string, fn func(float64) float64) {
	functions[name] = &function{
		name:    name,
		minArgs: 1,
		maxArgs: 1,
		apply: func(args []num) (num, error) {
			if !args[0].isFloat {
				return args[0], nil
			}
			return floatToInt(fn(args[0].f))
		},
	}
}

// checkedFloat turns NaN results, and infinities produced from finite
// inputs, into domain faults.
func checkedFloat(r float64, inputs ...num) (num, error) {
	if math.IsNaN(r) {
		return num{}, ErrDomain
	}
	if math.IsInf(r, 0) {
		for _, in := range inputs {
			if in.isFloat && math.IsInf(in.f, 0) {
				return floatNum(r), nil
			}
		}
		return num{}, ErrDomain
	}
	return floatNum(r), nil
}

// Functions returns the names of the whitelisted math functions, sorted.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
