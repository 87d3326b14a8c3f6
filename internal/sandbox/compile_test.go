package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_AcceptsBytebeatFormulas(t *testing.T) {
	formulas := []string{
		"t",
		"t*2",
		"t^t>>3",
		"t&t>>5",
		"t>>4 | (t&t>>5)",
		"(t*5&t>>7)|(t*3&t>>10)",
		"t*(42&t>>10)",
		"t // 3 % 256",
		"t**2 % 255",
		"-t",
		"sin(t/10)*127+128",
		"log(t+1, 2)",
		"floor(t*pi)",
		"0xff & t",
		"0b1010 | t << 1",
		"1_000 + t",
		"1.5e2 * t",
		"atan2(t, 3)",
		"  t * 3  ",
	}
	for _, f := range formulas {
		t.Run(f, func(t *testing.T) {
			p, err := Compile(f)
			require.NoError(t, err)
			_, err = p.Eval(1234)
			assert.NoError(t, err)
		})
	}
}

func TestCompile_RejectsIllegalConstructs(t *testing.T) {
	tests := []struct {
		name    string
		formula string
	}{
		{"unknown name", "x*t"},
		{"import attempt", "__import__(t)"},
		{"nested disallowed call", "sin(open(t))"},
		{"attribute access", "t.real"},
		{"module attribute", "math.sin(t)"},
		{"subscript", "t[0]"},
		{"assignment", "t=3"},
		{"walrus", "(x:=t)"},
		{"augmented assignment", "t<<=2"},
		{"comparison", "t<3"},
		{"equality", "t==3"},
		{"statement separator", "t;t"},
		{"second statement", "t\nt"},
		{"lambda", "lambda: t"},
		{"conditional", "t if t else 1"},
		{"boolean operator", "t and 1"},
		{"not", "not t"},
		{"string literal", "'abc'"},
		{"list display", "{t}"},
		{"bitwise inversion", "~t"},
		{"unary plus", "+t"},
		{"call of variable", "t(3)"},
		{"call of constant", "pi(3)"},
		{"call of parenthesised value", "(t)(3)"},
		{"function as value", "sin+t"},
		{"wrong arity", "sin(t, 2)"},
		{"missing arguments", "atan2(t)"},
		{"keyword argument", "log(t, base=2)"},
		{"tuple", "(t, 2)"},
		{"empty tuple", "()"},
		{"builtin abs", "abs(t)"},
		{"comment", "t # hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.formula)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrCompile))

			var illegal *IllegalConstructError
			assert.True(t, errors.As(err, &illegal), "expected illegal construct, got %v", err)
		})
	}
}

func TestCompile_RejectsMalformedText(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"t +",
		"(t",
		"t)",
		"t t",
		"2t",
		"t $ 3",
		"007",
		"1__0",
		"99999999999999999999",
		"0x",
		"sin(t,",
		"*t",
	}
	for _, f := range tests {
		t.Run(f, func(t *testing.T) {
			_, err := Compile(f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCompile))

			var syntax *SyntaxError
			assert.True(t, errors.As(err, &syntax), "expected syntax error, got %v", err)
		})
	}
}

func TestCompile_RejectsDeepNesting(t *testing.T) {
	f := ""
	for i := 0; i < 500; i++ {
		f += "("
	}
	f += "t"
	for i := 0; i < 500; i++ {
		f += ")"
	}
	_, err := Compile(f)
	assert.True(t, errors.Is(err, ErrCompile))
}

func TestProgram_Eval(t *testing.T) {
	tests := []struct {
		formula string
		t       int64
		want    int64
	}{
		{"t", 7, 7},
		{"t*2", 21, 42},
		{"t^t>>3", 100, 100 ^ (100 >> 3)},
		{"t&t>>5", 1000, 1000 & (1000 >> 5)},
		{"t>>4|t&t>>5", 4096, (4096 >> 4) | (4096 & (4096 >> 5))},
		{"1+2*3", 0, 7},
		{"(1+2)*3", 0, 9},
		{"2**3**2", 0, 512},
		{"-2**2", 0, -4},
		{"2**-1*4", 0, 2},
		{"7//2", 0, 3},
		{"-7//2", 0, -4},
		{"7//-2", 0, -4},
		{"-7%3", 0, 2},
		{"7%-3", 0, -2},
		{"7/2", 0, 3},
		{"-7/2", 0, -3},
		{"1<<4", 0, 16},
		{"t>>100", 5, 0},
		{"-t>>100", 5, -1},
		{"3|4^1&7", 0, 3 | (4 ^ (1 & 7))},
		{"1+2<<3", 0, 24},
		{"floor(7.9)", 0, 7},
		{"ceil(7.1)", 0, 8},
		{"trunc(-7.9)", 0, -7},
		{"floor(t)", 9, 9},
		{"sqrt(t)", 16, 4},
		{"log(1, 2)", 0, 0},
		{"log(t)", 1, 0},
		{"pi*100", 0, 314},
		{"0xff", 0, 255},
		{"0o17", 0, 15},
		{"1_000", 0, 1000},
		{"7.5//2", 0, 3},
		{"-7.5%2", 0, 0},
		{"9223372036854775807+1-1", 0, 9223372036854775807},
		{"-9223372036854775807-1", 0, -9223372036854775808},
		{"(t<<70)&255", 159999, 0},
		{"(t<<70)>>70", 159999, 159999},
		{"t*t*t*t>>50", 159999, 582062},
		{"t**10%1000", 159999, 1},
		{"(1<<100)//(1<<90)", 0, 1024},
		{"(1<<100)/(1<<99)", 0, 2},
		{"-(1<<70)>>68", 0, -4},
		{"((1<<64)|5)&7", 0, 5},
		{"2**64//2**60", 0, 16},
		{"log2(1<<2000)", 0, 2000},
		{"floor(1e20)//10**15", 0, 100000},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			p, err := Compile(tt.formula)
			require.NoError(t, err)
			got, err := p.Eval(tt.t)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProgram_EvalFaults(t *testing.T) {
	tests := []struct {
		formula string
		t       int64
		kind    error
	}{
		{"t/0", 1, ErrDivisionByZero},
		{"1/t", 0, ErrDivisionByZero},
		{"t//0", 1, ErrDivisionByZero},
		{"t%0", 1, ErrDivisionByZero},
		{"t%0.0", 1, ErrDivisionByZero},
		{"0**-1", 0, ErrDivisionByZero},
		{"sqrt(-1-t)", 0, ErrDomain},
		{"log(t)", 0, ErrDomain},
		{"log(t, 1)", 2, ErrDivisionByZero},
		{"exp(t)", 1000, ErrDomain},
		{"acos(t)", 2, ErrDomain},
		{"t<<63", 1, ErrOverflow},
		{"t<<62", 4, ErrOverflow},
		{"t<<-1", 1, ErrDomain},
		{"t>>-1", 1, ErrDomain},
		{"t**64", 2, ErrOverflow},
		{"10.0**400", 0, ErrOverflow},
		{"(-8)**(1/3)", 0, ErrDomain},
		{"t&1.5", 3, ErrType},
		{"t/2^1", 3, ErrType},
		{"1e300*1e300", 0, ErrOverflow},
		{"1e300", 0, ErrOverflow},
		{"9223372036854775807+1", 0, ErrOverflow},
		{"t*t*t*t*t", 159999, ErrOverflow},
		{"2**100000", 0, ErrOverflow},
		{"t<<100000", 1, ErrOverflow},
		{"sin(1<<2000)", 0, ErrOverflow},
		{"(1<<2000)*1.0", 0, ErrOverflow},
		{"log(-(1<<100))", 0, ErrDomain},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			p, err := Compile(tt.formula)
			require.NoError(t, err)
			_, err = p.Eval(tt.t)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrEval))
			assert.True(t, errors.Is(err, tt.kind), "want %v, got %v", tt.kind, err)

			var evalErr *EvalError
			require.True(t, errors.As(err, &evalErr))
			assert.Equal(t, tt.t, evalErr.T)
		})
	}
}

func TestProgram_EvalBatchMatchesEval(t *testing.T) {
	formulas := []string{"t^t>>3", "t*(t>>8|t>>9)&46&t>>8", "sin(t/7)*100", "t**2//7%256", "-t//3", "(t<<70)&255", "t*t*t*t>>50"}
	ts := make([]int64, 3000)
	for i := range ts {
		ts[i] = int64(i * 7)
	}
	for _, f := range formulas {
		t.Run(f, func(t *testing.T) {
			p, err := Compile(f)
			require.NoError(t, err)

			out := make([]int64, len(ts))
			require.NoError(t, p.EvalBatch(ts, out))
			for i, ti := range ts {
				want, err := p.Eval(ti)
				require.NoError(t, err)
				require.Equal(t, want, out[i], "t=%d", ti)
			}
		})
	}
}

func TestProgram_EvalBatchLengthMismatch(t *testing.T) {
	p, err := Compile("t")
	require.NoError(t, err)
	assert.Error(t, p.EvalBatch([]int64{1, 2}, make([]int64, 1)))
	assert.NoError(t, p.EvalBatch(nil, nil))
}

func TestProgram_Source(t *testing.T) {
	p, err := Compile("  t*2 ")
	require.NoError(t, err)
	assert.Equal(t, "t*2", p.Source())
}

func TestFunctions_Sorted(t *testing.T) {
	names := Functions()
	require.NotEmpty(t, names)
	assert.Contains(t, names, "sin")
	assert.Contains(t, names, "log")
	assert.IsIncreasing(t, names)
	assert.NotContains(t, names, "abs")
}
