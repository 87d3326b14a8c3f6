package sandbox

import (
	"math"
	"math/big"
	"math/bits"
)

// maxIntBits bounds intermediate integers. Wider results are overflow
// faults.
const maxIntBits = 1 << 14

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// num is a dynamically typed number: an int64, an arbitrary precision
// integer when b is set, or a float64 when isFloat is set. Integer
// arithmetic is exact; only the final result has to fit in an int64.
// Mixing integers and floats promotes to float, true division always
// yields a float.
//
// b is set only for values outside the int64 range and is never mutated
// once stored in a num.
type num struct {
	i       int64
	b       *big.Int
	f       float64
	isFloat bool
}

func intNum(i int64) num     { return num{i: i} }
func floatNum(f float64) num { return num{f: f, isFloat: true} }

// bigNum normalises x to the narrowest integer form.
func bigNum(x *big.Int) (num, error) {
	if x.IsInt64() {
		return intNum(x.Int64()), nil
	}
	if x.BitLen() > maxIntBits {
		return num{}, ErrOverflow
	}
	return num{b: x}, nil
}

func (n num) bigInt() *big.Int {
	if n.b != nil {
		return n.b
	}
	return big.NewInt(n.i)
}

// sign reports the sign of an integer value.
func (n num) sign() int {
	if n.b != nil {
		return n.b.Sign()
	}
	switch {
	case n.i < 0:
		return -1
	case n.i > 0:
		return 1
	}
	return 0
}

// toFloat converts n to a float64. Integers too large for a float are
// overflow faults.
func (n num) toFloat() (float64, error) {
	switch {
	case n.isFloat:
		return n.f, nil
	case n.b != nil:
		f, _ := new(big.Float).SetInt(n.b).Float64()
		if math.IsInf(f, 0) {
			return 0, ErrOverflow
		}
		return f, nil
	}
	return float64(n.i), nil
}

func floats(a, b num) (float64, float64, error) {
	x, err := a.toFloat()
	if err != nil {
		return 0, 0, err
	}
	y, err := b.toFloat()
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// toInt converts the final value of an expression to an integer sample.
// Floats are truncated toward zero; anything outside the int64 range is an
// overflow fault.
func (n num) toInt() (int64, error) {
	if n.b != nil {
		return 0, ErrOverflow
	}
	if !n.isFloat {
		return n.i, nil
	}
	if math.IsNaN(n.f) {
		return 0, ErrDomain
	}
	if math.IsInf(n.f, 0) {
		return 0, ErrOverflow
	}
	tr := math.Trunc(n.f)
	if tr >= 9.223372036854775807e18 || tr < -9.223372036854775808e18 {
		return 0, ErrOverflow
	}
	return int64(tr), nil
}

// floatToInt converts an integral float to an integer, which may be wider
// than int64.
func floatToInt(f float64) (num, error) {
	if math.IsNaN(f) {
		return num{}, ErrDomain
	}
	if math.IsInf(f, 0) {
		return num{}, ErrOverflow
	}
	if f >= -9.223372036854775808e18 && f < 9.223372036854775807e18 {
		return intNum(int64(f)), nil
	}
	z, _ := new(big.Float).SetFloat64(f).Int(nil)
	return bigNum(z)
}

func negateNum(a num) num {
	switch {
	case a.isFloat:
		return floatNum(-a.f)
	case a.b != nil:
		n, _ := bigNum(new(big.Int).Neg(a.b))
		return n
	case a.i == math.MinInt64:
		return num{b: new(big.Int).Neg(big.NewInt(a.i))}
	}
	return intNum(-a.i)
}

func addChecked(a, b int64) (int64, bool) {
	s := a + b
	return s, (a^s)&(b^s) >= 0
}

func subChecked(a, b int64) (int64, bool) {
	s := a - b
	return s, (a^b)&(a^s) >= 0
}

// binaryOp applies op to a and b.
func binaryOp(op tokenKind, a, b num) (num, error) {
	switch op {
	case tokPlus, tokMinus, tokStar:
		if a.isFloat || b.isFloat {
			x, y, err := floats(a, b)
			if err != nil {
				return num{}, err
			}
			switch op {
			case tokPlus:
				return floatNum(x + y), nil
			case tokMinus:
				return floatNum(x - y), nil
			}
			return floatNum(x * y), nil
		}
		return intArith(op, a, b)
	case tokSlash:
		return trueDiv(a, b)
	case tokDoubleSlash:
		return floorDiv(a, b)
	case tokPercent:
		return floorMod(a, b)
	case tokDoubleStar:
		return power(a, b)
	case tokCaret, tokAmp, tokPipe:
		if a.isFloat || b.isFloat {
			return num{}, ErrType
		}
		if a.b == nil && b.b == nil {
			switch op {
			case tokCaret:
				return intNum(a.i ^ b.i), nil
			case tokAmp:
				return intNum(a.i & b.i), nil
			default:
				return intNum(a.i | b.i), nil
			}
		}
		z := new(big.Int)
		switch op {
		case tokCaret:
			z.Xor(a.bigInt(), b.bigInt())
		case tokAmp:
			z.And(a.bigInt(), b.bigInt())
		default:
			z.Or(a.bigInt(), b.bigInt())
		}
		return bigNum(z)
	case tokShl:
		return shiftLeft(a, b)
	case tokShr:
		return shiftRight(a, b)
	}
	return num{}, ErrType
}

// intArith is exact integer +, - and *.
func intArith(op tokenKind, a, b num) (num, error) {
	if a.b == nil && b.b == nil {
		var r int64
		var ok bool
		switch op {
		case tokPlus:
			r, ok = addChecked(a.i, b.i)
		case tokMinus:
			r, ok = subChecked(a.i, b.i)
		default:
			r, ok = mulChecked(a.i, b.i)
		}
		if ok {
			return intNum(r), nil
		}
	}
	z := new(big.Int)
	switch op {
	case tokPlus:
		z.Add(a.bigInt(), b.bigInt())
	case tokMinus:
		z.Sub(a.bigInt(), b.bigInt())
	default:
		if a.b != nil && b.b != nil && a.b.BitLen()+b.b.BitLen() > maxIntBits+1 {
			return num{}, ErrOverflow
		}
		z.Mul(a.bigInt(), b.bigInt())
	}
	return bigNum(z)
}

// trueDiv returns the correctly rounded float quotient.
func trueDiv(a, b num) (num, error) {
	if !a.isFloat && !b.isFloat {
		if b.sign() == 0 {
			return num{}, ErrDivisionByZero
		}
		if a.b == nil && b.b == nil && exactFloat(a.i) && exactFloat(b.i) {
			return floatNum(float64(a.i) / float64(b.i)), nil
		}
		f, _ := new(big.Rat).SetFrac(a.bigInt(), b.bigInt()).Float64()
		if math.IsInf(f, 0) {
			return num{}, ErrOverflow
		}
		return floatNum(f), nil
	}
	x, y, err := floats(a, b)
	if err != nil {
		return num{}, err
	}
	if y == 0 {
		return num{}, ErrDivisionByZero
	}
	return floatNum(x / y), nil
}

func exactFloat(i int64) bool {
	return i >= -maxExactFloat && i <= maxExactFloat
}

func floorDiv(a, b num) (num, error) {
	if a.isFloat || b.isFloat {
		x, d, err := floats(a, b)
		if err != nil {
			return num{}, err
		}
		if d == 0 {
			return num{}, ErrDivisionByZero
		}
		return floatNum(math.Floor(x / d)), nil
	}
	if b.sign() == 0 {
		return num{}, ErrDivisionByZero
	}
	if a.b == nil && b.b == nil && !(a.i == math.MinInt64 && b.i == -1) {
		q := a.i / b.i
		if a.i%b.i != 0 && (a.i < 0) != (b.i < 0) {
			q--
		}
		return intNum(q), nil
	}
	q, r := new(big.Int).QuoRem(a.bigInt(), b.bigInt(), new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (b.sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return bigNum(q)
}

// floorMod gives the result the sign of the divisor.
func floorMod(a, b num) (num, error) {
	if a.isFloat || b.isFloat {
		x, d, err := floats(a, b)
		if err != nil {
			return num{}, err
		}
		if d == 0 {
			return num{}, ErrDivisionByZero
		}
		r := math.Mod(x, d)
		if r != 0 && (r < 0) != (d < 0) {
			r += d
		}
		return floatNum(r), nil
	}
	if b.sign() == 0 {
		return num{}, ErrDivisionByZero
	}
	if a.b == nil && b.b == nil {
		r := a.i % b.i
		if r != 0 && (r < 0) != (b.i < 0) {
			r += b.i
		}
		return intNum(r), nil
	}
	r := new(big.Int).Rem(a.bigInt(), b.bigInt())
	if r.Sign() != 0 && (r.Sign() < 0) != (b.sign() < 0) {
		r.Add(r, b.bigInt())
	}
	return bigNum(r)
}

func power(a, b num) (num, error) {
	if !a.isFloat && !b.isFloat && b.sign() >= 0 {
		return intPow(a, b)
	}
	x, y, err := floats(a, b)
	if err != nil {
		return num{}, err
	}
	if x == 0 && y < 0 {
		return num{}, ErrDivisionByZero
	}
	r := math.Pow(x, y)
	if math.IsNaN(r) {
		// negative base with a fractional exponent has no real result
		return num{}, ErrDomain
	}
	if math.IsInf(r, 0) && !math.IsInf(x, 0) && !math.IsInf(y, 0) {
		return num{}, ErrOverflow
	}
	return floatNum(r), nil
}

// intPow raises an integer to a non-negative integer power exactly.
func intPow(base, exp num) (num, error) {
	if base.b == nil && exp.b == nil {
		if r, ok := intPow64(base.i, exp.i); ok {
			return intNum(r), nil
		}
	}
	if base.b == nil {
		switch base.i {
		case 0:
			if exp.sign() == 0 {
				return intNum(1), nil
			}
			return intNum(0), nil
		case 1:
			return intNum(1), nil
		case -1:
			if exp.bigInt().Bit(0) == 1 {
				return intNum(-1), nil
			}
			return intNum(1), nil
		}
	}
	// |base| >= 2, so the result has at least (BitLen-1)*exp bits.
	bb := base.bigInt()
	if exp.b != nil || exp.i > int64(maxIntBits/(bb.BitLen()-1)) {
		return num{}, ErrOverflow
	}
	return bigNum(new(big.Int).Exp(bb, big.NewInt(exp.i), nil))
}

func intPow64(base, exp int64) (int64, bool) {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			r, ok := mulChecked(result, base)
			if !ok {
				return 0, false
			}
			result = r
		}
		exp >>= 1
		if exp > 0 {
			b, ok := mulChecked(base, base)
			if !ok {
				return 0, false
			}
			base = b
		}
	}
	return result, true
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(absU(a), absU(b))
	if hi != 0 {
		return 0, false
	}
	if neg {
		if lo > 1<<63 {
			return 0, false
		}
		return -int64(lo), true
	}
	if lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

func absU(a int64) uint64 {
	if a < 0 {
		return uint64(-a)
	}
	return uint64(a)
}

func shiftLeft(a, b num) (num, error) {
	if a.isFloat || b.isFloat {
		return num{}, ErrType
	}
	if b.sign() < 0 {
		return num{}, ErrDomain
	}
	if a.sign() == 0 {
		return intNum(0), nil
	}
	if b.b != nil || b.i > maxIntBits {
		return num{}, ErrOverflow
	}
	if a.b == nil && b.i < 63 {
		r := a.i << uint(b.i)
		if r>>uint(b.i) == a.i {
			return intNum(r), nil
		}
	}
	return bigNum(new(big.Int).Lsh(a.bigInt(), uint(b.i)))
}

// shiftRight is an arithmetic shift: negative values shift towards -1.
func shiftRight(a, b num) (num, error) {
	if a.isFloat || b.isFloat {
		return num{}, ErrType
	}
	if b.sign() < 0 {
		return num{}, ErrDomain
	}
	if b.b != nil || b.i > maxIntBits {
		if a.sign() < 0 {
			return intNum(-1), nil
		}
		return intNum(0), nil
	}
	if a.b == nil {
		if b.i > 63 {
			return intNum(a.i >> 63), nil
		}
		return intNum(a.i >> uint(b.i)), nil
	}
	return bigNum(new(big.Int).Rsh(a.b, uint(b.i)))
}
