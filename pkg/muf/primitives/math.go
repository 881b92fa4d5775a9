package primitives

import (
	"math"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	"github.com/crystal-mush/gomuck/pkg/muf"
)

func registerMath(b *muf.RegistryBuilder) {
	b.Register("+", primAdd)
	b.Register("-", primSub)
	b.Register("*", primMul)
	b.Register("/", primDiv)
	b.Register("%", primMod)
	b.Register("ABS", primAbs)
	b.Register("SIGN", primSign)
	b.Register("++", primIncr)
	b.Register("--", primDecr)
	b.Register("INT", primInt)
	b.Register("FLOAT", primFloat)
	b.Register("FLOOR", floatFn(math.Floor))
	b.Register("CEIL", floatFn(math.Ceil))
	b.Register("ROUND", floatFn(math.Round))
	b.Register("SQRT", primSqrt)
	b.Register("POW", primPow)
	b.Register("BITOR", bitOp(func(x, y int64) int64 { return x | y }))
	b.Register("BITAND", bitOp(func(x, y int64) int64 { return x & y }))
	b.Register("BITXOR", bitOp(func(x, y int64) int64 { return x ^ y }))
	b.Register("BITSHIFT", primBitShift)
}

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
	opMod
)

// arith applies op to ( x y -- z ). Integer with Integer stays Integer,
// any Float widens to Float, and DbRef plus or minus Integer is an offset DbRef.
func arith(p *muf.Params, op arithOp) muf.Result {
	if r := p.Need(2); !r.Successful() {
		return r
	}
	x, y := p.Stack.Peek(2), p.Stack.Peek(1)

	var out muf.Datum
	switch {
	case x.Type == muf.TypeInteger && y.Type == muf.TypeInteger:
		a, b := x.Int, y.Int
		switch op {
		case opAdd:
			out = muf.IntDatum(a + b)
		case opSub:
			out = muf.IntDatum(a - b)
		case opMul:
			out = muf.IntDatum(a * b)
		case opDiv, opMod:
			if b == 0 {
				return fail(muf.DivisionByZero, "%s: division by zero", p.Name)
			}
			if op == opDiv {
				out = muf.IntDatum(a / b)
			} else {
				out = muf.IntDatum(a % b)
			}
		}
	case x.IsNumber() && y.IsNumber():
		a, b := x.AsFloat(), y.AsFloat()
		switch op {
		case opAdd:
			out = muf.FloatDatum(a + b)
		case opSub:
			out = muf.FloatDatum(a - b)
		case opMul:
			out = muf.FloatDatum(a * b)
		case opDiv, opMod:
			if b == 0 {
				return fail(muf.DivisionByZero, "%s: division by zero", p.Name)
			}
			if op == opDiv {
				out = muf.FloatDatum(a / b)
			} else {
				out = muf.FloatDatum(math.Mod(a, b))
			}
		}
	case x.Type == muf.TypeDbRef && y.Type == muf.TypeInteger && (op == opAdd || op == opSub):
		off := gamedb.DBRef(y.Int)
		if op == opSub {
			off = -off
		}
		out = muf.RefDatum(x.Ref + off)
	case x.Type == muf.TypeInteger && y.Type == muf.TypeDbRef && op == opAdd:
		out = muf.RefDatum(y.Ref + gamedb.DBRef(x.Int))
	default:
		return fail(muf.TypeMismatch, "%s: cannot combine %s and %s", p.Name, x.Type, y.Type)
	}
	p.Stack.PopN(2)
	p.Stack.Push(out)
	return muf.Success()
}

func primAdd(p *muf.Params) muf.Result { return arith(p, opAdd) }
func primSub(p *muf.Params) muf.Result { return arith(p, opSub) }
func primMul(p *muf.Params) muf.Result { return arith(p, opMul) }
func primDiv(p *muf.Params) muf.Result { return arith(p, opDiv) }
func primMod(p *muf.Params) muf.Result { return arith(p, opMod) }

// ( n -- |n| )
func primAbs(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeNumber); !r.Successful() {
		return r
	}
	d := p.Stack.Pop()
	if d.Type == muf.TypeInteger {
		if d.Int < 0 {
			d.Int = -d.Int
		}
	} else {
		d.Float = math.Abs(d.Float)
	}
	p.Stack.Push(d)
	return muf.Success()
}

// ( n -- -1|0|1 )
func primSign(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeNumber); !r.Successful() {
		return r
	}
	f := p.Stack.Pop().AsFloat()
	switch {
	case f > 0:
		p.Stack.Push(muf.IntDatum(1))
	case f < 0:
		p.Stack.Push(muf.IntDatum(-1))
	default:
		p.Stack.Push(muf.IntDatum(0))
	}
	return muf.Success()
}

func bump(d muf.Datum, delta int64) (muf.Datum, bool) {
	switch d.Type {
	case muf.TypeInteger:
		d.Int += delta
	case muf.TypeFloat:
		d.Float += float64(delta)
	case muf.TypeDbRef:
		d.Ref += gamedb.DBRef(delta)
	default:
		return d, false
	}
	return d, true
}

// incr handles ++ and --. On a number it replaces the value; on a
// Variable it updates the variable in place.
func incr(p *muf.Params, delta int64) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	top := p.Stack.Peek(1)
	if top.Type == muf.TypeVariable {
		v, found := p.Vars.LookupVar(top.Str)
		if !found {
			return fail(muf.VariableNotFound, "%s: variable %q not found", p.Name, top.Str)
		}
		if v.IsConstant {
			return fail(muf.VariableIsConstant, "%s: variable %q is constant", p.Name, top.Str)
		}
		nv, valid := bump(v.Value, delta)
		if !valid {
			return fail(muf.TypeMismatch, "%s: variable %q holds %s", p.Name, top.Str, v.Value.Type)
		}
		p.Stack.Pop()
		return muf.Success().WithDirty(v.Name, nv)
	}
	nv, valid := bump(top, delta)
	if !valid {
		return fail(muf.TypeMismatch, "%s: expected number, dbref or variable, got %s", p.Name, top.Type)
	}
	p.Stack.Set(1, nv)
	return muf.Success()
}

func primIncr(p *muf.Params) muf.Result { return incr(p, 1) }
func primDecr(p *muf.Params) muf.Result { return incr(p, -1) }

// ( x -- i ) truncates floats and unwraps dbrefs.
func primInt(p *muf.Params) muf.Result {
	if r := p.Need(1); !r.Successful() {
		return r
	}
	d := p.Stack.Peek(1)
	var n int64
	switch d.Type {
	case muf.TypeInteger:
		n = d.Int
	case muf.TypeFloat:
		if math.IsNaN(d.Float) || math.IsInf(d.Float, 0) {
			return fail(muf.InvalidValue, "INT: %v has no integer value", d.Float)
		}
		n = int64(d.Float)
	case muf.TypeDbRef:
		n = int64(d.Ref)
	default:
		return fail(muf.TypeMismatch, "INT: expected number or dbref, got %s", d.Type)
	}
	p.Stack.Set(1, muf.IntDatum(n))
	return muf.Success()
}

// ( n -- f )
func primFloat(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeNumber); !r.Successful() {
		return r
	}
	p.Stack.Set(1, muf.FloatDatum(p.Stack.Peek(1).AsFloat()))
	return muf.Success()
}

func floatFn(fn func(float64) float64) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Expect(muf.TypeNumber); !r.Successful() {
			return r
		}
		p.Stack.Set(1, muf.FloatDatum(fn(p.Stack.Peek(1).AsFloat())))
		return muf.Success()
	}
}

// ( n -- f )
func primSqrt(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeNumber); !r.Successful() {
		return r
	}
	f := p.Stack.Peek(1).AsFloat()
	if f < 0 {
		return fail(muf.InvalidValue, "SQRT: negative argument %v", f)
	}
	p.Stack.Set(1, muf.FloatDatum(math.Sqrt(f)))
	return muf.Success()
}

// ( base exp -- f )
func primPow(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeNumber, muf.TypeNumber); !r.Successful() {
		return r
	}
	base, exp := p.Stack.Peek(2).AsFloat(), p.Stack.Peek(1).AsFloat()
	v := math.Pow(base, exp)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fail(muf.InvalidValue, "POW: %v ^ %v is undefined", base, exp)
	}
	p.Stack.PopN(2)
	p.Stack.Push(muf.FloatDatum(v))
	return muf.Success()
}

func bitOp(fn func(a, b int64) int64) muf.PrimitiveFunc {
	return func(p *muf.Params) muf.Result {
		if r := p.Expect(muf.TypeInteger, muf.TypeInteger); !r.Successful() {
			return r
		}
		xs := p.Stack.PopN(2)
		p.Stack.Push(muf.IntDatum(fn(xs[0].Int, xs[1].Int)))
		return muf.Success()
	}
}

// ( i shift -- i ) shifts left for positive counts, right for negative.
func primBitShift(p *muf.Params) muf.Result {
	if r := p.Expect(muf.TypeInteger, muf.TypeInteger); !r.Successful() {
		return r
	}
	xs := p.Stack.PopN(2)
	n, s := xs[0].Int, xs[1].Int
	switch {
	case s >= 64 || s <= -64:
		n = 0
	case s >= 0:
		n <<= uint(s)
	default:
		n >>= uint(-s)
	}
	p.Stack.Push(muf.IntDatum(n))
	return muf.Success()
}
