package runtime

import (
	"math"
	"math/bits"

	"github.com/lauf-lang/lauf/internal/lauf/value"
)

// overflowMode names the three ways an arithmetic built-in handles an
// out-of-range result (spec §4.E).
type overflowMode int

const (
	modePanic overflowMode = iota
	modeWrap
	modeSaturate
)

func popOperands(p *Process) (a, b uint64, panicked *Panic) {
	f := p.currentFiber()
	rhs, ok := f.vstack.Pop()
	if !ok {
		return 0, 0, newPanic(PanicTypeConfusion, "arithmetic built-in: value stack underflow")
	}
	lhs, ok := f.vstack.Pop()
	if !ok {
		return 0, 0, newPanic(PanicTypeConfusion, "arithmetic built-in: value stack underflow")
	}
	return lhs, rhs, nil
}

func pushResult(p *Process, w uint64) *Panic {
	if err := p.currentFiber().vstack.Push(w); err != nil {
		return newPanic(PanicStackOverflow, "%v", err)
	}
	return nil
}

func signedArith(name string, mode overflowMode, op func(a, b int64) (int64, bool), trueNegative func(a, b int64) bool) Builtin {
	return Builtin{Name: name, InputCount: 2, OutputCount: 1, Func: func(p *Process) *Panic {
		lhs, rhs, panicked := popOperands(p)
		if panicked != nil {
			return panicked
		}
		a, b := value.Word(lhs).Sint(), value.Word(rhs).Sint()
		result, overflowed := op(a, b)
		if overflowed {
			switch mode {
			case modePanic:
				return newPanic(PanicOverflow, "integer overflow")
			case modeSaturate:
				if trueNegative(a, b) {
					result = math.MinInt64
				} else {
					result = math.MaxInt64
				}
			}
		}
		return pushResult(p, uint64(value.FromSint(result)))
	}}
}

func unsignedArith(name string, mode overflowMode, op func(a, b uint64) (uint64, bool)) Builtin {
	return Builtin{Name: name, InputCount: 2, OutputCount: 1, Func: func(p *Process) *Panic {
		lhs, rhs, panicked := popOperands(p)
		if panicked != nil {
			return panicked
		}
		result, overflowed := op(value.Word(lhs).Uint(), value.Word(rhs).Uint())
		if overflowed {
			switch mode {
			case modePanic:
				return newPanic(PanicOverflow, "integer overflow")
			case modeSaturate:
				result = math.MaxUint64
			}
		}
		return pushResult(p, uint64(value.FromUint(result)))
	}}
}

// lhsNegative and productNegative report the sign of the exact
// (unwrapped) result when an add/sub or a mul overflows, so saturate
// mode clamps toward the bound the true result lies beyond.
func lhsNegative(a, _ int64) bool     { return a < 0 }
func productNegative(a, b int64) bool { return (a < 0) != (b < 0) }

func addSigned(a, b int64) (int64, bool) {
	r := a + b
	overflow := (b > 0 && r < a) || (b < 0 && r > a)
	return r, overflow
}
func subSigned(a, b int64) (int64, bool) {
	r := a - b
	overflow := (b < 0 && r < a) || (b > 0 && r > a)
	return r, overflow
}
func mulSigned(a, b int64) (int64, bool) {
	// Full 128-bit signed product via bits.Mul64's unsigned multiply,
	// corrected for two's-complement cross terms when either operand is
	// negative (Hacker's Delight-style signed-from-unsigned widening).
	// Catches MinInt64 * -1, where a naive r/b != a check would miss the
	// overflow because Go's division special-cases that quotient.
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	r := int64(lo)
	want := uint64(0)
	if r < 0 {
		want = math.MaxUint64
	}
	return r, hi != want
}

func addUnsigned(a, b uint64) (uint64, bool) {
	r := a + b
	return r, r < a
}
func subUnsigned(a, b uint64) (uint64, bool) {
	return a - b, b > a
}
func mulUnsigned(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi != 0
}

// arithmeticBuiltins implements the signed/unsigned add/sub/mul
// (panic/wrap/saturate), compare, bitwise, and shift built-ins (spec
// §4.E).
func arithmeticBuiltins() []Builtin {
	var out []Builtin
	for _, m := range []struct {
		suffix string
		mode   overflowMode
	}{{"panic", modePanic}, {"wrap", modeWrap}, {"saturate", modeSaturate}} {
		out = append(out,
			signedArith("sadd_"+m.suffix, m.mode, addSigned, lhsNegative),
			signedArith("ssub_"+m.suffix, m.mode, subSigned, lhsNegative),
			signedArith("smul_"+m.suffix, m.mode, mulSigned, productNegative),
			unsignedArith("uadd_"+m.suffix, m.mode, addUnsigned),
			unsignedArith("usub_"+m.suffix, m.mode, subUnsigned),
			unsignedArith("umul_"+m.suffix, m.mode, mulUnsigned),
		)
	}

	out = append(out, Builtin{Name: "scmp", InputCount: 2, OutputCount: 1, Flags: FlagNoProcess, Func: func(p *Process) *Panic {
		lhs, rhs, panicked := popOperands(p)
		if panicked != nil {
			return panicked
		}
		a, b := value.Word(lhs).Sint(), value.Word(rhs).Sint()
		return pushResult(p, uint64(value.FromSint(int64(cmp(a, b)))))
	}})
	out = append(out, Builtin{Name: "ucmp", InputCount: 2, OutputCount: 1, Flags: FlagNoProcess, Func: func(p *Process) *Panic {
		lhs, rhs, panicked := popOperands(p)
		if panicked != nil {
			return panicked
		}
		a, b := value.Word(lhs).Uint(), value.Word(rhs).Uint()
		var c int64
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
		return pushResult(p, uint64(value.FromSint(c)))
	}})

	out = append(out,
		bitwiseBuiltin("band", func(a, b uint64) uint64 { return a & b }),
		bitwiseBuiltin("bor", func(a, b uint64) uint64 { return a | b }),
		bitwiseBuiltin("bxor", func(a, b uint64) uint64 { return a ^ b }),
	)

	out = append(out, shiftBuiltin("shl", func(a uint64, n uint) uint64 { return a << n }))
	out = append(out, shiftBuiltin("shr_logical", func(a uint64, n uint) uint64 { return a >> n }))
	out = append(out, Builtin{Name: "shr_arith", InputCount: 2, OutputCount: 1, Flags: FlagNoProcess, Func: func(p *Process) *Panic {
		lhs, rhs, panicked := popOperands(p)
		if panicked != nil {
			return panicked
		}
		n := value.Word(rhs).Uint()
		if n >= 64 {
			return newPanic(PanicShiftOutOfRange, "shift amount %d out of range", n)
		}
		return pushResult(p, uint64(value.FromSint(value.Word(lhs).Sint()>>n)))
	}})

	return out
}

func cmp(a, b int64) int64 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func bitwiseBuiltin(name string, op func(a, b uint64) uint64) Builtin {
	return Builtin{Name: name, InputCount: 2, OutputCount: 1, Flags: FlagNoProcess, Func: func(p *Process) *Panic {
		lhs, rhs, panicked := popOperands(p)
		if panicked != nil {
			return panicked
		}
		return pushResult(p, op(lhs, rhs))
	}}
}

func shiftBuiltin(name string, op func(a uint64, n uint) uint64) Builtin {
	return Builtin{Name: name, InputCount: 2, OutputCount: 1, Flags: FlagNoProcess, Func: func(p *Process) *Panic {
		lhs, rhs, panicked := popOperands(p)
		if panicked != nil {
			return panicked
		}
		n := value.Word(rhs).Uint()
		if n >= 64 {
			return newPanic(PanicShiftOutOfRange, "shift amount %d out of range", n)
		}
		return pushResult(p, op(lhs, uint(n)))
	}}
}
