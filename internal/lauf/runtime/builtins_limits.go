package runtime

// limitsBuiltins implements limits_step and limits_set_step_limit
// (spec §5). A compiler targeting this VM inserts limits_step calls
// at function entry and loop back-edges; the dispatch loop itself
// never charges the step budget, so an uninstrumented program simply
// never runs out of steps.
func limitsBuiltins() []Builtin {
	return []Builtin{
		{Name: "limits_step", InputCount: 0, OutputCount: 0, Flags: FlagVMOnly, Func: func(p *Process) *Panic {
			return p.consumeStep()
		}},
		{Name: "limits_set_step_limit", InputCount: 1, OutputCount: 0, Flags: FlagVMOnly, Func: func(p *Process) *Panic {
			n, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			if !p.setStepLimit(n.Uint()) {
				return newPanic(PanicTypeConfusion, "limits_set_step_limit: cannot raise the step ceiling")
			}
			return nil
		}},
	}
}
