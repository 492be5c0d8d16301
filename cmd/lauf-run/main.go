// Command lauf-run executes a small lauf bytecode program described
// as JSON on stdin and prints the result as JSON on stdout, logging
// progress to stderr — the same stdin-JSON-in, stdout-JSON-out shape
// as the teacher's prover CLI, minus the multi-line claim/program/
// non-determinism protocol that doesn't apply here.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lauf-lang/lauf/internal/lauf/module"
	"github.com/lauf-lang/lauf/pkg/lauf"
)

// opInput is one instruction in the program's single function, in the
// same "name plus argument" shape a disassembler would print.
type opInput struct {
	Op  string `json:"op"`
	Arg int64  `json:"arg"`
}

// programInput is the JSON program format lauf-run reads from stdin:
// a flat sequence of instructions for a single entry function, with
// no second function and no literal pool, read without needing a
// textual assembler.
type programInput struct {
	InputCount  uint8     `json:"input_count"`
	OutputCount uint8     `json:"output_count"`
	Ops         []opInput `json:"ops"`
	StepLimit   uint64    `json:"step_limit"`
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !scanner.Scan() {
		fatal("failed to read program from stdin")
	}
	var input programInput
	if err := json.Unmarshal(scanner.Bytes(), &input); err != nil {
		fatal(fmt.Sprintf("failed to parse program: %v", err))
	}

	logStderr("building program...")
	prog, err := buildProgram(input)
	if err != nil {
		fatal(fmt.Sprintf("failed to build program: %v", err))
	}

	opts := lauf.DefaultOptions()
	opts.StepLimit = input.StepLimit
	opts.Writer = os.Stderr

	logStderr("executing...")
	vm := lauf.NewVM(lauf.StandardLibrary(), opts)
	result, err := vm.Execute(prog)
	if err != nil {
		fatal(fmt.Sprintf("execution failed: %v", err))
	}

	out, err := json.Marshal(resultJSON(result))
	if err != nil {
		fatal(fmt.Sprintf("failed to serialize result: %v", err))
	}
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}

type resultOutput struct {
	Outputs []uint64 `json:"outputs,omitempty"`
	Panic   string   `json:"panic,omitempty"`
}

func resultJSON(r *lauf.Result) resultOutput {
	if r.Panic != nil {
		return resultOutput{Panic: r.Panic.Error()}
	}
	return resultOutput{Outputs: r.Outputs}
}

func buildProgram(input programInput) (*lauf.Program, error) {
	b := lauf.NewBuilder("lauf-run", "<stdin>")
	library := lauf.StandardLibrary()

	b.StartFunction("main", lauf.Signature{InputCount: input.InputCount, OutputCount: input.OutputCount})
	for _, op := range input.Ops {
		if err := emit(b, library, op); err != nil {
			return nil, err
		}
	}
	entry := b.FinishFunction()

	mod, err := b.Finish()
	if err != nil {
		return nil, err
	}
	return lauf.NewProgram(mod, entry)
}

func emit(b *lauf.Builder, library *lauf.Library, op opInput) error {
	switch op.Op {
	case "push_small_zext":
		b.PushSmallZext(uint32(op.Arg))
	case "push_small_neg":
		b.PushSmallNeg(uint32(op.Arg))
	case "push_zero":
		b.PushZero()
	case "pop_one":
		b.PopOne()
	case "return":
		b.Return()
	case "panic":
		b.Panic()
	default:
		idx, ok := library.Index(op.Op)
		if !ok {
			return fmt.Errorf("unknown op %q", op.Op)
		}
		builtin, _ := library.At(idx)
		b.CallBuiltin(idx, module.BuiltinSignature{
			Name:        builtin.Name,
			InputCount:  builtin.InputCount,
			OutputCount: builtin.OutputCount,
		})
	}
	return nil
}

func logStderr(msg string) {
	fmt.Fprintln(os.Stderr, "lauf-run:", msg)
}

func fatal(msg string) {
	logStderr("error: " + msg)
	os.Exit(1)
}
