package value

import "fmt"

// Instruction is the fixed 32-bit encoded instruction form: an 8-bit
// opcode plus a 24-bit payload whose interpretation depends on the
// opcode. Fixed width enables O(1) indexing and trivial
// program-counter arithmetic, which is what lets the dispatch loop
// stay a tight decode-and-branch without a variable-length prefix
// scan.
type Instruction uint32

const payloadBits = 24
const payloadMask = uint32(1)<<payloadBits - 1

// Opcode identifies the instruction family; payload interpretation
// is per-opcode (§6 of the spec: literal-pool index, small signed
// immediate, jump offset in instructions, function-local index, or
// packed register fields — lauf only uses the first four).
type Opcode uint8

const (
	OpNop Opcode = iota
	OpReturn
	OpJump
	OpJumpIf
	OpCall
	OpCallIndirect
	OpCallBuiltin
	OpPanic

	OpPushLiteral
	OpPushZero
	OpPushSmallZext
	OpPushSmallNeg
	OpPop
	OpPopOne
	OpPick
	OpRoll

	OpLocalAddr
	OpArgument
)

var opcodeNames = map[Opcode]string{
	OpNop:           "nop",
	OpReturn:        "return",
	OpJump:          "jump",
	OpJumpIf:        "jump_if",
	OpCall:          "call",
	OpCallIndirect:  "call_indirect",
	OpCallBuiltin:   "call_builtin",
	OpPanic:         "panic",
	OpPushLiteral:   "push_literal",
	OpPushZero:      "push_zero",
	OpPushSmallZext: "push_small_zext",
	OpPushSmallNeg:  "push_small_neg",
	OpPop:           "pop",
	OpPopOne:        "pop_one",
	OpPick:          "pick",
	OpRoll:          "roll",
	OpLocalAddr:     "local_addr",
	OpArgument:      "argument",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// Encode packs an opcode and a raw 24-bit payload into an
// instruction word.
func Encode(op Opcode, payload uint32) Instruction {
	return Instruction(uint32(op) | (payload&payloadMask)<<8)
}

// Opcode extracts the 8-bit opcode from bits 0-7.
func (i Instruction) Opcode() Opcode { return Opcode(i & 0xFF) }

// RawPayload extracts the raw unsigned 24-bit payload from bits 8-31.
func (i Instruction) RawPayload() uint32 { return (uint32(i) >> 8) & payloadMask }

// PayloadUint is the payload read as an unsigned 24-bit literal-pool
// or table index.
func (i Instruction) PayloadUint() uint32 { return i.RawPayload() }

// PayloadSint is the payload read as a 24-bit two's-complement signed
// immediate, used by jump offsets.
func (i Instruction) PayloadSint() int32 {
	p := i.RawPayload()
	const signBit = uint32(1) << (payloadBits - 1)
	if p&signBit != 0 {
		return int32(p) - int32(payloadMask) - 1
	}
	return int32(p)
}

// EncodeSigned packs a signed 24-bit payload (jump offsets) into an
// instruction.
func EncodeSigned(op Opcode, payload int32) Instruction {
	return Encode(op, uint32(payload)&payloadMask)
}

func (i Instruction) String() string {
	return fmt.Sprintf("%s %d", i.Opcode(), i.RawPayload())
}
