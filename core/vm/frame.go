package vm

import (
	"github.com/evmts/xvi-sub002/core/types"
)

// Frame is per-call execution state: address, caller, call-value, static
// flag, call-depth, bytecode, PC, stack, memory, gas remaining, the most
// recent sub-call's return data, a back-reference to the shared
// Environment, and the terminal halt state once Run finishes.
type Frame struct {
	Address  types.Address // this call's own address (code executes "as" this address)
	Caller   types.Address
	CodeHash types.Hash
	Code     []byte
	Input    []byte

	Value    Word
	Gas      uint64
	IsStatic bool
	Depth    int

	PC     uint64
	Stack  *Stack
	Memory *Memory

	ReturnData []byte // output of the most recently completed sub-call

	Env Environment

	// Tracer, when non-nil, receives a CaptureState call before every
	// opcode executes. A production EVM wires this from its own
	// configuration; tests and scripted runs leave it nil.
	Tracer EVMLogger

	halted bool
	Halt   HaltReason
	Output []byte // RETURN/REVERT payload

	jumpdests map[uint64]bool
}

// NewFrame constructs a Frame ready to Run. env must not be nil; gas is the
// budget this call begins with.
func NewFrame(addr, caller types.Address, value *Word, isStatic bool, depth int, code, input []byte, gas uint64, env Environment) *Frame {
	f := &Frame{
		Address:  addr,
		Caller:   caller,
		Code:     code,
		Input:    input,
		Gas:      gas,
		IsStatic: isStatic,
		Depth:    depth,
		Stack:    NewStack(),
		Memory:   NewMemory(),
		Env:      env,
	}
	if value != nil {
		f.Value = *value
	}
	return f
}

// GetOp returns the opcode byte at position n, or STOP past the end of
// code (the dispatch loop treats running off the end of code as an
// implicit STOP).
func (f *Frame) GetOp(n uint64) OpCode {
	if n < uint64(len(f.Code)) {
		return OpCode(f.Code[n])
	}
	return STOP
}

// UseGas attempts to consume gas; returns false (without mutating Gas) if
// insufficient, letting the caller halt OutOfGas before any state change.
func (f *Frame) UseGas(gas uint64) bool {
	if f.Gas < gas {
		return false
	}
	f.Gas -= gas
	return true
}

// RefundGas credits gas back to the frame, used when a sub-call returns
// unused gas.
func (f *Frame) RefundGas(gas uint64) {
	f.Gas += gas
}

// ValidJumpdest reports whether dest is a legal JUMP/JUMPI target: in code
// bounds, a JUMPDEST byte, and not inside PUSH immediate data.
func (f *Frame) ValidJumpdest(dest *Word) bool {
	if dest.BitLen() > 63 {
		return false
	}
	udest := dest.Uint64()
	if udest >= uint64(len(f.Code)) {
		return false
	}
	if OpCode(f.Code[udest]) != JUMPDEST {
		return false
	}
	return f.isCode(udest)
}

func (f *Frame) isCode(pos uint64) bool {
	if f.jumpdests == nil {
		f.jumpdests = make(map[uint64]bool)
		f.analyzeJumpdests()
	}
	return f.jumpdests[pos]
}

// analyzeJumpdests scans code once, marking byte positions that are real
// JUMPDEST opcodes rather than bytes embedded in a preceding PUSH's
// immediate data.
func (f *Frame) analyzeJumpdests() {
	code := f.Code
	for i := uint64(0); i < uint64(len(code)); i++ {
		op := OpCode(code[i])
		if op == JUMPDEST {
			f.jumpdests[i] = true
		}
		if op.IsPush() {
			i += uint64(op - PUSH1 + 1)
		}
	}
}

// setHalt records the terminal state; idempotent after the first call.
func (f *Frame) setHalt(reason HaltReason, output []byte) {
	if f.halted {
		return
	}
	f.halted = true
	f.Halt = reason
	f.Output = output
	if reason.ConsumesAllGas() {
		f.Gas = 0
	}
}

// Halted reports whether Run has already terminated this frame.
func (f *Frame) Halted() bool { return f.halted }
