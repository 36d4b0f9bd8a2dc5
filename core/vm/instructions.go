package vm

import (
	"github.com/evmts/xvi-sub002/core/types"
	"github.com/evmts/xvi-sub002/crypto"
)

// executionFunc performs an opcode's state mutation. By the time it runs,
// the dispatch loop has already validated opcode availability, stack
// depth, and gas (except for SSTORE/TSTORE, which charge their own gas
// internally so they can defer the static-context check, see opSstore). An
// executionFunc that terminates the frame calls Frame.setHalt itself; the
// loop detects termination via Frame.Halted after every call rather than a
// separate return value.
type executionFunc func(f *Frame)

// dynamicGasFunc computes the opcode-specific gas charge beyond the
// operation's constantGas and beyond memory expansion (which the dispatch
// loop charges generically from operation.memorySize). Returning
// gasOverflow signals an unpayable cost, which the loop treats as
// OutOfGas.
type dynamicGasFunc func(f *Frame, memorySize uint64) uint64

// memorySizeFunc returns the highest memory byte address an operation's
// stack arguments touch, and whether computing it overflowed.
type memorySizeFunc func(stack *Stack) (uint64, bool)

const gasOverflow = ^uint64(0)

// addU64Checked adds a and b (each must fit in 64 bits) and reports
// overflow — either because a or b itself doesn't fit in 64 bits, or
// because the sum wraps. EVM offsets and lengths routinely arrive as
// attacker-controlled 256-bit values; treating anything that doesn't fit
// in 64 bits as an overflow (an unpayable memory expansion) is the correct
// and safe behavior.
func addU64Checked(a, b *Word) (uint64, bool) {
	if a.BitLen() > 64 || b.BitLen() > 64 {
		return 0, true
	}
	x, y := a.Uint64(), b.Uint64()
	sum := x + y
	if sum < x {
		return 0, true
	}
	return sum, false
}

// safeOffset returns w truncated to uint64, or dataLen (i.e. "past the
// end") if w doesn't fit in 64 bits at all — guarding getDataSlice against
// a huge offset that would otherwise alias a small truncated value.
func safeOffset(w *Word, dataLen int) uint64 {
	if w.BitLen() > 64 {
		return uint64(dataLen)
	}
	return w.Uint64()
}

// getDataSlice returns data[start:start+size], right-padded with zero
// bytes if the requested range runs past the end of data (or starts past
// it entirely). This is the read semantics of CALLDATACOPY, CODECOPY, and
// EXTCODECOPY: out-of-bounds reads see zero, never an error.
func getDataSlice(data []byte, start, size uint64) []byte {
	length := uint64(len(data))
	if start > length {
		start = length
	}
	end := start + size
	if end < start || end > length {
		end = length
	}
	out := make([]byte, size)
	copy(out, data[start:end])
	return out
}

// --- Arithmetic (spec 4.2) ---

func opAdd(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.Add(&x, y)
}

func opMul(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.Mul(&x, y)
}

func opSub(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.Sub(&x, y)
}

func opDiv(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.Div(&x, y)
}

func opSdiv(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.SDiv(&x, y)
}

func opMod(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.Mod(&x, y)
}

func opSmod(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.SMod(&x, y)
}

func opAddmod(f *Frame) {
	x, y, z := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Peek()
	z.AddMod(&x, &y, z)
}

func opMulmod(f *Frame) {
	x, y, z := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Peek()
	z.MulMod(&x, &y, z)
}

func opExp(f *Frame) {
	base, exponent := f.Stack.Pop(), f.Stack.Peek()
	exponent.Exp(&base, exponent)
}

func opSignExtend(f *Frame) {
	back, num := f.Stack.Pop(), f.Stack.Peek()
	num.ExtendSign(num, &back)
}

func gasExp(f *Frame, memorySize uint64) uint64 {
	exponent := f.Stack.Back(1)
	if exponent.IsZero() {
		return 0
	}
	return uint64(exponent.BitLen()+7) / 8 * GasExpByte
}

// --- Comparison / Bitwise (spec 4.2) ---

func opLt(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opGt(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opSlt(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opSgt(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opEq(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
}

func opIszero(f *Frame) {
	x := f.Stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
}

func opAnd(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.And(&x, y)
}

func opOr(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.Or(&x, y)
}

func opXor(f *Frame) {
	x, y := f.Stack.Pop(), f.Stack.Peek()
	y.Xor(&x, y)
}

func opNot(f *Frame) {
	x := f.Stack.Peek()
	x.Not(x)
}

func opByte(f *Frame) {
	th, val := f.Stack.Pop(), f.Stack.Peek()
	val.Byte(&th)
}

func opShl(f *Frame) {
	shift, value := f.Stack.Pop(), f.Stack.Peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

func opShr(f *Frame) {
	shift, value := f.Stack.Pop(), f.Stack.Peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

func opSar(f *Frame) {
	shift, value := f.Stack.Pop(), f.Stack.Peek()
	if shift.GtUint64(256) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return
	}
	value.SRsh(value, uint(shift.Uint64()))
}

// --- Keccak256 (spec 4.5) ---

func opKeccak256(f *Frame) {
	offset, size := f.Stack.Pop(), f.Stack.Pop()
	data := f.Memory.Get(offset.Uint64(), size.Uint64())
	f.Stack.Push(WordFromBytes(crypto.Keccak256(data)))
}

func memoryKeccak256(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), stack.Back(1))
}

func gasKeccak256(f *Frame, memorySize uint64) uint64 {
	size := f.Stack.Back(1)
	return toWordSize(size.Uint64()) * GasKeccak256Word
}

// --- Environment (spec 4.8/4.9 surfaces) ---

func opAddress(f *Frame) { f.Stack.Push(AddressToWord(f.Address)) }
func opOrigin(f *Frame)  { f.Stack.Push(AddressToWord(f.Env.Tx().Origin)) }
func opCaller(f *Frame)  { f.Stack.Push(AddressToWord(f.Caller)) }

func opCallValue(f *Frame) {
	v := f.Value
	f.Stack.Push(&v)
}

func opCalldataLoad(f *Frame) {
	offset := f.Stack.Peek()
	start := safeOffset(offset, len(f.Input))
	data := getDataSlice(f.Input, start, 32)
	offset.SetBytes(data)
}

func opCalldataSize(f *Frame) { f.Stack.Push(WordFromUint64(uint64(len(f.Input)))) }

func opCalldataCopy(f *Frame) {
	destOffset, offsetW, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
	start := safeOffset(&offsetW, len(f.Input))
	data := getDataSlice(f.Input, start, size.Uint64())
	f.Memory.Set(destOffset.Uint64(), data)
}

func memoryCalldataCopy(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), stack.Back(2))
}

func opCodeSize(f *Frame) { f.Stack.Push(WordFromUint64(uint64(len(f.Code)))) }

func opCodeCopy(f *Frame) {
	destOffset, offsetW, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
	start := safeOffset(&offsetW, len(f.Code))
	data := getDataSlice(f.Code, start, size.Uint64())
	f.Memory.Set(destOffset.Uint64(), data)
}

func memoryCodeCopy(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), stack.Back(2))
}

func gasCopyWords(f *Frame, memorySize uint64) uint64 {
	size := f.Stack.Back(2)
	return toWordSize(size.Uint64()) * GasCopy
}

func opGasPrice(f *Frame) {
	gp := f.Env.Tx().GasPrice
	if gp == nil {
		gp = NewWord()
	}
	w := *gp
	f.Stack.Push(&w)
}

func gasAccountAccess(f *Frame, addr types.Address) uint64 {
	fork := f.Env.Fork()
	if !fork.IsAtLeast(Berlin) {
		return GasExtAccount(fork, true)
	}
	wasWarm := f.Env.AccessAddress(addr)
	return GasExtAccount(fork, !wasWarm)
}

func opBalance(f *Frame) {
	addrW := f.Stack.Peek()
	addr := WordToAddress(addrW)
	bal := f.Env.GetBalance(addr)
	addrW.Set(bal)
}

func gasBalance(f *Frame, memorySize uint64) uint64 {
	return gasAccountAccess(f, WordToAddress(f.Stack.Back(0)))
}

func opExtcodesize(f *Frame) {
	addrW := f.Stack.Peek()
	addr := WordToAddress(addrW)
	addrW.SetUint64(uint64(f.Env.GetCodeSize(addr)))
}

func gasExtcodesize(f *Frame, memorySize uint64) uint64 {
	return gasAccountAccess(f, WordToAddress(f.Stack.Back(0)))
}

func opExtcodehash(f *Frame) {
	addrW := f.Stack.Peek()
	addr := WordToAddress(addrW)
	if !f.Env.AccountExists(addr) || f.Env.AccountEmpty(addr) {
		addrW.Clear()
		return
	}
	h := f.Env.GetCodeHash(addr)
	addrW.SetBytes(h[:])
}

func gasExtcodehash(f *Frame, memorySize uint64) uint64 {
	return gasAccountAccess(f, WordToAddress(f.Stack.Back(0)))
}

func opExtcodecopy(f *Frame) {
	addrW, destOffset, offsetW, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
	addr := WordToAddress(&addrW)
	code := f.Env.GetCode(addr)
	start := safeOffset(&offsetW, len(code))
	data := getDataSlice(code, start, size.Uint64())
	f.Memory.Set(destOffset.Uint64(), data)
}

func memoryExtcodecopy(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(1), stack.Back(3))
}

func gasExtcodecopy(f *Frame, memorySize uint64) uint64 {
	addr := WordToAddress(f.Stack.Back(0))
	size := f.Stack.Back(3)
	return gasAccountAccess(f, addr) + toWordSize(size.Uint64())*GasCopy
}

func opReturndataSize(f *Frame) { f.Stack.Push(WordFromUint64(uint64(len(f.ReturnData)))) }

func opReturndataCopy(f *Frame) {
	destOffset, offset, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
	if offset.BitLen() > 64 || size.BitLen() > 64 {
		f.setHalt(HaltOutOfBounds, nil)
		return
	}
	start, length := offset.Uint64(), size.Uint64()
	end := start + length
	if end < start || end > uint64(len(f.ReturnData)) {
		f.setHalt(HaltOutOfBounds, nil)
		return
	}
	f.Memory.Set(destOffset.Uint64(), f.ReturnData[start:end])
}

func memoryReturndataCopy(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), stack.Back(2))
}

// --- Block / chain context (spec 4.8) ---

// opBlockhash sources its result from the environment's historical window
// rather than any formula: no computation from the block number alone can
// recover a real ancestor hash. Out-of-range lookups (including the
// current block and anything older than 256 blocks back) return zero.
func opBlockhash(f *Frame) {
	numW := f.Stack.Peek()
	current := f.Env.Block().BlockNumber
	if numW.BitLen() > 64 {
		numW.Clear()
		return
	}
	n := numW.Uint64()
	if n >= current || current-n > 256 {
		numW.Clear()
		return
	}
	h := f.Env.BlockHash(n)
	numW.SetBytes(h[:])
}

func opCoinbase(f *Frame)   { f.Stack.Push(AddressToWord(f.Env.Block().Coinbase)) }
func opTimestamp(f *Frame)  { f.Stack.Push(WordFromUint64(f.Env.Block().Time)) }
func opNumber(f *Frame)     { f.Stack.Push(WordFromUint64(f.Env.Block().BlockNumber)) }
func opPrevRandao(f *Frame) { f.Stack.Push(HashToWord(f.Env.Block().PrevRandao)) }
func opGasLimit(f *Frame)   { f.Stack.Push(WordFromUint64(f.Env.Block().GasLimit)) }
func opChainID(f *Frame)    { f.Stack.Push(WordFromUint64(f.Env.Block().ChainID)) }

func opSelfBalance(f *Frame) { f.Stack.Push(f.Env.GetBalance(f.Address)) }

func opBaseFee(f *Frame) {
	bf := f.Env.Block().BaseFee
	if bf == nil {
		bf = NewWord()
	}
	w := *bf
	f.Stack.Push(&w)
}

func opBlobBaseFee(f *Frame) {
	bf := f.Env.Block().BlobBaseFee
	if bf == nil {
		bf = NewWord()
	}
	w := *bf
	f.Stack.Push(&w)
}

func opBlobHash(f *Frame) {
	idxW := f.Stack.Peek()
	hashes := f.Env.Tx().BlobHashes
	if idxW.BitLen() > 64 {
		idxW.Clear()
		return
	}
	idx := idxW.Uint64()
	if idx >= uint64(len(hashes)) {
		idxW.Clear()
		return
	}
	idxW.SetBytes(hashes[idx][:])
}

// --- Stack, memory, flow (spec 4.3/4.4) ---

func opPop(f *Frame) { f.Stack.Pop() }

func opMload(f *Frame) {
	offset := f.Stack.Peek()
	data := f.Memory.Get(offset.Uint64(), 32)
	offset.SetBytes(data)
}

func memoryMload(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), WordFromUint64(32))
}

func opMstore(f *Frame) {
	offset, value := f.Stack.Pop(), f.Stack.Pop()
	f.Memory.Set32(offset.Uint64(), &value)
}

func memoryMstore(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), WordFromUint64(32))
}

func opMstore8(f *Frame) {
	offset, value := f.Stack.Pop(), f.Stack.Pop()
	f.Memory.Set(offset.Uint64(), []byte{byte(value.Uint64())})
}

func memoryMstore8(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), WordFromUint64(1))
}

func opMcopy(f *Frame) {
	dst, src, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
	n := size.Uint64()
	if n == 0 {
		return
	}
	data := f.Memory.Get(src.Uint64(), n)
	f.Memory.Set(dst.Uint64(), data)
}

func memoryMcopy(stack *Stack) (uint64, bool) {
	dstEnd, ov1 := addU64Checked(stack.Back(0), stack.Back(2))
	srcEnd, ov2 := addU64Checked(stack.Back(1), stack.Back(2))
	if ov1 || ov2 {
		return 0, true
	}
	if dstEnd > srcEnd {
		return dstEnd, false
	}
	return srcEnd, false
}

func gasMcopy(f *Frame, memorySize uint64) uint64 {
	size := f.Stack.Back(2)
	return toWordSize(size.Uint64()) * GasCopy
}

func opJump(f *Frame) {
	dest := f.Stack.Pop()
	if !f.ValidJumpdest(&dest) {
		f.setHalt(HaltInvalidJump, nil)
		return
	}
	f.PC = dest.Uint64()
}

func opJumpi(f *Frame) {
	dest, cond := f.Stack.Pop(), f.Stack.Pop()
	if cond.IsZero() {
		f.PC++
		return
	}
	if !f.ValidJumpdest(&dest) {
		f.setHalt(HaltInvalidJump, nil)
		return
	}
	f.PC = dest.Uint64()
}

func opPc(f *Frame)       { f.Stack.Push(WordFromUint64(f.PC)) }
func opMsize(f *Frame)    { f.Stack.Push(WordFromUint64(uint64(f.Memory.Len()))) }
func opGas(f *Frame)      { f.Stack.Push(WordFromUint64(f.Gas)) }
func opJumpdest(f *Frame) {}

func opSload(f *Frame) {
	slot := f.Stack.Peek()
	h := f.Env.GetStorage(f.Address, WordToHash(slot))
	slot.SetBytes(h[:])
}

func gasSload(f *Frame, memorySize uint64) uint64 {
	slot := WordToHash(f.Stack.Back(0))
	return SloadCost(f.Env, f.Env.Fork(), f.Address, slot)
}

// opSstore charges gas BEFORE checking the static-context flag, a
// deliberate deviation from the ordering every other write opcode follows
// (stack check -> static check -> gas -> mutation). Real clients charge
// SSTORE/TSTORE gas unconditionally so that a reverted static-call trace
// still reports the cost the write would have had.
func opSstore(f *Frame) {
	if f.Env.Fork().IsAtLeast(Istanbul) && f.Gas <= GasCallStipend {
		f.setHalt(HaltOutOfGas, nil)
		return
	}
	slotW, valW := f.Stack.Pop(), f.Stack.Pop()
	slot, newVal := WordToHash(&slotW), WordToHash(&valW)

	gas, refundDelta := SstoreCost(f.Env, f.Env.Fork(), f.Address, slot, newVal)
	if !f.UseGas(gas) {
		f.setHalt(HaltOutOfGas, nil)
		return
	}
	if f.IsStatic {
		f.setHalt(HaltStaticCallViolation, nil)
		return
	}
	ApplySstore(f.Env, f.Address, slot, newVal, refundDelta)
}

func opTload(f *Frame) {
	slot := f.Stack.Peek()
	h := f.Env.GetTransientStorage(f.Address, WordToHash(slot))
	slot.SetBytes(h[:])
}

// opTstore follows the same gas-before-static-check ordering as opSstore.
func opTstore(f *Frame) {
	slotW, valW := f.Stack.Pop(), f.Stack.Pop()
	if !f.UseGas(GasTstore) {
		f.setHalt(HaltOutOfGas, nil)
		return
	}
	if f.IsStatic {
		f.setHalt(HaltStaticCallViolation, nil)
		return
	}
	f.Env.SetTransientStorage(f.Address, WordToHash(&slotW), WordToHash(&valW))
}

// --- Push / Dup / Swap (spec 4.3) ---

func makePush(n uint64) executionFunc {
	return func(f *Frame) {
		start := f.PC + 1
		codeLen := uint64(len(f.Code))
		var buf [32]byte
		if start < codeLen {
			end := start + n
			if end > codeLen {
				end = codeLen
			}
			copy(buf[32-n:], f.Code[start:end])
		}
		f.Stack.Push(WordFromBytes(buf[32-n:]))
		f.PC += 1 + n
	}
}

func opPush0(f *Frame) {
	f.Stack.Push(NewWord())
	f.PC++
}

func makeDup(n int) executionFunc {
	return func(f *Frame) { f.Stack.Dup(n) }
}

func makeSwap(n int) executionFunc {
	return func(f *Frame) { f.Stack.Swap(n) }
}

// --- Log (spec 4.7) ---

func makeLog(n int) executionFunc {
	return func(f *Frame) {
		offset, size := f.Stack.Pop(), f.Stack.Pop()
		topics := make([]types.Hash, n)
		for i := 0; i < n; i++ {
			t := f.Stack.Pop()
			topics[i] = WordToHash(&t)
		}
		data := f.Memory.Get(offset.Uint64(), size.Uint64())
		f.Env.AddLog(&types.Log{Address: f.Address, Topics: topics, Data: data})
	}
}

func memoryLog(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), stack.Back(1))
}

func makeGasLog(n int) dynamicGasFunc {
	return func(f *Frame, memorySize uint64) uint64 {
		size := f.Stack.Back(1)
		return LogGasCost(n, size.Uint64())
	}
}

// --- System: halting opcodes (spec 4.9) ---

func opStop(f *Frame)    { f.setHalt(HaltSuccess, nil) }
func opInvalid(f *Frame) { f.setHalt(HaltInvalidOpcode, nil) }

func opReturn(f *Frame) {
	offset, size := f.Stack.Pop(), f.Stack.Pop()
	out := f.Memory.Get(offset.Uint64(), size.Uint64())
	f.setHalt(HaltSuccess, out)
}

func opRevert(f *Frame) {
	offset, size := f.Stack.Pop(), f.Stack.Pop()
	out := f.Memory.Get(offset.Uint64(), size.Uint64())
	f.setHalt(HaltRevert, out)
}

func memoryReturn(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(0), stack.Back(1))
}

func opSelfdestruct(f *Frame) {
	if f.IsStatic {
		f.setHalt(HaltStaticCallViolation, nil)
		return
	}
	beneficiaryW := f.Stack.Pop()
	beneficiary := WordToAddress(&beneficiaryW)
	f.Env.SelfDestruct(f.Address, beneficiary)
	f.setHalt(HaltSuccess, nil)
}

func gasSelfdestruct(f *Frame, memorySize uint64) uint64 {
	fork := f.Env.Fork()
	beneficiary := WordToAddress(f.Stack.Back(0))
	var cost uint64
	if fork.IsAtLeast(Berlin) {
		wasWarm := f.Env.AccessAddress(beneficiary)
		if !wasWarm {
			cost = ColdAccountAccessCost
		}
	}
	bal := f.Env.GetBalance(f.Address)
	if !bal.IsZero() && fork.IsAtLeast(SpuriousDragon) && f.Env.AccountEmpty(beneficiary) {
		cost += GasCallNewAccount
	}
	return cost
}

// --- System: CALL family (spec 4.9) ---

// memoryCallLike returns the memorySizeFunc for a CALL-family opcode;
// hasValueSlot is true for CALL/CALLCODE, which carry an extra value
// operand between the address and the args offset.
func memoryCallLike(hasValueSlot bool) memorySizeFunc {
	base := 1
	if hasValueSlot {
		base = 2
	}
	return func(stack *Stack) (uint64, bool) {
		argsEnd, ov1 := addU64Checked(stack.Back(base+1), stack.Back(base+2))
		retEnd, ov2 := addU64Checked(stack.Back(base+3), stack.Back(base+4))
		if ov1 || ov2 {
			return 0, true
		}
		if argsEnd > retEnd {
			return argsEnd, false
		}
		return retEnd, false
	}
}

func makeCallGas(kind CallKind) dynamicGasFunc {
	hasValueSlot := kind == CallKindCall || kind == CallKindCallCode
	return func(f *Frame, memorySize uint64) uint64 {
		fork := f.Env.Fork()
		addr := WordToAddress(f.Stack.Back(1))

		var cost uint64
		if fork.IsAtLeast(Berlin) {
			wasWarm := f.Env.AccessAddress(addr)
			if wasWarm {
				cost = WarmStorageReadCost
			} else {
				cost = ColdAccountAccessCost
			}
		} else {
			cost = GasCallBase(fork)
		}

		if hasValueSlot && !f.Stack.Back(2).IsZero() {
			cost += GasCallValueTransfer
			if kind == CallKindCall {
				dead := !f.Env.AccountExists(addr)
				if fork.IsAtLeast(SpuriousDragon) {
					dead = f.Env.AccountEmpty(addr)
				}
				if dead {
					cost += GasCallNewAccount
				}
			}
		}
		return cost
	}
}

func execCallFamily(f *Frame, kind CallKind) {
	gasArg := f.Stack.Pop()
	addrW := f.Stack.Pop()
	var valueArg Word
	if kind == CallKindCall || kind == CallKindCallCode {
		valueArg = f.Stack.Pop()
	}
	argsOff, argsLen := f.Stack.Pop(), f.Stack.Pop()
	retOff, retLen := f.Stack.Pop(), f.Stack.Pop()

	addr := WordToAddress(&addrW)
	hasValue := (kind == CallKindCall || kind == CallKindCallCode) && !valueArg.IsZero()

	if kind == CallKindCall && f.IsStatic && hasValue {
		f.setHalt(HaltStaticCallViolation, nil)
		return
	}

	input := f.Memory.Get(argsOff.Uint64(), argsLen.Uint64())

	fork := f.Env.Fork()
	requested := gasOverflow
	if gasArg.BitLen() <= 64 {
		requested = gasArg.Uint64()
	}
	childGas := ChildGas(fork, f.Gas, requested, hasValue)
	callerCost := CallerCost(childGas, hasValue)
	if !f.UseGas(callerCost) {
		f.setHalt(HaltOutOfGas, nil)
		return
	}

	val := EffectiveCallValue(kind, &valueArg, &f.Value)

	storageAddr := EffectiveStorageAddress(kind, f.Address, addr)
	callCaller := f.Address
	if kind == CallKindDelegateCall {
		callCaller = f.Caller
	}
	isStatic := f.IsStatic || kind == CallKindStaticCall

	outcome := f.Env.Call(CallRequest{
		Kind: kind, Caller: callCaller, CodeAddr: addr, StorageAddr: storageAddr,
		Value: val, Input: input, Gas: childGas, IsStatic: isStatic, Depth: f.Depth + 1,
	})

	f.RefundGas(outcome.GasLeft)
	f.ReturnData = outcome.ReturnData
	retSize := retLen.Uint64()
	if retSize > 0 && len(outcome.ReturnData) > 0 {
		n := retSize
		if uint64(len(outcome.ReturnData)) < n {
			n = uint64(len(outcome.ReturnData))
		}
		f.Memory.Set(retOff.Uint64(), outcome.ReturnData[:n])
	}

	success := NewWord()
	if outcome.Success {
		success.SetOne()
	}
	f.Stack.Push(success)
}

func opCall(f *Frame)         { execCallFamily(f, CallKindCall) }
func opCallCode(f *Frame)     { execCallFamily(f, CallKindCallCode) }
func opDelegateCall(f *Frame) { execCallFamily(f, CallKindDelegateCall) }
func opStaticCall(f *Frame)   { execCallFamily(f, CallKindStaticCall) }

// --- System: CREATE family (spec 4.9) ---

func memoryCreate(stack *Stack) (uint64, bool) {
	return addU64Checked(stack.Back(1), stack.Back(2))
}

func makeCreateGas(kind CreateKind) dynamicGasFunc {
	return func(f *Frame, memorySize uint64) uint64 {
		size := f.Stack.Back(2)
		return CreateUpfrontGas(f.Env.Fork(), kind, int(size.Uint64()))
	}
}

func execCreate(f *Frame, kind CreateKind) {
	if f.IsStatic {
		f.setHalt(HaltStaticCallViolation, nil)
		return
	}
	value, offset, size := f.Stack.Pop(), f.Stack.Pop(), f.Stack.Pop()
	var salt Word
	if kind == CreateKindCreate2 {
		salt = f.Stack.Pop()
	}
	initCode := f.Memory.Get(offset.Uint64(), size.Uint64())

	fork := f.Env.Fork()
	if len(initCode) > MaxInitCodeSizeForFork(fork) {
		f.setHalt(HaltMaxInitCodeSizeExceeded, nil)
		return
	}

	// CREATE never carries a stipend, so transfersValue is always false here;
	// ChildGas still applies EIP-150's 1/64 retention, gated to Tangerine
	// Whistle+, the same as the CALL family.
	childGas := ChildGas(fork, f.Gas, f.Gas, false)
	if !f.UseGas(childGas) {
		f.setHalt(HaltOutOfGas, nil)
		return
	}

	outcome := f.Env.Create(CreateRequest{
		Kind: kind, Caller: f.Address, InitCode: initCode, Value: &value,
		Salt: &salt, Gas: childGas, Depth: f.Depth + 1,
	})
	f.RefundGas(outcome.GasLeft)
	f.ReturnData = outcome.ReturnData

	result := NewWord()
	if outcome.Success {
		result = AddressToWord(outcome.NewAddress)
	}
	f.Stack.Push(result)
}

func opCreate(f *Frame)  { execCreate(f, CreateKindCreate) }
func opCreate2(f *Frame) { execCreate(f, CreateKindCreate2) }
