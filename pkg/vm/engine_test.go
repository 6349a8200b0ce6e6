package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vm"
	"github.com/r3e-network/neo-execution-specs/pkg/vm/opcode"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

func runScript(t *testing.T, script []byte, gasLimit int64) *vm.Engine {
	t.Helper()
	e := vm.NewEngine(gasLimit)
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	e.Run()
	return e
}

// spec.md §8 scenario 1: ADD_basic.
func TestADDBasic(t *testing.T) {
	e := runScript(t, []byte{byte(opcode.PUSH3), byte(opcode.PUSH5), byte(opcode.ADD)}, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Len(t, res, 1)
	require.Equal(t, int64(8), res[0].(stackitem.BigInteger).Value().Int64())
}

// spec.md §8 scenario 2 + invariant 6: SHL by zero must leave the stack
// value unchanged, not empty it (the "common implementation bug").
func TestSHLShiftZero(t *testing.T) {
	e := runScript(t, []byte{byte(opcode.PUSH2), byte(opcode.PUSH0), byte(opcode.SHL)}, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Len(t, res, 1)
	require.Equal(t, int64(2), res[0].(stackitem.BigInteger).Value().Int64())
}

// spec.md §8 invariant 6, SHR side.
func TestSHRShiftZero(t *testing.T) {
	e := runScript(t, []byte{byte(opcode.PUSH2), byte(opcode.PUSH0), byte(opcode.SHR)}, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Equal(t, int64(2), res[0].(stackitem.BigInteger).Value().Int64())
}

// spec.md §8 scenario 3: PACKMAP pops size, then per pair pops the key
// (pushed last, on top) before the value (pushed first) and inserts
// key->value, following the scenario's literal push order: value, key,
// size.
func TestPACKMAPOrder(t *testing.T) {
	script := []byte{
		byte(opcode.PUSH1),             // value 1
		byte(opcode.PUSHDATA1), 1, 'k', // key "k"
		byte(opcode.PUSH1), // size
		byte(opcode.PACKMAP),
	}
	e := runScript(t, script, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Len(t, res, 1)
	m, ok := res[0].(*stackitem.Map)
	require.True(t, ok)
	v, ok := m.Get(stackitem.NewByteArray([]byte("k")))
	require.True(t, ok)
	require.Equal(t, int64(1), v.(stackitem.BigInteger).Value().Int64())
}

// spec.md §8 scenario 5: MEMCPY out of range FAULTs with OutOfRange.
func TestMEMCPYOutOfRange(t *testing.T) {
	script := []byte{
		byte(opcode.PUSH4), byte(opcode.NEWBUFFER), // dst: Buffer(4)
		byte(opcode.PUSH2),                // dstIdx
		byte(opcode.PUSHDATA1), 3, 1, 2, 3, // src bytes, len 3
		byte(opcode.PUSH0), // srcIdx
		byte(opcode.PUSH3), // count: dstIdx(2)+count(3) > len(dst)(4)
		byte(opcode.MEMCPY),
	}
	e := vm.NewEngine(0)
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.Equal(t, vm.StateFault, e.State)
	require.True(t, vmerr.Is(runErr, vmerr.OutOfRange))
}

// spec.md §4.4, §8 invariant 11: TRY/CATCH/FINALLY state machine. A THROWn
// value is caught (left on the stack), control resumes at ENDTRY which
// diverts through the finally block, and the finally block's own effect
// (here, pushing a flag) lands on top of it.
//
// Layout (absolute addresses):
//
//	0: TRY catchOff=5 finallyOff=7   (3 bytes)
//	3: PUSH7                         (1 byte)
//	4: THROW                        (1 byte)
//	5: ENDTRY off=4        <- catch target (2 bytes)
//	7: PUSH1               <- finally target (1 byte, the flag)
//	8: ENDFINALLY                    (1 byte)
//	9: end of script == ENDTRY's resume target
func TestTryCatchFinally(t *testing.T) {
	built := []byte{
		byte(opcode.TRY), 5, 7,
		byte(opcode.PUSH7),
		byte(opcode.THROW),
		byte(opcode.ENDTRY), 4,
		byte(opcode.PUSH1),
		byte(opcode.ENDFINALLY),
	}
	e := runScript(t, built, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Len(t, res, 2)
	require.Equal(t, int64(1), res[0].(stackitem.BigInteger).Value().Int64(), "finally flag on top")
	require.Equal(t, int64(7), res[1].(stackitem.BigInteger).Value().Int64(), "caught value underneath")
}

// spec.md §7, §8: THROW with no enclosing TRY escapes to FAULT with kind
// Uncaught, and the uncaught item is captured for diagnostics.
func TestUncaughtThrowFaults(t *testing.T) {
	script := []byte{byte(opcode.PUSH7), byte(opcode.THROW)}
	e := vm.NewEngine(0)
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.Equal(t, vm.StateFault, e.State)
	require.True(t, vmerr.Is(runErr, vmerr.Uncaught))
	require.NotNil(t, e.UncaughtException)
}

// spec.md §8 invariant 1: conservation at RET. CALL shares the caller's
// evaluation stack, so arguments pushed by the caller are visible to the
// callee and results remain on the same stack with no explicit transfer.
func TestCallConservesStackDepth(t *testing.T) {
	// main: PUSH3 CALL +3; RET
	// callee (at offset 4): PUSH5; ADD; RET
	script := []byte{
		byte(opcode.PUSH3),
		byte(opcode.CALL), 3,
		byte(opcode.RET),
		byte(opcode.PUSH5),
		byte(opcode.ADD),
		byte(opcode.RET),
	}
	e := runScript(t, script, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Len(t, res, 1)
	require.Equal(t, int64(8), res[0].(stackitem.BigInteger).Value().Int64())
}

// spec.md §8 invariant 7: PACK then UNPACK round-trips an Array.
func TestPackUnpackRoundTrip(t *testing.T) {
	script := []byte{
		byte(opcode.PUSH1), byte(opcode.PUSH2), byte(opcode.PUSH3),
		byte(opcode.PUSH3), // count
		byte(opcode.PACK),
		byte(opcode.UNPACK),
	}
	e := runScript(t, script, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	// PACK puts the first-popped item (3, pushed last) at element 0, so the
	// array is [3,2,1]; UNPACK pushes elements 0..n-1 in order, then the
	// count on top, leaving the stack (top-first) as [3, 1, 2, 3].
	require.Len(t, res, 4)
	require.Equal(t, int64(3), res[0].(stackitem.BigInteger).Value().Int64())
	require.Equal(t, int64(1), res[1].(stackitem.BigInteger).Value().Int64())
	require.Equal(t, int64(2), res[2].(stackitem.BigInteger).Value().Int64())
	require.Equal(t, int64(3), res[3].(stackitem.BigInteger).Value().Int64())
}

// spec.md §4.3: PACK assembles "with the first-popped as element 0". The
// first item popped off the stack is the one most recently pushed (here,
// 3), so PICKITEM 0 on the packed array must yield 3, not 1.
func TestPackFirstPoppedIsElementZero(t *testing.T) {
	script := []byte{
		byte(opcode.PUSH1), byte(opcode.PUSH2), byte(opcode.PUSH3),
		byte(opcode.PUSH3), // count
		byte(opcode.PACK),
		byte(opcode.PUSH0),
		byte(opcode.PICKITEM),
	}
	e := runScript(t, script, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Len(t, res, 1)
	require.Equal(t, int64(3), res[0].(stackitem.BigInteger).Value().Int64())
}

// spec.md §4.2, §7: stack size above MaxStackSize faults with LimitExceeded.
func TestStackSizeLimitFaults(t *testing.T) {
	script := make([]byte, 0, stackitem.MaxStackSize+1)
	for i := 0; i < stackitem.MaxStackSize+1; i++ {
		script = append(script, byte(opcode.PUSH1))
	}
	e := vm.NewEngine(0)
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.True(t, vmerr.Is(runErr, vmerr.LimitExceeded))
}

// spec.md §4.5: gas metering faults OutOfGas once the limit is exceeded.
// The faulting opcode's price is still added, so GasConsumed may pass
// GasLimit by that one price (here PUSH5's price of 1), never more.
func TestOutOfGas(t *testing.T) {
	script := []byte{byte(opcode.PUSH3), byte(opcode.PUSH5), byte(opcode.ADD)}
	e := vm.NewEngine(1) // far below the cost of three opcodes
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.True(t, vmerr.Is(runErr, vmerr.OutOfGas))
	require.LessOrEqual(t, e.GasConsumed, e.GasLimit+1) // no unbounded overrun
}

// spec.md §8 invariant 2: every integer stack item's minimal two's
// complement encoding is capped at 32 bytes; exceeding it overflows.
func TestIntegerOverflowFaults(t *testing.T) {
	// PUSHINT256 of the maximum positive 32-byte value, then INC, which
	// must overflow past the cap.
	maxPositive := make([]byte, 32)
	for i := range maxPositive {
		maxPositive[i] = 0xFF
	}
	maxPositive[31] = 0x7F
	script := append([]byte{byte(opcode.PUSHINT256)}, maxPositive...)
	script = append(script, byte(opcode.INC))
	e := vm.NewEngine(0)
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.True(t, vmerr.Is(runErr, vmerr.Overflow))
}

// spec.md §8 invariant 10: division truncates toward zero and modulo
// takes the sign of the dividend.
func TestDivModSignLaw(t *testing.T) {
	// -7 / 2 == -3 (truncation, not floor which would be -4)
	script := []byte{
		byte(opcode.PUSH7), byte(opcode.NEGATE),
		byte(opcode.PUSH2),
		byte(opcode.DIV),
	}
	e := runScript(t, script, 0)
	require.Equal(t, vm.StateHalt, e.State)
	res := e.ResultStack().All()
	require.Equal(t, int64(-3), res[0].(stackitem.BigInteger).Value().Int64())

	// -7 % 2 == -1 (sign of dividend)
	script2 := []byte{
		byte(opcode.PUSH7), byte(opcode.NEGATE),
		byte(opcode.PUSH2),
		byte(opcode.MOD),
	}
	e2 := runScript(t, script2, 0)
	res2 := e2.ResultStack().All()
	require.Equal(t, int64(-1), res2[0].(stackitem.BigInteger).Value().Int64())
}

// spec.md §7: DIV/MOD by zero faults with DivideByZero, not a panic.
func TestDivideByZeroFaults(t *testing.T) {
	script := []byte{byte(opcode.PUSH1), byte(opcode.PUSH0), byte(opcode.DIV)}
	e := vm.NewEngine(0)
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.True(t, vmerr.Is(runErr, vmerr.DivideByZero))
}

// ABORT FAULTs unconditionally, bypassing any enclosing TRY frame (spec.md
// §4.3: "no exception frames consulted").
func TestAbortBypassesTry(t *testing.T) {
	built := []byte{
		byte(opcode.TRY), 3, 0,
		byte(opcode.ABORT),
		byte(opcode.PUSH1), // never reached; the catch offset 3 points at ABORT
	}
	e := vm.NewEngine(0)
	var zero [20]byte
	_, err := e.LoadScript(built, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.Equal(t, vm.StateFault, e.State)
}

// Pop from an empty evaluation stack faults with StackUnderflow rather
// than panicking.
func TestStackUnderflowFaults(t *testing.T) {
	script := []byte{byte(opcode.ADD)}
	e := vm.NewEngine(0)
	var zero [20]byte
	_, err := e.LoadScript(script, zero, callflag.All)
	require.NoError(t, err)
	runErr := e.Run()
	require.Error(t, runErr)
	require.True(t, vmerr.Is(runErr, vmerr.StackUnderflow))
}
