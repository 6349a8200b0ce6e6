// Package vm implements the NeoVM interpreter (spec.md §3, §4): the tagged
// stack-item domain lives in package stackitem, the instruction table lives
// in package opcode, and this package wires them into an executing Engine —
// an invocation stack of Contexts, a shared reference counter, gas metering,
// and the TRY/CATCH/FINALLY state machine. Host concerns (SYSCALL dispatch,
// CALLT resolution, gas pricing of syscalls) are injected as hooks so this
// package stays independent of the application-engine layer built on top of
// it.
package vm

import (
	"math"
	"math/big"

	"github.com/r3e-network/neo-execution-specs/pkg/bigint"
	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vm/opcode"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// MaxInvocationStackSize bounds the number of nested Contexts (spec.md §4.2).
const MaxInvocationStackSize = 1024

// Notification is one System.Runtime.Notify event (spec.md §4.6 runtime
// interop, §3.4). The core engine only records and rolls these back; the
// application-engine layer enforces MaxNotificationNameLen/
// MaxNotificationItems before calling Emit.
type Notification struct {
	ScriptHash [20]byte
	EventName  string
	State      *stackitem.Array
}

// Engine is one NeoVM execution: an invocation stack of Contexts sharing a
// single reference counter and gas meter, following spec.md §3.4.
type Engine struct {
	Invocations []*Context
	rc          *stackitem.RefCounter
	resultStack *Stack

	State              State
	UncaughtException  stackitem.Item
	FaultException     error

	GasLimit    int64
	GasConsumed int64

	Notifications []Notification

	// OnSysCall resolves a SYSCALL's murmur3 name hash (spec.md §4.6, §9);
	// nil means no syscalls are registered (every SYSCALL faults).
	OnSysCall func(e *Engine, nameHash uint32) error
	// OnCallToken resolves a CALLT method-token index against the calling
	// contract's manifest (spec.md §4.6); nil faults with MethodNotFound.
	OnCallToken func(e *Engine, tokenIndex uint16) error
}

// NewEngine returns an idle Engine with the given gas limit. A non-positive
// limit means unmetered (used by disassembly/inspection tooling, never by
// the t8n transition tool).
func NewEngine(gasLimit int64) *Engine {
	return &Engine{
		rc:       stackitem.NewRefCounter(),
		GasLimit: gasLimit,
		State:    StateNone,
	}
}

// RefCounter exposes the shared counter so the application-engine layer can
// register items that cross the VM boundary (e.g. deserialized storage
// values pushed directly onto a context's stack).
func (e *Engine) RefCounter() *stackitem.RefCounter { return e.rc }

// ResultStack returns the final context's evaluation stack once the engine
// has halted; nil before HALT.
func (e *Engine) ResultStack() *Stack { return e.resultStack }

// LoadScript pushes a brand-new context running script under its own fresh
// evaluation stack (used for the entry script and for cross-contract calls,
// which do not share a stack with their caller).
func (e *Engine) LoadScript(script []byte, scriptHash [20]byte, flags callflag.CallFlag) (*Context, error) {
	ctx := newContext(e.rc, script, scriptHash, flags)
	if err := e.PushContext(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

// PushContext pushes ctx onto the invocation stack, enforcing
// MaxInvocationStackSize and stamping its notification rollback cursor.
func (e *Engine) PushContext(ctx *Context) error {
	if len(e.Invocations) >= MaxInvocationStackSize {
		return vmerr.New(vmerr.LimitExceeded, "invocation stack exceeds MaxInvocationStackSize")
	}
	ctx.NotificationCursor = len(e.Notifications)
	e.Invocations = append(e.Invocations, ctx)
	return nil
}

func (e *Engine) current() *Context {
	if len(e.Invocations) == 0 {
		return nil
	}
	return e.Invocations[len(e.Invocations)-1]
}

// Current returns the topmost executing Context, the one a syscall
// handler reads its arguments from and charges gas against. Nil before
// any script is loaded.
func (e *Engine) Current() *Context { return e.current() }

// AddGas charges amount against the gas meter directly, for the
// application-engine layer's syscall and native-method pricing (spec.md
// §4.5); returns false (without partially charging) if the limit would
// be exceeded.
func (e *Engine) AddGas(amount int64) bool {
	if e.GasLimit > 0 && e.GasConsumed+amount > e.GasLimit {
		return false
	}
	e.GasConsumed += amount
	return true
}

func (e *Engine) popContext() *Context {
	ctx := e.current()
	if ctx == nil {
		return nil
	}
	e.Invocations = e.Invocations[:len(e.Invocations)-1]
	return ctx
}

// Emit appends a notification to the engine-wide log.
func (e *Engine) Emit(n Notification) {
	e.Notifications = append(e.Notifications, n)
}

func (e *Engine) chargeGas(amount int64) error {
	if amount == 0 {
		return nil
	}
	e.GasConsumed += amount
	if e.GasLimit > 0 && e.GasConsumed > e.GasLimit {
		return vmerr.New(vmerr.OutOfGas, "gas limit %d exceeded (consumed %d)", e.GasLimit, e.GasConsumed)
	}
	return nil
}

func (e *Engine) fault(err error) error {
	if e.State != StateFault {
		e.State = StateFault
		e.FaultException = err
	}
	return err
}

// Run steps until the engine halts or faults.
func (e *Engine) Run() error {
	for e.State == StateNone {
		if err := e.Step(); err != nil {
			return err
		}
	}
	if e.State == StateFault {
		return e.FaultException
	}
	return nil
}

// Step executes exactly one instruction, or performs the implicit RET at
// the end of a script.
func (e *Engine) Step() error {
	if e.State != StateNone {
		return nil
	}
	ctx := e.current()
	if ctx == nil {
		e.State = StateHalt
		return nil
	}
	if ctx.AtEnd() {
		return e.doReturn()
	}
	start := ctx.ip
	opByte, err := ctx.readByte()
	if err != nil {
		return e.fault(err)
	}
	op := opcode.Opcode(opByte)
	if err := e.chargeGas(opcode.BasePrice(op)); err != nil {
		return e.fault(err)
	}
	if err := e.exec(ctx, op, start); err != nil {
		return e.fault(err)
	}
	return nil
}

// doReturn pops the current context at RET (or end-of-script). If its
// evaluation stack is a distinct object from the caller's (a cross-contract
// invocation pushed via LoadScript) its contents are drained onto the
// caller; a CALL-created context already shares its caller's stack object,
// so there is nothing to move (spec.md §8 invariant 1).
func (e *Engine) doReturn() error {
	ctx := e.popContext()
	ctx.releaseSlotsOnly()
	if len(e.Invocations) == 0 {
		e.State = StateHalt
		e.resultStack = ctx.Estack
		return nil
	}
	caller := e.current()
	if ctx.Estack != caller.Estack {
		ctx.Estack.drainInto(caller.Estack)
	}
	return nil
}

// pushCallContext pushes a new context for an intra-script CALL/CALLA: same
// script, same call flags, fresh (empty) slots, and the SAME evaluation
// stack object as the caller — so arguments pushed by the caller are read
// straight out of it by the callee's INITSLOT, and results land back on the
// caller's stack with no explicit transfer.
func (e *Engine) pushCallContext(caller *Context, ip int) error {
	child := &Context{
		Script:       caller.Script,
		ScriptHash:   caller.ScriptHash,
		ip:           ip,
		Estack:       caller.Estack,
		locals:       newSlotArray(e.rc, 0),
		args:         newSlotArray(e.rc, 0),
		static:       newSlotArray(e.rc, 0),
		CallFlags:    caller.CallFlags,
		ContractHash: caller.ContractHash,
	}
	return e.PushContext(child)
}

// handleThrow implements the TRY/CATCH/FINALLY search of spec.md §4.4:
// walk the invocation stack from innermost context outward, looking for a
// try frame that can still catch or must run its FINALLY, popping exhausted
// frames and contexts along the way. Returns a non-nil error only when the
// exception reaches the bottom of the invocation stack uncaught.
func (e *Engine) handleThrow(item stackitem.Item) error {
	for len(e.Invocations) > 0 {
		ctx := e.current()
		for len(ctx.tryStack) > 0 {
			frame := ctx.currentTry()
			if frame.phase != phaseFinally {
				if frame.hasCatch() {
					frame.phase = phaseCatch
					frame.catchUsed = true
					if err := ctx.Estack.Push(item); err != nil {
						return err
					}
					ctx.ip = frame.catchOffset
					return nil
				}
				if frame.hasFinally() {
					frame.phase = phaseFinally
					frame.pendingException = item
					ctx.ip = frame.finallyOffset
					return nil
				}
			}
			ctx.popTry()
		}
		popped := e.popContext()
		popped.releaseSlots()
		if popped.NotificationCursor < len(e.Notifications) {
			e.Notifications = e.Notifications[:popped.NotificationCursor]
		}
	}
	e.UncaughtException = item
	return vmerr.New(vmerr.Uncaught, "unhandled exception: %s", item.String())
}

// endTry implements ENDTRY/ENDTRY_L: if the current frame has a FINALLY
// clause, divert to it and remember target as the point to resume at once
// ENDFINALLY runs with no pending exception; otherwise pop the frame and
// jump straight to target.
func (e *Engine) endTry(ctx *Context, target int) error {
	frame := ctx.currentTry()
	if frame == nil {
		return vmerr.New(vmerr.InvalidOpcode, "ENDTRY without matching TRY")
	}
	if frame.hasFinally() {
		frame.phase = phaseFinally
		frame.normalEndTarget = target
		ctx.ip = frame.finallyOffset
		return nil
	}
	ctx.popTry()
	ctx.ip = target
	return nil
}

// endFinally implements ENDFINALLY: pop the frame, then either resume
// propagating its pending exception or jump to the target ENDTRY recorded.
func (e *Engine) endFinally(ctx *Context) error {
	frame := ctx.currentTry()
	if frame == nil || frame.phase != phaseFinally {
		return vmerr.New(vmerr.InvalidOpcode, "ENDFINALLY without matching FINALLY")
	}
	ctx.popTry()
	if frame.pendingException != nil {
		return e.handleThrow(frame.pendingException)
	}
	ctx.ip = frame.normalEndTarget
	return nil
}

// ---- operand helpers ----

func readOffset1(ctx *Context) (int, error) {
	b, err := ctx.readByte()
	if err != nil {
		return 0, err
	}
	return int(int8(b)), nil
}

func readOffset4(ctx *Context) (int, error) {
	v, err := ctx.readInt32()
	return int(v), err
}

func popInt(ctx *Context) (bigint.Int, error) {
	v, err := ctx.Estack.Pop()
	if err != nil {
		return bigint.Int{}, err
	}
	bi, ok := v.(stackitem.BigInteger)
	if ok {
		return bi.Value(), nil
	}
	conv, err := stackitem.Convert(v, stackitem.TypeInteger)
	if err != nil {
		return bigint.Int{}, vmerr.New(vmerr.TypeMismatch, "expected Integer, got %s", v.Type())
	}
	return conv.(stackitem.BigInteger).Value(), nil
}

func popInt64(ctx *Context) (int64, error) {
	v, err := popInt(ctx)
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

func popBool(ctx *Context) (bool, error) {
	v, err := ctx.Estack.Pop()
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func popBytes(ctx *Context) ([]byte, error) {
	v, err := ctx.Estack.Pop()
	if err != nil {
		return nil, err
	}
	b, err := v.TryBytes()
	if err != nil {
		return nil, vmerr.New(vmerr.TypeMismatch, "%v", err)
	}
	return b, nil
}

func pushInt(ctx *Context, v bigint.Int, err error) error {
	if err != nil {
		return mapBigintErr(err)
	}
	return ctx.Estack.Push(stackitem.NewBigInteger(v))
}

func mapBigintErr(err error) error {
	switch err {
	case bigint.ErrOverflow:
		return vmerr.New(vmerr.Overflow, "%v", err)
	case bigint.ErrDivideByZero:
		return vmerr.New(vmerr.DivideByZero, "%v", err)
	case bigint.ErrShiftRange:
		return vmerr.New(vmerr.OutOfRange, "%v", err)
	default:
		return vmerr.New(vmerr.InvalidArgument, "%v", err)
	}
}

func slotOpIndex(ctx *Context, op, base0, generic opcode.Opcode) (int, error) {
	if op == generic {
		b, err := ctx.readByte()
		if err != nil {
			return 0, err
		}
		return int(b), nil
	}
	return int(op - base0), nil
}

func reverseTopN(ctx *Context, n int) error {
	items := make([]stackitem.Item, n)
	for i := 0; i < n; i++ {
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		items[i] = v
	}
	for _, v := range items {
		if err := ctx.Estack.Push(v); err != nil {
			return err
		}
	}
	return nil
}

func asCompound(v stackitem.Item) ([]stackitem.Item, bool) {
	switch c := v.(type) {
	case *stackitem.Array:
		return c.Value(), true
	case *stackitem.Struct:
		return c.Value(), true
	default:
		return nil, false
	}
}

// ---- main dispatch ----

func (e *Engine) exec(ctx *Context, op opcode.Opcode, start int) error {
	switch {
	case op >= opcode.LDSFLD0 && op <= opcode.LDSFLD:
		idx, err := slotOpIndex(ctx, op, opcode.LDSFLD0, opcode.LDSFLD)
		if err != nil {
			return err
		}
		v, err := ctx.static.Get(idx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case op >= opcode.STSFLD0 && op <= opcode.STSFLD:
		idx, err := slotOpIndex(ctx, op, opcode.STSFLD0, opcode.STSFLD)
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		return ctx.static.Set(idx, v)
	case op >= opcode.LDLOC0 && op <= opcode.LDLOC:
		idx, err := slotOpIndex(ctx, op, opcode.LDLOC0, opcode.LDLOC)
		if err != nil {
			return err
		}
		v, err := ctx.locals.Get(idx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case op >= opcode.STLOC0 && op <= opcode.STLOC:
		idx, err := slotOpIndex(ctx, op, opcode.STLOC0, opcode.STLOC)
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		return ctx.locals.Set(idx, v)
	case op >= opcode.LDARG0 && op <= opcode.LDARG:
		idx, err := slotOpIndex(ctx, op, opcode.LDARG0, opcode.LDARG)
		if err != nil {
			return err
		}
		v, err := ctx.args.Get(idx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case op >= opcode.STARG0 && op <= opcode.STARG:
		idx, err := slotOpIndex(ctx, op, opcode.STARG0, opcode.STARG)
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		return ctx.args.Set(idx, v)
	case op >= opcode.PUSHM1 && op <= opcode.PUSH16:
		return ctx.Estack.Push(stackitem.NewInt(int64(op) - int64(opcode.PUSH0)))
	}

	switch op {
	// ---- constants ----
	case opcode.PUSHINT8, opcode.PUSHINT16, opcode.PUSHINT32, opcode.PUSHINT64,
		opcode.PUSHINT128, opcode.PUSHINT256:
		var width int
		switch op {
		case opcode.PUSHINT8:
			width = 1
		case opcode.PUSHINT16:
			width = 2
		case opcode.PUSHINT32:
			width = 4
		case opcode.PUSHINT64:
			width = 8
		case opcode.PUSHINT128:
			width = 16
		case opcode.PUSHINT256:
			width = 32
		}
		b, err := ctx.readBytes(width)
		if err != nil {
			return err
		}
		v, err := bigint.FromBytesLE(b)
		if err != nil {
			return mapBigintErr(err)
		}
		return ctx.Estack.Push(stackitem.NewBigInteger(v))
	case opcode.PUSHT:
		return ctx.Estack.Push(stackitem.NewBool(true))
	case opcode.PUSHF:
		return ctx.Estack.Push(stackitem.NewBool(false))
	case opcode.PUSHA:
		off, err := readOffset4(ctx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewPointer(ctx.ScriptHash, start+off))
	case opcode.PUSHNULL:
		return ctx.Estack.Push(stackitem.Null{})
	case opcode.PUSHDATA1, opcode.PUSHDATA2, opcode.PUSHDATA4:
		var n int
		switch op {
		case opcode.PUSHDATA1:
			b, err := ctx.readByte()
			if err != nil {
				return err
			}
			n = int(b)
		case opcode.PUSHDATA2:
			v, err := ctx.readUint16()
			if err != nil {
				return err
			}
			n = int(v)
		case opcode.PUSHDATA4:
			v, err := ctx.readUint32()
			if err != nil {
				return err
			}
			n = int(v)
		}
		if n > stackitem.MaxSize {
			return vmerr.New(vmerr.LimitExceeded, "PUSHDATA exceeds MaxItemSize")
		}
		data, err := ctx.readBytes(n)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewByteArray(data))

	// ---- flow control ----
	case opcode.NOP:
		return nil
	case opcode.JMP, opcode.JMP_L:
		off, err := jumpOffset(ctx, op, opcode.JMP_L)
		if err != nil {
			return err
		}
		ctx.ip = start + off
		return nil
	case opcode.JMPIF, opcode.JMPIF_L:
		off, err := jumpOffset(ctx, op, opcode.JMPIF_L)
		if err != nil {
			return err
		}
		cond, err := popBool(ctx)
		if err != nil {
			return err
		}
		if cond {
			ctx.ip = start + off
		}
		return nil
	case opcode.JMPIFNOT, opcode.JMPIFNOT_L:
		off, err := jumpOffset(ctx, op, opcode.JMPIFNOT_L)
		if err != nil {
			return err
		}
		cond, err := popBool(ctx)
		if err != nil {
			return err
		}
		if !cond {
			ctx.ip = start + off
		}
		return nil
	case opcode.JMPEQ, opcode.JMPEQ_L, opcode.JMPNE, opcode.JMPNE_L,
		opcode.JMPGT, opcode.JMPGT_L, opcode.JMPGE, opcode.JMPGE_L,
		opcode.JMPLT, opcode.JMPLT_L, opcode.JMPLE, opcode.JMPLE_L:
		wide := op == opcode.JMPEQ_L || op == opcode.JMPNE_L || op == opcode.JMPGT_L ||
			op == opcode.JMPGE_L || op == opcode.JMPLT_L || op == opcode.JMPLE_L
		var off int
		var err error
		if wide {
			off, err = readOffset4(ctx)
		} else {
			off, err = readOffset1(ctx)
		}
		if err != nil {
			return err
		}
		b, err := popInt(ctx)
		if err != nil {
			return err
		}
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		cmp := a.Cmp(b)
		var take bool
		switch op {
		case opcode.JMPEQ, opcode.JMPEQ_L:
			take = cmp == 0
		case opcode.JMPNE, opcode.JMPNE_L:
			take = cmp != 0
		case opcode.JMPGT, opcode.JMPGT_L:
			take = cmp > 0
		case opcode.JMPGE, opcode.JMPGE_L:
			take = cmp >= 0
		case opcode.JMPLT, opcode.JMPLT_L:
			take = cmp < 0
		case opcode.JMPLE, opcode.JMPLE_L:
			take = cmp <= 0
		}
		if take {
			ctx.ip = start + off
		}
		return nil
	case opcode.CALL:
		off, err := readOffset1(ctx)
		if err != nil {
			return err
		}
		return e.pushCallContext(ctx, start+off)
	case opcode.CALL_L:
		off, err := readOffset4(ctx)
		if err != nil {
			return err
		}
		return e.pushCallContext(ctx, start+off)
	case opcode.CALLA:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		ptr, ok := v.(stackitem.Pointer)
		if !ok {
			return vmerr.New(vmerr.TypeMismatch, "CALLA operand must be a Pointer")
		}
		if ptr.ScriptHash != ctx.ScriptHash {
			return vmerr.New(vmerr.BadScriptHash, "CALLA pointer targets a foreign script")
		}
		return e.pushCallContext(ctx, ptr.Position)
	case opcode.CALLT:
		idx, err := ctx.readUint16()
		if err != nil {
			return err
		}
		if e.OnCallToken == nil {
			return vmerr.New(vmerr.MethodNotFound, "no method tokens registered")
		}
		return e.OnCallToken(e, idx)
	case opcode.ABORT:
		return vmerr.New(vmerr.Uncaught, "ABORT executed")
	case opcode.ABORTMSG:
		msg, err := popBytes(ctx)
		if err != nil {
			return err
		}
		return vmerr.New(vmerr.Uncaught, "ABORTMSG: %s", string(msg))
	case opcode.ASSERT:
		cond, err := popBool(ctx)
		if err != nil {
			return err
		}
		if !cond {
			return vmerr.New(vmerr.Uncaught, "ASSERT failed")
		}
		return nil
	case opcode.ASSERTMSG:
		msg, err := popBytes(ctx)
		if err != nil {
			return err
		}
		cond, err := popBool(ctx)
		if err != nil {
			return err
		}
		if !cond {
			return vmerr.New(vmerr.Uncaught, "ASSERTMSG: %s", string(msg))
		}
		return nil
	case opcode.THROW:
		item, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		return e.handleThrow(item)
	case opcode.TRY, opcode.TRY_L:
		var catchOff, finallyOff int
		var err error
		if op == opcode.TRY {
			catchOff, err = readOffset1(ctx)
			if err != nil {
				return err
			}
			f, err2 := readOffset1(ctx)
			if err2 != nil {
				return err2
			}
			finallyOff = f
		} else {
			catchOff, err = readOffset4(ctx)
			if err != nil {
				return err
			}
			f, err2 := readOffset4(ctx)
			if err2 != nil {
				return err2
			}
			finallyOff = f
		}
		catchAbs, finallyAbs := -1, -1
		if catchOff != 0 {
			catchAbs = start + catchOff
		}
		if finallyOff != 0 {
			finallyAbs = start + finallyOff
		}
		return ctx.pushTry(catchAbs, finallyAbs)
	case opcode.ENDTRY, opcode.ENDTRY_L:
		var off int
		var err error
		if op == opcode.ENDTRY {
			off, err = readOffset1(ctx)
		} else {
			off, err = readOffset4(ctx)
		}
		if err != nil {
			return err
		}
		return e.endTry(ctx, start+off)
	case opcode.ENDFINALLY:
		return e.endFinally(ctx)
	case opcode.RET:
		return e.doReturn()
	case opcode.SYSCALL:
		hash, err := ctx.readUint32()
		if err != nil {
			return err
		}
		if e.OnSysCall == nil {
			return vmerr.New(vmerr.MethodNotFound, "no syscalls registered")
		}
		return e.OnSysCall(e, hash)

	// ---- stack ----
	case opcode.DEPTH:
		return ctx.Estack.Push(stackitem.NewInt(int64(ctx.Estack.Count())))
	case opcode.DROP:
		_, err := ctx.Estack.Pop()
		return err
	case opcode.NIP:
		_, err := ctx.Estack.Remove(1)
		return err
	case opcode.XDROP:
		n, err := popInt64(ctx)
		if err != nil {
			return err
		}
		_, err = ctx.Estack.Remove(int(n))
		return err
	case opcode.CLEAR:
		ctx.Estack.Clear()
		return nil
	case opcode.DUP:
		v, err := ctx.Estack.Peek(0)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case opcode.OVER:
		v, err := ctx.Estack.Peek(1)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case opcode.PICK:
		b, err := ctx.readByte()
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Peek(int(b))
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case opcode.TUCK:
		top, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		under, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		if err := ctx.Estack.Push(top); err != nil {
			return err
		}
		if err := ctx.Estack.Push(under); err != nil {
			return err
		}
		return ctx.Estack.Push(top)
	case opcode.SWAP:
		top, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		under, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		if err := ctx.Estack.Push(top); err != nil {
			return err
		}
		return ctx.Estack.Push(under)
	case opcode.ROT:
		v, err := ctx.Estack.Remove(2)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case opcode.ROLL:
		b, err := ctx.readByte()
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Remove(int(b))
		if err != nil {
			return err
		}
		return ctx.Estack.Push(v)
	case opcode.REVERSE3:
		return reverseTopN(ctx, 3)
	case opcode.REVERSE4:
		return reverseTopN(ctx, 4)
	case opcode.REVERSEN:
		b, err := ctx.readByte()
		if err != nil {
			return err
		}
		return reverseTopN(ctx, int(b))

	// ---- slot setup ----
	case opcode.INITSSLOT:
		n, err := ctx.readByte()
		if err != nil {
			return err
		}
		ctx.initStatic(int(n), e.rc)
		return nil
	case opcode.INITSLOT:
		localCount, err := ctx.readByte()
		if err != nil {
			return err
		}
		argCount, err := ctx.readByte()
		if err != nil {
			return err
		}
		ctx.initSlots(int(localCount), int(argCount), e.rc)
		for i := 0; i < int(argCount); i++ {
			v, err := ctx.Estack.Pop()
			if err != nil {
				return err
			}
			if err := ctx.args.Set(i, v); err != nil {
				return err
			}
		}
		return nil

	// ---- splice ----
	case opcode.NEWBUFFER:
		n, err := popInt64(ctx)
		if err != nil {
			return err
		}
		if n < 0 || n > stackitem.MaxSize {
			return vmerr.New(vmerr.LimitExceeded, "NEWBUFFER size out of range")
		}
		return ctx.Estack.Push(stackitem.NewBuffer(make([]byte, n)))
	case opcode.MEMCPY:
		count, err := popInt64(ctx)
		if err != nil {
			return err
		}
		srcIdx, err := popInt64(ctx)
		if err != nil {
			return err
		}
		srcBytes, err := popBytes(ctx)
		if err != nil {
			return err
		}
		dstIdx, err := popInt64(ctx)
		if err != nil {
			return err
		}
		dstItem, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		dst, ok := dstItem.(*stackitem.Buffer)
		if !ok {
			return vmerr.New(vmerr.TypeMismatch, "MEMCPY destination must be a Buffer")
		}
		if count < 0 || srcIdx < 0 || dstIdx < 0 ||
			srcIdx+count > int64(len(srcBytes)) || dstIdx+count > int64(len(dst.Bytes)) {
			return vmerr.New(vmerr.OutOfRange, "MEMCPY range out of bounds")
		}
		copy(dst.Bytes[dstIdx:dstIdx+count], srcBytes[srcIdx:srcIdx+count])
		return nil
	case opcode.CAT:
		b, err := popBytes(ctx)
		if err != nil {
			return err
		}
		a, err := popBytes(ctx)
		if err != nil {
			return err
		}
		if len(a)+len(b) > stackitem.MaxSize {
			return vmerr.New(vmerr.LimitExceeded, "CAT result exceeds MaxItemSize")
		}
		out := make([]byte, 0, len(a)+len(b))
		out = append(out, a...)
		out = append(out, b...)
		return ctx.Estack.Push(stackitem.NewBuffer(out))
	case opcode.SUBSTR:
		count, err := popInt64(ctx)
		if err != nil {
			return err
		}
		idx, err := popInt64(ctx)
		if err != nil {
			return err
		}
		b, err := popBytes(ctx)
		if err != nil {
			return err
		}
		if idx < 0 || count < 0 || idx+count > int64(len(b)) {
			return vmerr.New(vmerr.OutOfRange, "SUBSTR range out of bounds")
		}
		return ctx.Estack.Push(stackitem.NewBuffer(b[idx : idx+count]))
	case opcode.LEFT:
		count, err := popInt64(ctx)
		if err != nil {
			return err
		}
		b, err := popBytes(ctx)
		if err != nil {
			return err
		}
		if count < 0 || count > int64(len(b)) {
			return vmerr.New(vmerr.OutOfRange, "LEFT count out of range")
		}
		return ctx.Estack.Push(stackitem.NewBuffer(b[:count]))
	case opcode.RIGHT:
		count, err := popInt64(ctx)
		if err != nil {
			return err
		}
		b, err := popBytes(ctx)
		if err != nil {
			return err
		}
		if count < 0 || count > int64(len(b)) {
			return vmerr.New(vmerr.OutOfRange, "RIGHT count out of range")
		}
		return ctx.Estack.Push(stackitem.NewBuffer(b[int64(len(b))-count:]))

	// ---- bitwise / comparison primitives ----
	case opcode.INVERT:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		r, err := a.Not()
		return pushInt(ctx, r, err)
	case opcode.AND, opcode.OR, opcode.XOR:
		b, err := popInt(ctx)
		if err != nil {
			return err
		}
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		var r bigint.Int
		switch op {
		case opcode.AND:
			r, err = a.And(b)
		case opcode.OR:
			r, err = a.Or(b)
		case opcode.XOR:
			r, err = a.Xor(b)
		}
		return pushInt(ctx, r, err)
	case opcode.EQUAL, opcode.NOTEQUAL:
		b, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		a, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		eq := a.Equals(b)
		if op == opcode.NOTEQUAL {
			eq = !eq
		}
		return ctx.Estack.Push(stackitem.NewBool(eq))

	// ---- arithmetic ----
	case opcode.SIGN:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewInt(int64(a.Sign())))
	case opcode.ABS:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		r, err := a.Abs()
		return pushInt(ctx, r, err)
	case opcode.NEGATE:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		r, err := a.Neg()
		return pushInt(ctx, r, err)
	case opcode.INC:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		r, err := a.Add(bigint.New(1))
		return pushInt(ctx, r, err)
	case opcode.DEC:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		r, err := a.Sub(bigint.New(1))
		return pushInt(ctx, r, err)
	case opcode.ADD, opcode.SUB, opcode.MUL, opcode.DIV, opcode.MOD:
		b, err := popInt(ctx)
		if err != nil {
			return err
		}
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		var r bigint.Int
		switch op {
		case opcode.ADD:
			r, err = a.Add(b)
		case opcode.SUB:
			r, err = a.Sub(b)
		case opcode.MUL:
			r, err = a.Mul(b)
		case opcode.DIV:
			r, err = a.Div(b)
		case opcode.MOD:
			r, err = a.Mod(b)
		}
		return pushInt(ctx, r, err)
	case opcode.POW:
		exp, err := popInt(ctx)
		if err != nil {
			return err
		}
		base, err := popInt(ctx)
		if err != nil {
			return err
		}
		if exp.Sign() < 0 {
			return vmerr.New(vmerr.InvalidArgument, "POW exponent must be non-negative")
		}
		if exp.Cmp(bigint.New(int64(math.MaxInt32))) > 0 {
			return vmerr.New(vmerr.InvalidArgument, "POW exponent too large")
		}
		res := new(big.Int).Exp(base.Big(), exp.Big(), nil)
		r, err := bigint.FromBig(res)
		return pushInt(ctx, r, err)
	case opcode.SQRT:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		if a.Sign() < 0 {
			return vmerr.New(vmerr.InvalidArgument, "SQRT of negative value")
		}
		res := new(big.Int).Sqrt(a.Big())
		r, err := bigint.FromBig(res)
		return pushInt(ctx, r, err)
	case opcode.MODMUL:
		mod, err := popInt(ctx)
		if err != nil {
			return err
		}
		b, err := popInt(ctx)
		if err != nil {
			return err
		}
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		if mod.Sign() == 0 {
			return vmerr.New(vmerr.DivideByZero, "MODMUL modulus is zero")
		}
		res := new(big.Int).Mul(a.Big(), b.Big())
		res.Rem(res, mod.Big())
		r, err := bigint.FromBig(res)
		return pushInt(ctx, r, err)
	case opcode.MODPOW:
		mod, err := popInt(ctx)
		if err != nil {
			return err
		}
		exp, err := popInt(ctx)
		if err != nil {
			return err
		}
		base, err := popInt(ctx)
		if err != nil {
			return err
		}
		if mod.Sign() <= 0 {
			return vmerr.New(vmerr.DivideByZero, "MODPOW modulus must be positive")
		}
		if exp.Sign() < 0 {
			return vmerr.New(vmerr.InvalidArgument, "MODPOW negative exponent unsupported")
		}
		res := new(big.Int).Exp(base.Big(), exp.Big(), mod.Big())
		r, err := bigint.FromBig(res)
		return pushInt(ctx, r, err)
	case opcode.SHL, opcode.SHR:
		n, err := popInt64(ctx)
		if err != nil {
			return err
		}
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		var r bigint.Int
		if op == opcode.SHL {
			r, err = a.Shl(n)
		} else {
			r, err = a.Shr(n)
		}
		return pushInt(ctx, r, err)
	case opcode.NOT:
		v, err := popBool(ctx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewBool(!v))
	case opcode.BOOLAND:
		b, err := popBool(ctx)
		if err != nil {
			return err
		}
		a, err := popBool(ctx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewBool(a && b))
	case opcode.BOOLOR:
		b, err := popBool(ctx)
		if err != nil {
			return err
		}
		a, err := popBool(ctx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewBool(a || b))
	case opcode.NZ:
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewBool(a.Sign() != 0))
	case opcode.NUMEQUAL, opcode.NUMNOTEQUAL, opcode.LT, opcode.LE, opcode.GT, opcode.GE:
		b, err := popInt(ctx)
		if err != nil {
			return err
		}
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		cmp := a.Cmp(b)
		var res bool
		switch op {
		case opcode.NUMEQUAL:
			res = cmp == 0
		case opcode.NUMNOTEQUAL:
			res = cmp != 0
		case opcode.LT:
			res = cmp < 0
		case opcode.LE:
			res = cmp <= 0
		case opcode.GT:
			res = cmp > 0
		case opcode.GE:
			res = cmp >= 0
		}
		return ctx.Estack.Push(stackitem.NewBool(res))
	case opcode.MIN, opcode.MAX:
		b, err := popInt(ctx)
		if err != nil {
			return err
		}
		a, err := popInt(ctx)
		if err != nil {
			return err
		}
		r := a
		if (op == opcode.MIN && b.Cmp(a) < 0) || (op == opcode.MAX && b.Cmp(a) > 0) {
			r = b
		}
		return ctx.Estack.Push(stackitem.NewBigInteger(r))
	case opcode.WITHIN:
		max, err := popInt(ctx)
		if err != nil {
			return err
		}
		min, err := popInt(ctx)
		if err != nil {
			return err
		}
		x, err := popInt(ctx)
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewBool(x.Cmp(min) >= 0 && x.Cmp(max) < 0))

	// ---- compound types ----
	case opcode.PACKMAP:
		n, err := popInt64(ctx)
		if err != nil {
			return err
		}
		if err := checkCount(n); err != nil {
			return err
		}
		m := stackitem.NewMap()
		for i := int64(0); i < n; i++ {
			k, err := ctx.Estack.Pop()
			if err != nil {
				return err
			}
			v, err := ctx.Estack.Pop()
			if err != nil {
				return err
			}
			if err := m.Set(k, v); err != nil {
				return vmerr.New(vmerr.TypeMismatch, "%v", err)
			}
		}
		e.rc.AddContained(m)
		return ctx.Estack.Push(m)
	case opcode.PACK, opcode.PACKSTRUCT:
		n, err := popInt64(ctx)
		if err != nil {
			return err
		}
		if err := checkCount(n); err != nil {
			return err
		}
		items := make([]stackitem.Item, n)
		for i := int64(0); i < n; i++ {
			v, err := ctx.Estack.Pop()
			if err != nil {
				return err
			}
			items[i] = v
		}
		var result stackitem.Item
		if op == opcode.PACK {
			result = stackitem.NewArray(items)
		} else {
			result = stackitem.NewStruct(items)
		}
		e.rc.AddContained(result)
		return ctx.Estack.Push(result)
	case opcode.UNPACK:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		items, ok := asCompound(v)
		if !ok {
			return vmerr.New(vmerr.TypeMismatch, "UNPACK requires Array or Struct")
		}
		e.rc.RemoveContained(v)
		for _, it := range items {
			if err := ctx.Estack.Push(it); err != nil {
				return err
			}
		}
		return ctx.Estack.Push(stackitem.NewInt(int64(len(items))))
	case opcode.NEWARRAY0:
		return ctx.Estack.Push(stackitem.NewArray(nil))
	case opcode.NEWSTRUCT0:
		return ctx.Estack.Push(stackitem.NewStruct(nil))
	case opcode.NEWARRAY, opcode.NEWSTRUCT:
		n, err := popInt64(ctx)
		if err != nil {
			return err
		}
		if err := checkCount(n); err != nil {
			return err
		}
		items := make([]stackitem.Item, n)
		for i := range items {
			items[i] = stackitem.Null{}
		}
		if op == opcode.NEWARRAY {
			return ctx.Estack.Push(stackitem.NewArray(items))
		}
		return ctx.Estack.Push(stackitem.NewStruct(items))
	case opcode.NEWARRAY_T:
		typ, err := ctx.readByte()
		if err != nil {
			return err
		}
		n, err := popInt64(ctx)
		if err != nil {
			return err
		}
		if err := checkCount(n); err != nil {
			return err
		}
		var fill stackitem.Item
		switch stackitem.Type(typ) {
		case stackitem.TypeInteger:
			fill = stackitem.NewInt(0)
		case stackitem.TypeBoolean:
			fill = stackitem.NewBool(false)
		case stackitem.TypeByteString:
			fill = stackitem.NewByteArray(nil)
		default:
			fill = stackitem.Null{}
		}
		items := make([]stackitem.Item, n)
		for i := range items {
			items[i] = fill
		}
		return ctx.Estack.Push(stackitem.NewArray(items))
	case opcode.NEWMAP:
		return ctx.Estack.Push(stackitem.NewMap())
	case opcode.SIZE:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		var n int
		switch t := v.(type) {
		case stackitem.ByteArray:
			n = len(t)
		case *stackitem.Buffer:
			n = len(t.Bytes)
		case *stackitem.Array:
			n = t.Len()
		case *stackitem.Struct:
			n = t.Len()
		case *stackitem.Map:
			n = t.Len()
		default:
			return vmerr.New(vmerr.TypeMismatch, "SIZE unsupported for %s", v.Type())
		}
		return ctx.Estack.Push(stackitem.NewInt(int64(n)))
	case opcode.HASKEY:
		key, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		switch c := v.(type) {
		case *stackitem.Array:
			idx, ok := tryIndex(key)
			if !ok {
				return vmerr.New(vmerr.TypeMismatch, "HASKEY index must be an Integer")
			}
			return ctx.Estack.Push(stackitem.NewBool(idx >= 0 && idx < int64(c.Len())))
		case *stackitem.Struct:
			idx, ok := tryIndex(key)
			if !ok {
				return vmerr.New(vmerr.TypeMismatch, "HASKEY index must be an Integer")
			}
			return ctx.Estack.Push(stackitem.NewBool(idx >= 0 && idx < int64(c.Len())))
		case *stackitem.Map:
			_, ok := c.Get(key)
			return ctx.Estack.Push(stackitem.NewBool(ok))
		default:
			return vmerr.New(vmerr.TypeMismatch, "HASKEY unsupported for %s", v.Type())
		}
	case opcode.KEYS:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		m, ok := v.(*stackitem.Map)
		if !ok {
			return vmerr.New(vmerr.TypeMismatch, "KEYS requires Map")
		}
		result := stackitem.NewArray(m.Keys())
		e.rc.AddContained(result)
		return ctx.Estack.Push(result)
	case opcode.VALUES:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		m, ok := v.(*stackitem.Map)
		if !ok {
			return vmerr.New(vmerr.TypeMismatch, "VALUES requires Map")
		}
		result := stackitem.NewArray(m.Values())
		e.rc.AddContained(result)
		return ctx.Estack.Push(result)
	case opcode.PICKITEM:
		key, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		switch c := v.(type) {
		case *stackitem.Array:
			idx, err := indexFromItem(key, c.Len())
			if err != nil {
				return err
			}
			return ctx.Estack.Push(c.At(idx))
		case *stackitem.Struct:
			idx, err := indexFromItem(key, c.Len())
			if err != nil {
				return err
			}
			return ctx.Estack.Push(c.At(idx))
		case *stackitem.Map:
			val, ok := c.Get(key)
			if !ok {
				return vmerr.New(vmerr.InvalidArgument, "PICKITEM key not found")
			}
			return ctx.Estack.Push(val)
		case stackitem.ByteArray, *stackitem.Buffer:
			raw, _ := v.TryBytes()
			idx, err := indexFromItem(key, len(raw))
			if err != nil {
				return err
			}
			return ctx.Estack.Push(stackitem.NewInt(int64(raw[idx])))
		default:
			return vmerr.New(vmerr.TypeMismatch, "PICKITEM unsupported for %s", v.Type())
		}
	case opcode.APPEND:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		c, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		switch a := c.(type) {
		case *stackitem.Array:
			a.Append(v)
		case *stackitem.Struct:
			a.Append(v)
		default:
			return vmerr.New(vmerr.TypeMismatch, "APPEND requires Array or Struct")
		}
		e.rc.Add(v)
		return nil
	case opcode.SETITEM:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		key, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		c, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		switch a := c.(type) {
		case *stackitem.Array:
			idx, err := indexFromItem(key, a.Len())
			if err != nil {
				return err
			}
			old := a.At(idx)
			a.Set(idx, v)
			e.rc.Remove(old)
			e.rc.Add(v)
		case *stackitem.Struct:
			idx, err := indexFromItem(key, a.Len())
			if err != nil {
				return err
			}
			old := a.At(idx)
			a.Set(idx, v)
			e.rc.Remove(old)
			e.rc.Add(v)
		case *stackitem.Map:
			old, existed := a.Get(key)
			if err := a.Set(key, v); err != nil {
				return vmerr.New(vmerr.TypeMismatch, "%v", err)
			}
			if existed {
				e.rc.Remove(old)
			} else {
				e.rc.Add(key)
			}
			e.rc.Add(v)
		default:
			return vmerr.New(vmerr.TypeMismatch, "SETITEM requires a compound")
		}
		return nil
	case opcode.REVERSEITEMS:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		switch c := v.(type) {
		case *stackitem.Array:
			c.Reverse()
		case *stackitem.Struct:
			c.Reverse()
		case *stackitem.Buffer:
			for i, j := 0, len(c.Bytes)-1; i < j; i, j = i+1, j-1 {
				c.Bytes[i], c.Bytes[j] = c.Bytes[j], c.Bytes[i]
			}
		default:
			return vmerr.New(vmerr.TypeMismatch, "REVERSEITEMS unsupported for %s", v.Type())
		}
		return nil
	case opcode.REMOVE:
		key, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		c, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		switch a := c.(type) {
		case *stackitem.Array:
			idx, err := indexFromItem(key, a.Len())
			if err != nil {
				return err
			}
			old := a.At(idx)
			a.Remove(idx)
			e.rc.Remove(old)
		case *stackitem.Struct:
			idx, err := indexFromItem(key, a.Len())
			if err != nil {
				return err
			}
			old := a.At(idx)
			a.Remove(idx)
			e.rc.Remove(old)
		case *stackitem.Map:
			if old, ok := a.Get(key); ok {
				a.Delete(key)
				e.rc.Remove(old)
				e.rc.Remove(key)
			}
		default:
			return vmerr.New(vmerr.TypeMismatch, "REMOVE requires a compound")
		}
		return nil
	case opcode.CLEARITEMS:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		switch c := v.(type) {
		case *stackitem.Array:
			e.rc.RemoveContained(c)
			c.Clear()
		case *stackitem.Struct:
			e.rc.RemoveContained(c)
			c.Clear()
		case *stackitem.Map:
			e.rc.RemoveContained(c)
			c.Clear()
		default:
			return vmerr.New(vmerr.TypeMismatch, "CLEARITEMS unsupported for %s", v.Type())
		}
		return nil
	case opcode.POPITEM:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		var item stackitem.Item
		switch c := v.(type) {
		case *stackitem.Array:
			idx := c.Len() - 1
			item = c.At(idx)
			c.Remove(idx)
		case *stackitem.Struct:
			idx := c.Len() - 1
			item = c.At(idx)
			c.Remove(idx)
		default:
			return vmerr.New(vmerr.TypeMismatch, "POPITEM requires Array or Struct")
		}
		e.rc.Remove(item)
		return ctx.Estack.Push(item)

	// ---- type ----
	case opcode.ISNULL:
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		_, isNull := v.(stackitem.Null)
		return ctx.Estack.Push(stackitem.NewBool(isNull))
	case opcode.ISTYPE:
		typ, err := ctx.readByte()
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		return ctx.Estack.Push(stackitem.NewBool(v.Type() == stackitem.Type(typ)))
	case opcode.CONVERT:
		typ, err := ctx.readByte()
		if err != nil {
			return err
		}
		v, err := ctx.Estack.Pop()
		if err != nil {
			return err
		}
		result, err := stackitem.Convert(v, stackitem.Type(typ))
		if err != nil {
			return vmerr.New(vmerr.TypeMismatch, "%v", err)
		}
		return ctx.Estack.Push(result)
	}

	return vmerr.New(vmerr.InvalidOpcode, "unimplemented opcode 0x%02X", byte(op))
}

func jumpOffset(ctx *Context, op, wideOp opcode.Opcode) (int, error) {
	if op == wideOp {
		return readOffset4(ctx)
	}
	return readOffset1(ctx)
}

func checkCount(n int64) error {
	if n < 0 || n > stackitem.MaxStackSize {
		return vmerr.New(vmerr.InvalidArgument, "count %d out of range", n)
	}
	return nil
}

func tryIndex(key stackitem.Item) (int64, bool) {
	bi, ok := key.(stackitem.BigInteger)
	if !ok {
		return 0, false
	}
	return bi.Value().Int64(), true
}

func indexFromItem(key stackitem.Item, length int) (int, error) {
	bi, ok := key.(stackitem.BigInteger)
	if !ok {
		return 0, vmerr.New(vmerr.TypeMismatch, "index must be an Integer")
	}
	idx := bi.Value().Int64()
	if idx < 0 || idx >= int64(length) {
		return 0, vmerr.New(vmerr.OutOfRange, "index %d out of range (length %d)", idx, length)
	}
	return int(idx), nil
}
