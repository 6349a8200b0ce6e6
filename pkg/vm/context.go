package vm

import (
	"encoding/binary"

	"github.com/r3e-network/neo-execution-specs/pkg/smartcontract/callflag"
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/vmerr"
)

// Context is one execution context (spec.md §3.3): a script, an
// instruction pointer, a per-frame evaluation stack, three slot arrays,
// a try-stack, call flags, and a notification cursor used to roll back
// a caller's view of notifications emitted by a faulted callee.
type Context struct {
	Script     []byte
	ScriptHash [20]byte
	ip         int

	Estack *Stack

	locals *slotArray
	args   *slotArray
	static *slotArray

	tryStack []*tryFrame

	CallFlags callflag.CallFlag

	// NotificationCursor is the length of the engine-wide notification
	// log at the moment this context was pushed; a FAULT unwinding past
	// this context truncates notifications back to this cursor.
	NotificationCursor int

	// ContractHash identifies the deployed/native contract this script
	// belongs to, for permission and manifest lookups. Zero value means
	// a dynamic (LoadScript) invocation.
	ContractHash [20]byte

	// ContractID is ContractHash's contract-id, used to namespace
	// storage keys (spec.md §6.3). Zero for a dynamic invocation that
	// never touches contract storage.
	ContractID int32
}

func newContext(rc *stackitem.RefCounter, script []byte, scriptHash [20]byte, flags callflag.CallFlag) *Context {
	return &Context{
		Script:     script,
		ScriptHash: scriptHash,
		Estack:     newStack(rc),
		locals:     newSlotArray(rc, 0),
		args:       newSlotArray(rc, 0),
		static:     newSlotArray(rc, 0),
		CallFlags:  flags,
	}
}

// IP returns the current instruction pointer.
func (c *Context) IP() int { return c.ip }

// AtEnd reports whether the instruction pointer has run off the script.
func (c *Context) AtEnd() bool { return c.ip >= len(c.Script) }

// Jump sets the instruction pointer directly, used by System.Contract.Call
// to enter a deployed contract's script at its manifest-declared method
// offset instead of at script offset zero.
func (c *Context) Jump(offset int) { c.ip = offset }

func (c *Context) readByte() (byte, error) {
	if c.ip >= len(c.Script) {
		return 0, vmerr.New(vmerr.InvalidOpcode, "instruction pointer past end of script")
	}
	b := c.Script[c.ip]
	c.ip++
	return b, nil
}

func (c *Context) readBytes(n int) ([]byte, error) {
	if n < 0 || c.ip+n > len(c.Script) {
		return nil, vmerr.New(vmerr.InvalidOpcode, "operand extends past end of script")
	}
	b := c.Script[c.ip : c.ip+n]
	c.ip += n
	return b, nil
}

func (c *Context) readUint16() (uint16, error) {
	b, err := c.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Context) readInt16() (int16, error) {
	v, err := c.readUint16()
	return int16(v), err
}

func (c *Context) readInt32() (int32, error) {
	b, err := c.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (c *Context) readUint32() (uint32, error) {
	v, err := c.readInt32()
	return uint32(v), err
}

func (c *Context) initSlots(localCount, argCount int, rc *stackitem.RefCounter) {
	c.locals = newSlotArray(rc, localCount)
	c.args = newSlotArray(rc, argCount)
}

func (c *Context) initStatic(count int, rc *stackitem.RefCounter) {
	c.static = newSlotArray(rc, count)
}

func (c *Context) releaseSlots() {
	c.releaseSlotsOnly()
	c.Estack.Clear()
}

// releaseSlotsOnly releases the slot arrays but leaves the evaluation stack
// intact, for RET where it still needs to move to the caller (or become the
// engine's result stack).
func (c *Context) releaseSlotsOnly() {
	c.locals.release()
	c.args.release()
	c.static.release()
}

// pushTry pushes a new try frame, enforcing MaxTryNestingDepth. The target
// past the whole TRY/CATCH/FINALLY block is supplied later, by the ENDTRY
// instruction itself, so it is not stored on the frame.
func (c *Context) pushTry(catchOffset, finallyOffset int) error {
	if len(c.tryStack) >= MaxTryNestingDepth {
		return vmerr.New(vmerr.LimitExceeded, "try nesting exceeds MaxTryNestingDepth")
	}
	c.tryStack = append(c.tryStack, newTryFrame(catchOffset, finallyOffset))
	return nil
}

func (c *Context) currentTry() *tryFrame {
	if len(c.tryStack) == 0 {
		return nil
	}
	return c.tryStack[len(c.tryStack)-1]
}

func (c *Context) popTry() {
	if len(c.tryStack) > 0 {
		c.tryStack = c.tryStack[:len(c.tryStack)-1]
	}
}
