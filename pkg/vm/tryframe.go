package vm

import "github.com/r3e-network/neo-execution-specs/pkg/stackitem"

// tryPhase is the state of a try frame, following the state machine of
// spec.md §4.4.
type tryPhase int

const (
	phaseTry tryPhase = iota
	phaseCatch
	phaseFinally
)

// MaxTryNestingDepth bounds the try-stack depth per context (spec.md §4.2).
const MaxTryNestingDepth = 16

// tryFrame is one TRY/CATCH/FINALLY block.
type tryFrame struct {
	phase         tryPhase
	catchOffset   int // absolute IP, -1 if absent
	finallyOffset int // absolute IP, -1 if absent
	catchUsed     bool

	// normalEndTarget is the IP to resume at once FINALLY completes
	// without a pending exception (set by ENDTRY).
	normalEndTarget int
	// pendingException is non-nil when FINALLY was entered because of an
	// in-flight THROW rather than a normal ENDTRY; ENDFINALLY resumes
	// propagating it (spec.md §8 invariant 11).
	pendingException stackitem.Item
}

func newTryFrame(catchOffset, finallyOffset int) *tryFrame {
	return &tryFrame{
		phase:         phaseTry,
		catchOffset:   catchOffset,
		finallyOffset: finallyOffset,
	}
}

func (f *tryFrame) hasCatch() bool   { return f.catchOffset >= 0 && !f.catchUsed }
func (f *tryFrame) hasFinally() bool { return f.finallyOffset >= 0 }
