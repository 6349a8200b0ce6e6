package state

import (
	"github.com/r3e-network/neo-execution-specs/pkg/stackitem"
	"github.com/r3e-network/neo-execution-specs/pkg/util"
)

// NotificationEvent is one emitted event, reported back in VM result
// reporting as (emitter-hash, event-name, state items) (spec.md §6.5).
type NotificationEvent struct {
	ScriptHash util.Uint160
	Name       string
	Item       *stackitem.Array
}
