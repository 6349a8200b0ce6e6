// Package t8ntool implements the transition-tool command cmd/t8n
// drives: load a prestate (genesis alloc + environment), apply a list
// of transactions against it, and emit the resulting alloc and a
// per-transaction execution result, the same input/output contract
// real NeoVM's t8n-equivalent tooling and go-core's cmd/cvm t8ntool
// expose (seen in `_examples`'s cmd/cvm/internal/t8ntool/execution.go).
package t8ntool

import "fmt"

// Exit codes returned to the shell, mirroring the numbered-error
// convention cmd/cvm's t8ntool uses to let main.go pick os.Exit's code
// straight off the error.
const (
	ErrorIO = iota + 2
	ErrorRLP
	ErrorCVM
	ErrorConfig
	ErrorMissingBlockhash
)

// NumberedError pairs a message with one of the exit codes above.
type NumberedError struct {
	code int
	err  error
}

// NewError wraps err with the given exit code.
func NewError(code int, err error) *NumberedError {
	return &NumberedError{code: code, err: err}
}

func (n *NumberedError) Error() string { return n.err.Error() }

// Code returns the process exit code main.go should use.
func (n *NumberedError) Code() int { return n.code }

func errf(code int, format string, args ...interface{}) *NumberedError {
	return NewError(code, fmt.Errorf(format, args...))
}
