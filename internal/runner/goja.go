package runner

import (
	"context"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/tliron/commonlog"
)

// GojaRunner evaluates programs in-process on a fresh goja VM per run.
// It serves as the reference engine: goja interprets only, so a divergence
// between it and a JIT-compiling target engine points at the target.
type GojaRunner struct {
	log commonlog.Logger
}

// NewGojaRunner returns a runner.
func NewGojaRunner() *GojaRunner {
	return &GojaRunner{log: commonlog.GetLogger("jolt.runner")}
}

const interruptReason = "execution timeout"

// Run implements Runner.
func (r *GojaRunner) Run(ctx context.Context, script string, timeout time.Duration, purpose Purpose) (exec Execution) {
	vm := goja.New()

	var stdout strings.Builder
	logFn := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		stdout.WriteString(strings.Join(parts, " "))
		stdout.WriteByte('\n')
		return goja.Undefined()
	}
	console := vm.NewObject()
	if err := console.Set("log", logFn); err != nil {
		return Execution{Outcome: Crashed}
	}
	if err := vm.Set("console", console); err != nil {
		return Execution{Outcome: Crashed}
	}
	if err := vm.Set("print", logFn); err != nil {
		return Execution{Outcome: Crashed}
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()
	watchdogDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(interruptReason)
		case <-watchdogDone:
		}
	}()

	start := time.Now()
	defer func() {
		close(watchdogDone)
		exec.ExecTime = time.Since(start)
		exec.Stdout = stdout.String()
		if p := recover(); p != nil {
			// The engine itself fell over; surface it as a crash so the
			// execution path can route it to the crash reporter.
			r.log.Errorf("engine crash during %s execution: %v", purpose, p)
			exec.Outcome = Crashed
			exec.Signal = 6
		}
	}()

	_, err := vm.RunString(script)
	switch e := err.(type) {
	case nil:
		return Execution{Outcome: Succeeded}
	case *goja.InterruptedError:
		return Execution{Outcome: TimedOut}
	case *goja.Exception:
		return Execution{Outcome: Failed, Status: 1, Stderr: e.String()}
	default:
		return Execution{Outcome: Failed, Status: 1, Stderr: err.Error()}
	}
}
