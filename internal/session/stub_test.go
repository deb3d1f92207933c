package session_test

import (
	"fmt"
	"io"
	"sync"

	"github.com/opsbotio/jabberops/internal/script"
)

// stubFactory counts constructions and builds stubEngines. A non-nil err
// makes construction fail, simulating interpreter misconfiguration.
type stubFactory struct {
	mu      sync.Mutex
	err     error
	eval    func(src string, out io.Writer) (any, error)
	created int
}

func (f *stubFactory) New(out io.Writer) (script.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.created++
	return &stubEngine{out: out, eval: f.eval}, nil
}

func (f *stubFactory) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.created
}

func (f *stubFactory) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.err = err
}

// stubEngine echoes the script text to its output unless a custom eval
// function is installed.
type stubEngine struct {
	out  io.Writer
	eval func(src string, out io.Writer) (any, error)
}

func (e *stubEngine) Evaluate(src string) (any, error) {
	if e.eval != nil {
		return e.eval(src, e.out)
	}
	fmt.Fprint(e.out, src)
	return nil, nil
}
