package script

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dop251/goja"

	"github.com/opsbotio/jabberops/internal/auth"
)

// GojaFactory builds ECMAScript engines with the standard session bindings:
// print/println writing to the session's output sink, and an auth object
// scripts use to log in and out.
type GojaFactory struct {
	authenticator auth.Authenticator
}

// NewGojaFactory creates a factory whose engines authenticate through the
// given authenticator.
func NewGojaFactory(authenticator auth.Authenticator) *GojaFactory {
	return &GojaFactory{authenticator: authenticator}
}

// New implements Factory.New.
func (f *GojaFactory) New(out io.Writer) (Engine, error) {
	eng := &gojaEngine{
		vm:  goja.New(),
		out: out,
	}

	binding := &authBinding{authenticator: f.authenticator}
	bindings := map[string]any{
		"print":   eng.print,
		"println": eng.println,
		"auth": map[string]any{
			"login":  binding.login,
			"logout": binding.logout,
		},
	}
	for name, value := range bindings {
		if err := eng.vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to install %s binding: %w", name, err)
		}
	}

	return eng, nil
}

// gojaEngine wraps one goja runtime. The runtime is exclusively owned by a
// single session and must never be shared.
type gojaEngine struct {
	vm  *goja.Runtime
	out io.Writer
}

var _ Engine = (*gojaEngine)(nil)

// Evaluate implements Engine.Evaluate.
func (e *gojaEngine) Evaluate(src string) (any, error) {
	value, err := e.vm.RunString(src)
	if err != nil {
		var exc *goja.Exception
		if errors.As(err, &exc) {
			return nil, fmt.Errorf("script raised: %w", err)
		}
		return nil, fmt.Errorf("script failed: %w", err)
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}

// print writes its arguments to the session output, space separated.
func (e *gojaEngine) print(args ...any) {
	for i, arg := range args {
		if i > 0 {
			fmt.Fprint(e.out, " ")
		}
		fmt.Fprint(e.out, arg)
	}
}

// println is print with a trailing newline.
func (e *gojaEngine) println(args ...any) {
	e.print(args...)
	fmt.Fprint(e.out, "\n")
}

// authBinding carries the per-session login state behind the script-visible
// auth object. goja throws the returned errors into the script, so a failed
// login surfaces as a catchable exception.
type authBinding struct {
	authenticator auth.Authenticator
	principal     *auth.Principal
}

// login authenticates and remembers the principal for this session.
func (b *authBinding) login(user, password string) (string, error) {
	principal, err := b.authenticator.Login(context.Background(), user, password)
	if err != nil {
		return "", fmt.Errorf("login failed for %s: %w", user, err)
	}
	b.principal = principal
	return principal.Name, nil
}

// logout terminates the session's principal. Logging out while not logged
// in is a no-op.
func (b *authBinding) logout() error {
	if b.principal == nil {
		return nil
	}
	if err := b.authenticator.Logout(context.Background(), b.principal); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	b.principal = nil
	return nil
}
