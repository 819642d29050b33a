package domains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpr "github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"
)

// Runtime exposes the CDP Runtime domain actions.
type Runtime interface {
	Enable(ctx context.Context) error
	// Evaluate evaluates expression in the page main world.
	Evaluate(ctx context.Context, expression string, returnByValue bool) (*cdpr.RemoteObject, error)
	// CallFunctionOn calls fn with this bound to objectID.
	CallFunctionOn(
		ctx context.Context, objectID cdpr.RemoteObjectID, fn string, returnByValue bool, args ...interface{},
	) (*cdpr.RemoteObject, error)
	ReleaseObject(ctx context.Context, objectID cdpr.RemoteObjectID) error
}

var _ Runtime = &runtime{}

type runtime struct {
	exec cdp.Executor
}

// NewRuntime returns a new CDP Runtime domain wrapper.
func NewRuntime(exec cdp.Executor) Runtime {
	return &runtime{exec}
}

func (r *runtime) Enable(ctx context.Context) error {
	if err := cdpr.Enable().Do(cdp.WithExecutor(ctx, r.exec)); err != nil {
		return fmt.Errorf("enabling runtime CDP domain: %w", err)
	}

	return nil
}

func (r *runtime) Evaluate(ctx context.Context, expression string, returnByValue bool) (*cdpr.RemoteObject, error) {
	action := cdpr.Evaluate(expression).
		WithReturnByValue(returnByValue).
		WithAwaitPromise(true)
	res, exc, err := action.Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return nil, fmt.Errorf("evaluating expression: %w", err)
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}

	return res, nil
}

func (r *runtime) CallFunctionOn(
	ctx context.Context, objectID cdpr.RemoteObjectID, fn string, returnByValue bool, args ...interface{},
) (*cdpr.RemoteObject, error) {
	cargs := make([]*cdpr.CallArgument, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshalling function argument: %w", err)
		}
		cargs = append(cargs, &cdpr.CallArgument{Value: easyjson.RawMessage(b)})
	}

	action := cdpr.CallFunctionOn(fn).
		WithObjectID(objectID).
		WithArguments(cargs).
		WithReturnByValue(returnByValue).
		WithAwaitPromise(true)
	res, exc, err := action.Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return nil, fmt.Errorf("calling function on %q: %w", objectID, err)
	}
	if exc != nil {
		return nil, exceptionError(exc)
	}

	return res, nil
}

func (r *runtime) ReleaseObject(ctx context.Context, objectID cdpr.RemoteObjectID) error {
	return cdpr.ReleaseObject(objectID).Do(cdp.WithExecutor(ctx, r.exec))
}

func exceptionError(exc *cdpr.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	return fmt.Errorf("page exception: %w", errors.New(msg))
}
