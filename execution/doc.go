// Package execution creates execution contexts for dynamically loaded modules.
//
// An execution context is bound to one module file. It either hosts the
// module in a separate worker process (IsolatedContext), so that unloading
// the context releases every type and object it loaded, or in the calling
// process (DirectContext) where isolation is unavailable or not requested.
// Both kinds expose the same ExecutionContext interface, and failures raised
// by a module's constructors surface as the original error in either mode.
//
// Usage:
//
//	ec, err := execution.New(logger, execution.Request{
//	    ModulePath: "./plugins/greeter.so",
//	    Isolate:    true,
//	    ShadowCopy: true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer ec.Dispose()
//
//	obj, err := ec.CreateObject("", "Greeter", "hello")
package execution
