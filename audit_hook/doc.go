// Package audithook bridges execq lifecycle events to an audit trail.
//
// The extension subscribes to the hook registry and emits one structured
// audit event per lifecycle transition through an injected [Recorder].
// The Recorder interface is defined locally so the package carries no
// dependency on any particular audit backend — wire a RecorderFunc that
// writes to whatever trail the deployment uses.
//
//	eng, _ := engine.New(store,
//	    engine.WithExtension(audithook.New(recorder)),
//	)
package audithook
