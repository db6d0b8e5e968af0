// Package pipeline drives caiber's four-stage intelligence workflow:
// requirements generation, threat collection, threat correlation and
// threat model construction.
//
// The package is independent of what the stages compute. It knows about:
//   - Definition and Graph: which stages exist and what each depends on,
//     validated once and resolved into a total execution order
//   - Executor: the narrow contract every remote stage implements
//   - ResultAccumulator: the write-once outputs of the current run
//   - Clock: the time source used for start and end stamps
//   - NotificationSink: where progress events go
//   - Controller: the state machine that ties it all together
//
// # Run lifecycle
//
// A Controller owns at most one run. Start moves it from idle (or from a
// finished run) to running and spawns a driver goroutine that executes the
// stages strictly one after another. The first failure marks that stage
// error, leaves every later stage pending and ends the run; nothing is
// retried. Reset discards the run from any state.
//
// Every run carries a generation number. Reset and Start bump it, and the
// driver checks it before each mutation, so an executor call that returns
// after its run was discarded cannot touch the newer run.
//
//	graph := pipeline.MustDefaultGraph()
//	ctrl, err := pipeline.NewController(graph, executor,
//	    pipeline.WithSink(pipeline.NewLogSink(logger)),
//	    pipeline.WithStageTimeout(5*time.Minute),
//	)
//	snap, err := ctrl.Run(ctx, sessionID)
package pipeline
