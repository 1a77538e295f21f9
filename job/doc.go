// Package job defines the Job model, its status state machine, and the
// Store contract every backend must satisfy.
//
// A Job is one unit of work: a shell command plus its lifecycle state.
// Status moves strictly forward:
//
//	pending → running → succeeded | failed
//	pending → cancelled
//	running → cancelled
//
// succeeded, failed, and cancelled are terminal. The Store contract makes
// every compound transition (queue mutation + record mutation) a single
// atomic unit per job id; see Store for the exact guarantees.
package job
