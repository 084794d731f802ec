// Package runtime implements the per-runtime-kind launch/close/pause
// mechanics behind the lifecycle orchestrator.
//
// Three handlers cover the closed set of runtime kinds: native processes
// (supervised directly through Supervisor), web-engine apps and
// declarative-UI (qml) apps (both delegated to an engine bridge). Handlers
// run on the orchestrator's event loop and report status changes through a
// StatusSink rather than mutating orchestrator state.
package runtime
