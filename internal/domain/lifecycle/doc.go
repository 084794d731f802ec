// Package lifecycle implements the application lifecycle orchestrator.
//
// The orchestrator accepts launch/pause/close requests, walks each launch
// through the fixed pipeline (prelaunch -> memory-check -> launch -> done),
// delegates the terminal stage to the runtime handler owning the app's
// runtime kind, and routes every resulting status change through the
// StatusRouter before publishing it.
//
// All orchestrator state is confined to a single event loop; collaborators
// complete asynchronously via callbacks keyed by the item's uid. Stale or
// duplicate callbacks are detected by comparing the named stage against the
// item's recorded stage and dropped.
package lifecycle
