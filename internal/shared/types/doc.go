// Package types provides shared data structures for the application manager.
//
// This package defines core types used across all components, ensuring
// type safety and consistent data structures.
//
// Core Types:
//   - AppDescriptor: Installed application metadata
//   - LifeStatus: App-level lifecycle status exposed to the platform
//   - RuntimeStatus: Process-level status tracked per runtime handler
//   - RuntimeKind: Closed set of supported application runtimes
//   - LifeEvent: Lifecycle events published to subscribers
//
// Example Usage:
//
//	desc := &types.AppDescriptor{
//	    ID:   "com.example.gallery",
//	    Kind: types.RuntimeWeb,
//	}
package types
