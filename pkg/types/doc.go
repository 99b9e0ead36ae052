// Package types defines the configuration, entity types, lifecycle interfaces
// and standard errors for term metadata storage.
//
// The backend (internal/store) plays the host role: it owns sites, options,
// terms and the generic metadata subsystem, and it dispatches lifecycle
// events to registered components through the small interfaces declared in
// lifecycle.go. The term metadata component (internal/termmeta) implements
// those interfaces.
package types
