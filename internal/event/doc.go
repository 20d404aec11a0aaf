// Package event provides the core event model for ProgSnap2 conversion.
//
// This package contains type definitions and the domain error taxonomy only.
// All other internal packages import event; event imports nothing internal.
// This ensures the event model remains the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - EventID and Order are assigned after the global sort, never before.
//     Until then both hold Unassigned.
//   - Ordering values are sort positions, never wall-clock epoch values.
//   - EventType is an open enumeration: the documented core set plus
//     tool-specific extensions carrying the "X-" prefix.
package event
