// Package transport moves token pairs between HTTP messages and the engine
// without deciding anything about them. A Transport knows where tokens live
// on the wire (headers or cookies); it never validates, parses, or persists
// them.
//
// # What this package must NOT do
//
//   - Inspect token contents.
//   - Call the engine or any store.
//   - Invent its own error taxonomy beyond "not present".
package transport
