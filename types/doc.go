// Package types contains the core types and interfaces shared across the
// brod library.
//
// Internal packages depend on this package instead of the root brod package,
// which avoids import cycles while the root package re-exports the most
// commonly used definitions via type aliases.
package types
