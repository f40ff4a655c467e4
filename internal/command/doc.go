// Package command resolves scanned identifiers to Volumio commands.
//
// A Table is built once at startup from the configured identifier map and
// never mutated afterwards. Resolution is a lookup with one built-in
// fallback: identifiers of exactly ten digits that match no configured
// entry play the playlist named by the identifier.
package command
