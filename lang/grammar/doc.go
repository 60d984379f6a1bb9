// Package grammar holds the language's EBNF grammar as a reference document
// for the hand-written single-pass compiler in lang/compiler. The grammar is
// not consumed at runtime; its test keeps it well-formed and fully reachable
// so it cannot silently rot as the compiler evolves.
package grammar
