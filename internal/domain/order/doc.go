// Package order implements the order aggregate: the status machine, the
// pure Decide/Fold pair, and minor-unit money arithmetic.
//
// Current state is never stored; it is replayed by folding the ordered event
// list. Decide evaluates a command against replayed state and returns events
// or rejections without touching storage.
package order
