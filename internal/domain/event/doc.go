// Package event defines the canonical event envelope and event-type registry
// used by the order-engine write path.
//
// Events are immutable business facts emitted by accepted decisions. The
// registry enforces the closed event-type set, actor metadata, and payload
// validity before the store assigns version and recorded-at fields.
//
// A stable event contract is the foundation for replay determinism, projection
// correctness, and the audit timeline.
package event
