// Package session implements the pre-checkout session aggregate: an unpriced
// cart, a browsing interaction log, and the conversion marker that links a
// session to the order created from it.
package session
