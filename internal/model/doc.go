// Package model defines the records reconciled between anonymous and
// identified sessions: cart lines, favorite entries and identities.
//
// This package imports nothing internal. Every other internal package builds
// on these types.
//
// Key constraints:
//   - Identity keys are normalised (trimmed, Unicode NFC) before comparison
//   - A CartLine quantity is always a positive integer once stored
//   - FavoriteEntry serialises as a bare product-id string
package model
