// Package ident generates identifiers for data items and operations.
package ident

import "github.com/google/uuid"

// namespace anchors deterministic ids. Changing it would break id
// stability for everything ingested by earlier releases.
var namespace = uuid.MustParse("b51cc41c-30a6-44fe-9cd0-3ffde4f41d90")

// New returns a fresh globally unique identifier.
func New() string {
	return uuid.New().String()
}

// Deterministic returns an identifier that is a pure function of key:
// equal keys yield equal ids across runs and processes. Used when
// re-importing the same external source must resolve to the same data
// item, so provenance and cross-references from earlier runs stay valid.
func Deterministic(key string) string {
	return uuid.NewSHA1(namespace, []byte(key)).String()
}
