// Package unsafehelpers centralises **all** unavoidable usage of the
// `unsafe` standard‑library package so that the rest of heapcache stays clean
// and easier to audit.  Every helper is documented with clear pre‑/post‑
// conditions.
//
// ⚠️  **DISCLAIMER**   These helpers deliberately break the Go memory‑safety
// model for the sake of zero‑allocation conversions.  Use ONLY inside this
// repository; they are not part of the public API and may change without
// notice.  Misuse will lead to subtle data‑races.
//
// All functions are `go:linkname`‑free, cgo‑free and pure Go 1.24.
//
// © 2025 heapcache authors. MIT License.

package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   Scalar key byte view
   ------------------------------------------------------------------------- */

// ScalarBytes returns a read-only view over the in-memory representation of
// *v, for hashing fixed-width scalar keys (ints, structs of scalars) without
// a reflect-based encoder. The slice must not outlive v and must never be
// mutated; used by internal/hashtable for every key type that isn't string
// or []byte.
func ScalarBytes[T any](v *T) []byte {
    return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}
