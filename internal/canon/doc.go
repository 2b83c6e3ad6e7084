// Package canon produces canonical JSON and domain-separated content hashes.
//
// Canonical JSON follows RFC 8785 for the value types the ledger needs:
//   - Object keys sorted by UTF-16 code units
//   - No insignificant whitespace, no HTML escaping
//   - Strings NFC normalized
//   - Integers only (floats and null are rejected)
//
// Variance reports are fingerprinted with Digest so an approval can be bound
// to the exact report a manager reviewed.
package canon
