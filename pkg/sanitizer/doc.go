// Package sanitizer normalizes catalogue data for display in responses,
// receipts and emails.
//
// All functions are idempotent - applying them multiple times produces the
// same result. They never fail: input that cannot be normalized is returned
// trimmed rather than dropped, since the source documents are owned by
// another service.
//
// Normalization includes:
//   - Strings: Collapse whitespace, trim leading/trailing spaces
//   - Phone numbers: International format for the default region, e.g. "+91 98765 43210"
//   - Addresses: Joined from non-empty parts with ", "
package sanitizer
