// Package documents turns external document payloads into the canonical
// batch encoding the bulk-load pipeline consumes.
//
// A batch is a sorted stream of (incrementing document id, record)
// pairs; a record maps small integer field ids to typed field values.
// Three payload readers are provided (CSV, NDJSON, JSON); they parse,
// validate and count records, and classify failures as either
// malformed input or internal faults. Parsing always completes before
// any store write, so a malformed payload can never corrupt the store.
//
// Nested objects and arrays are not flattened here; flattening is an
// upstream concern and nested values are rejected as malformed.
package documents
