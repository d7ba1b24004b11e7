// Package localstore provides validated, self-healing access to one
// device-local collection.
//
// A Store reads and writes a single key of a Backend. The persisted value is a
// JSON array of elements; the envelope {"state":{"<field>":[...]}} written by
// earlier storefront builds is also accepted on read.
//
// Read never fails. Corrupt values are discarded and rewritten as [], and a
// partially valid array is rewritten with only its valid elements. Write never
// fails either: storage and encoding errors are logged and the previously
// persisted value is left as is. Only Clear reports errors, since callers
// clear after consuming the data and need to know whether that happened.
package localstore
