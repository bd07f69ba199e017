// Package jsonextract extracts the elements of a named JSON array embedded
// in an arbitrarily large JSON document, streaming them to NDJSON or
// JSON-array output without ever building a DOM.
//
// The input is scanned once with bounded memory.  Element bytes are emitted
// verbatim: the only transformation ever applied is the optional replacement
// of line breaks by spaces inside NDJSON records.  Output can be a single
// file, standard output, or a series of chunk files of a fixed number of
// elements each, and NDJSON output can optionally be written by a pool of
// parallel workers.
//
// Typical use:
//
//	result, err := jsonextract.Run(jsonextract.Config{
//		Input:  "dump.json",
//		Output: "accounts.ndjson",
//		Key:    "accounts",
//	})
package jsonextract
