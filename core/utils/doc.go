// Package utils provides small conversion helpers shared by the row codec and
// the HTTP handlers: strict quantity parsing, string coercion and flag parsing.
package utils
