// Package staged runs the staged upload protocol for bulk mutations: request a write
// target, upload the variables payload to it, then trigger the write job referencing the
// uploaded object's key.
package staged
