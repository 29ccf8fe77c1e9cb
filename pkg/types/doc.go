// Package types defines the backend collaborator interface and the shared
// data types exchanged between the filesystem layer and object storage
// drivers.
//
// The Backend interface models what a flat key-object store actually
// offers: get, put, delete, list-by-prefix, copy, and a same-bucket atomic
// rename. Everything directory- or channel-shaped is emulated above it.
package types
