// Package catalog defines the read-only restaurant menu.
//
// A Catalog is built once per process from a Source and never modified
// afterwards, so it can be shared freely between request handlers.
package catalog
