// Package types defines the Store interface, the Bookmark and Folder
// entities, the DNF query model, and the standard errors shared by every
// bookmark storage backend.
package types
