// Package state provides filesystem-backed worklist and blob storage.
package state

import "github.com/user/logscribe/internal/types"

// Compile-time interface compliance checks.
var _ types.BlobStore = (*BlobStore)(nil)
var _ types.Worklist = (*CSVWorklist)(nil)
