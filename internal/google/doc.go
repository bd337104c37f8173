// Package google implements the worklist, blob store and source fetcher on
// top of the Google Sheets and Drive APIs.
package google

import "github.com/user/logscribe/internal/types"

var _ types.Worklist = (*SheetsWorklist)(nil)
var _ types.BlobStore = (*DriveStore)(nil)
var _ types.Fetcher = (*DriveFetcher)(nil)
