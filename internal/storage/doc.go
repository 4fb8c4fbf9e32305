// Package storage implements the behavior shared by every storage module:
// deriving a media key from the path and filename policies, uploading the
// file once per storage and recording the resulting URL on the media.
//
// A concrete storage supplies a Backend (CDNURL and Upload) and embeds a
// *Base, which provides Store.
package storage
