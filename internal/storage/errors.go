package storage

import "errors"

var (
	// ErrInvalidPathPolicy is returned when path_generator is unknown.
	ErrInvalidPathPolicy = errors.New("invalid path_generator")
	// ErrInvalidFilenamePolicy is returned when filename_generator is unknown.
	ErrInvalidFilenamePolicy = errors.New("invalid filename_generator")
	// ErrNoHasher is returned when the static filename policy has no hasher.
	ErrNoHasher = errors.New("static filenames need a content hasher")
)
