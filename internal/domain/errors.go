package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrLibraryNotFound indicates the requested library does not exist
	ErrLibraryNotFound = errors.New("library not found")

	// ErrFileNotFound indicates the requested file does not exist
	ErrFileNotFound = errors.New("file not found")

	// ErrFilePathNotFound indicates the requested file path does not exist
	ErrFilePathNotFound = errors.New("file path not found")

	// ErrTagNotFound indicates the requested tag does not exist
	ErrTagNotFound = errors.New("tag not found")

	// ErrLocationNotFound indicates the requested location does not exist
	ErrLocationNotFound = errors.New("location not found")

	// ErrVolumeNotFound indicates the requested volume does not exist
	ErrVolumeNotFound = errors.New("volume not found")

	// ErrNameConflict indicates a name is already in use where uniqueness is enforced
	ErrNameConflict = errors.New("name already in use")

	// ErrPathConflict indicates the path is already registered as a location
	ErrPathConflict = errors.New("path already registered")

	// ErrVolumeNotMounted indicates the volume is already unmounted
	ErrVolumeNotMounted = errors.New("volume is not mounted")

	// ErrLocationBusy indicates a job is still running against the location
	ErrLocationBusy = errors.New("location has an active job")

	// ErrInvalidInput indicates semantically invalid parameters (e.g. an empty name)
	ErrInvalidInput = errors.New("invalid input")
)
