package domain

// Library is a named collection of indexed files.
type Library struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // Unix timestamp
}

// Location is a directory on disk that the core indexes and watches.
type Location struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name,omitempty"` // Display name, defaults to the base of Path
	Path      string `json:"path"`           // Absolute path on disk
	CreatedAt int64  `json:"created_at"`
}

// File is a unique file identified by its content address. Multiple
// file paths may resolve to the same File after identification.
type File struct {
	ID          uint64 `json:"id"`
	CasID       string `json:"cas_id"` // Content-address id (truncated blake3)
	SizeInBytes int64  `json:"size_in_bytes"`
	CreatedAt   int64  `json:"created_at"`
}

// FilePath is a single on-disk path discovered under a location.
// FileID is zero until the identifier job links it to a unique File.
type FilePath struct {
	ID               uint64 `json:"id"`
	LocationID       uint64 `json:"location_id"`
	MaterializedPath string `json:"materialized_path"` // Relative to the location root
	IsDir            bool   `json:"is_dir"`
	SizeInBytes      int64  `json:"size_in_bytes"`
	FileID           uint64 `json:"file_id,omitempty"` // 0 = orphan (not yet identified)
}

// IsOrphan reports whether the path has not been linked to a unique File.
func (p FilePath) IsOrphan() bool {
	return p.FileID == 0 && !p.IsDir
}

// Tag is a user-defined label that can be assigned to files.
type Tag struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"` // Opaque display value, stored verbatim
	CreatedAt int64  `json:"created_at"`
}

// TagAssignment links a tag to a file.
type TagAssignment struct {
	FileID uint64 `json:"file_id"`
	TagID  uint64 `json:"tag_id"`
}

// Volume is a mounted storage device visible to the core.
type Volume struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	MountPoint string `json:"mount_point"`
	TotalBytes int64  `json:"total_bytes,omitempty"`
	Mounted    bool   `json:"mounted"`
}
