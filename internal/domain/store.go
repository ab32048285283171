package domain

// Store provides handlers and jobs controlled access to core state.
// Every mutating method is atomic with respect to other mutations on
// the same entity; reads observe a consistent snapshot.
//
// Methods that look up a single entity return the matching sentinel
// error (ErrLibraryNotFound, ErrTagNotFound, ...) when it is absent.
type Store interface {
	// === Libraries ===
	CreateLibrary(lib *Library) error
	GetLibrary(id uint64) (Library, error)
	GetLibraryByName(name string) (Library, error)
	ListLibraries() ([]Library, error)
	DeleteLibrary(id uint64) error

	// === Locations ===
	CreateLocation(loc *Location) error
	GetLocation(id uint64) (Location, error)
	GetLocationByPath(path string) (Location, error)
	ListLocations() ([]Location, error)
	UpdateLocation(loc Location) error
	// DeleteLocation removes the location and all of its file paths.
	DeleteLocation(id uint64) error

	// === Files ===
	// CreateFile inserts a unique file record. If a file with the same
	// cas id already exists the existing record is returned unchanged.
	CreateFile(f *File) (File, error)
	GetFile(id uint64) (File, error)
	GetFileByCasID(casID string) (File, error)
	// DeleteFile removes the file, unlinks its file paths and drops its
	// tag assignments.
	DeleteFile(id uint64) error

	// === File paths ===
	CreateFilePath(fp *FilePath) error
	GetFilePath(id uint64) (FilePath, error)
	FilePathsByLocation(locationID uint64) ([]FilePath, error)
	// OrphanFilePaths returns up to limit non-directory paths with no
	// linked file, with id > afterID, in ascending id order.
	OrphanFilePaths(locationID, afterID uint64, limit int) ([]FilePath, error)
	CountOrphanFilePaths(locationID uint64) (int, error)
	LinkFilePath(pathID, fileID uint64) error

	// === Tags ===
	CreateTag(tag *Tag) error
	GetTag(id uint64) (Tag, error)
	GetTagByName(name string) (Tag, error)
	UpdateTag(tag Tag) error
	// DeleteTag removes the tag and all of its assignments.
	DeleteTag(id uint64) error
	// AssignTag links a tag to a file. Re-assigning is a no-op.
	AssignTag(fileID, tagID uint64) error
	TagsForFile(fileID uint64) ([]Tag, error)

	// === Volumes ===
	SaveVolume(v *Volume) error
	GetVolume(id uint64) (Volume, error)
	ListVolumes() ([]Volume, error)

	Close() error
}
