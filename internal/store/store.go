// Package store implements domain.Store on BoltDB. Each entity lives
// in its own bucket with JSON values and big-endian uint64 keys from
// the bucket sequence. Every mutation runs in a single Update
// transaction; reads run in View transactions and therefore observe a
// consistent snapshot.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/arcafs/arca/internal/domain"
)

// Bucket names
var (
	bucketLibraries   = []byte("libraries")
	bucketLocations   = []byte("locations")
	bucketFiles       = []byte("files")
	bucketFilesByCas  = []byte("files_by_cas") // cas id -> file id
	bucketFilePaths   = []byte("file_paths")
	bucketTags        = []byte("tags")
	bucketAssignments = []byte("tag_assignments") // fileID|tagID -> assignment
	bucketVolumes     = []byte("volumes")
)

var allBuckets = [][]byte{
	bucketLibraries, bucketLocations, bucketFiles, bucketFilesByCas,
	bucketFilePaths, bucketTags, bucketAssignments, bucketVolumes,
}

// CoreStore implements domain.Store using BoltDB.
type CoreStore struct {
	db *bolt.DB
}

// Open opens (or creates) the core database under dataDir.
func Open(dataDir string) (*CoreStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "arca.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CoreStore{db: db}, nil
}

func (s *CoreStore) Close() error {
	return s.db.Close()
}

// === Generic helpers ===

func itob(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

func putJSON(b *bolt.Bucket, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getJSON(b *bolt.Bucket, key []byte, dest any) bool {
	v := b.Get(key)
	if v == nil {
		return false
	}
	return json.Unmarshal(v, dest) == nil
}

// assignKey is the composite key for a tag assignment.
func assignKey(fileID, tagID uint64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], fileID)
	binary.BigEndian.PutUint64(k[8:], tagID)
	return k
}

// === Libraries ===

func (s *CoreStore) CreateLibrary(lib *domain.Library) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLibraries)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		lib.ID = id
		return putJSON(b, itob(id), lib)
	})
}

func (s *CoreStore) GetLibrary(id uint64) (domain.Library, error) {
	var lib domain.Library
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketLibraries), itob(id), &lib) {
			return domain.ErrLibraryNotFound
		}
		return nil
	})
	return lib, err
}

func (s *CoreStore) GetLibraryByName(name string) (domain.Library, error) {
	var found domain.Library
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLibraries).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var lib domain.Library
			if json.Unmarshal(v, &lib) == nil && lib.Name == name {
				found = lib
				return nil
			}
		}
		return domain.ErrLibraryNotFound
	})
	return found, err
}

func (s *CoreStore) ListLibraries() ([]domain.Library, error) {
	var libs []domain.Library
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLibraries).ForEach(func(_, v []byte) error {
			var lib domain.Library
			if err := json.Unmarshal(v, &lib); err != nil {
				return err
			}
			libs = append(libs, lib)
			return nil
		})
	})
	return libs, err
}

func (s *CoreStore) DeleteLibrary(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLibraries)
		if b.Get(itob(id)) == nil {
			return domain.ErrLibraryNotFound
		}
		return b.Delete(itob(id))
	})
}

// === Locations ===

func (s *CoreStore) CreateLocation(loc *domain.Location) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocations)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		loc.ID = id
		return putJSON(b, itob(id), loc)
	})
}

func (s *CoreStore) GetLocation(id uint64) (domain.Location, error) {
	var loc domain.Location
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketLocations), itob(id), &loc) {
			return domain.ErrLocationNotFound
		}
		return nil
	})
	return loc, err
}

func (s *CoreStore) GetLocationByPath(path string) (domain.Location, error) {
	var found domain.Location
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLocations).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var loc domain.Location
			if json.Unmarshal(v, &loc) == nil && loc.Path == path {
				found = loc
				return nil
			}
		}
		return domain.ErrLocationNotFound
	})
	return found, err
}

func (s *CoreStore) ListLocations() ([]domain.Location, error) {
	var locs []domain.Location
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocations).ForEach(func(_, v []byte) error {
			var loc domain.Location
			if err := json.Unmarshal(v, &loc); err != nil {
				return err
			}
			locs = append(locs, loc)
			return nil
		})
	})
	return locs, err
}

func (s *CoreStore) UpdateLocation(loc domain.Location) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocations)
		if b.Get(itob(loc.ID)) == nil {
			return domain.ErrLocationNotFound
		}
		return putJSON(b, itob(loc.ID), loc)
	})
}

// DeleteLocation removes the location and all of its file paths in one
// transaction so no reader ever sees a half-deleted location.
func (s *CoreStore) DeleteLocation(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		locs := tx.Bucket(bucketLocations)
		if locs.Get(itob(id)) == nil {
			return domain.ErrLocationNotFound
		}
		if err := locs.Delete(itob(id)); err != nil {
			return err
		}

		paths := tx.Bucket(bucketFilePaths)
		c := paths.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var fp domain.FilePath
			if json.Unmarshal(v, &fp) == nil && fp.LocationID == id {
				if err := paths.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// === Files ===

// CreateFile inserts a unique file record keyed by cas id. If a file
// with the same cas id already exists, the existing record is returned
// and no write happens (the bolt equivalent of ON CONFLICT DO NOTHING).
func (s *CoreStore) CreateFile(f *domain.File) (domain.File, error) {
	var result domain.File
	err := s.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket(bucketFiles)
		byCas := tx.Bucket(bucketFilesByCas)

		if existing := byCas.Get([]byte(f.CasID)); existing != nil {
			if !getJSON(files, existing, &result) {
				return fmt.Errorf("cas index points at missing file %q", f.CasID)
			}
			return nil
		}

		id, err := files.NextSequence()
		if err != nil {
			return err
		}
		f.ID = id
		if err := putJSON(files, itob(id), f); err != nil {
			return err
		}
		if err := byCas.Put([]byte(f.CasID), itob(id)); err != nil {
			return err
		}
		result = *f
		return nil
	})
	return result, err
}

func (s *CoreStore) GetFile(id uint64) (domain.File, error) {
	var f domain.File
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketFiles), itob(id), &f) {
			return domain.ErrFileNotFound
		}
		return nil
	})
	return f, err
}

func (s *CoreStore) GetFileByCasID(casID string) (domain.File, error) {
	var f domain.File
	err := s.db.View(func(tx *bolt.Tx) error {
		idKey := tx.Bucket(bucketFilesByCas).Get([]byte(casID))
		if idKey == nil {
			return domain.ErrFileNotFound
		}
		if !getJSON(tx.Bucket(bucketFiles), idKey, &f) {
			return domain.ErrFileNotFound
		}
		return nil
	})
	return f, err
}

// DeleteFile removes the file, its cas index entry, its tag
// assignments, and unlinks (but keeps) its file paths.
func (s *CoreStore) DeleteFile(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		files := tx.Bucket(bucketFiles)
		var f domain.File
		if !getJSON(files, itob(id), &f) {
			return domain.ErrFileNotFound
		}
		if err := files.Delete(itob(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketFilesByCas).Delete([]byte(f.CasID)); err != nil {
			return err
		}

		// Unlink file paths pointing at this file.
		paths := tx.Bucket(bucketFilePaths)
		pc := paths.Cursor()
		for k, v := pc.First(); k != nil; k, v = pc.Next() {
			var fp domain.FilePath
			if json.Unmarshal(v, &fp) == nil && fp.FileID == id {
				fp.FileID = 0
				if err := putJSON(paths, k, fp); err != nil {
					return err
				}
			}
		}

		// Drop assignments keyed by this file (fileID is the key prefix).
		assigns := tx.Bucket(bucketAssignments)
		ac := assigns.Cursor()
		prefix := itob(id)
		for k, _ := ac.Seek(prefix); k != nil && len(k) == 16 && string(k[:8]) == string(prefix); k, _ = ac.Next() {
			if err := assigns.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// === File paths ===

func (s *CoreStore) CreateFilePath(fp *domain.FilePath) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFilePaths)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		fp.ID = id
		return putJSON(b, itob(id), fp)
	})
}

func (s *CoreStore) GetFilePath(id uint64) (domain.FilePath, error) {
	var fp domain.FilePath
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketFilePaths), itob(id), &fp) {
			return domain.ErrFilePathNotFound
		}
		return nil
	})
	return fp, err
}

func (s *CoreStore) FilePathsByLocation(locationID uint64) ([]domain.FilePath, error) {
	var out []domain.FilePath
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFilePaths).ForEach(func(_, v []byte) error {
			var fp domain.FilePath
			if err := json.Unmarshal(v, &fp); err != nil {
				return err
			}
			if fp.LocationID == locationID {
				out = append(out, fp)
			}
			return nil
		})
	})
	return out, err
}

// OrphanFilePaths pages unidentified paths in ascending id order,
// starting after afterID. Used as the identifier job's batch cursor.
func (s *CoreStore) OrphanFilePaths(locationID, afterID uint64, limit int) ([]domain.FilePath, error) {
	var out []domain.FilePath
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketFilePaths).Cursor()
		for k, v := c.Seek(itob(afterID + 1)); k != nil && len(out) < limit; k, v = c.Next() {
			var fp domain.FilePath
			if err := json.Unmarshal(v, &fp); err != nil {
				return err
			}
			if fp.LocationID == locationID && fp.IsOrphan() {
				out = append(out, fp)
			}
		}
		return nil
	})
	return out, err
}

func (s *CoreStore) CountOrphanFilePaths(locationID uint64) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFilePaths).ForEach(func(_, v []byte) error {
			var fp domain.FilePath
			if err := json.Unmarshal(v, &fp); err != nil {
				return err
			}
			if fp.LocationID == locationID && fp.IsOrphan() {
				count++
			}
			return nil
		})
	})
	return count, err
}

func (s *CoreStore) LinkFilePath(pathID, fileID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		paths := tx.Bucket(bucketFilePaths)
		var fp domain.FilePath
		if !getJSON(paths, itob(pathID), &fp) {
			return domain.ErrFilePathNotFound
		}
		if tx.Bucket(bucketFiles).Get(itob(fileID)) == nil {
			return domain.ErrFileNotFound
		}
		fp.FileID = fileID
		return putJSON(paths, itob(pathID), fp)
	})
}

// === Tags ===

func (s *CoreStore) CreateTag(tag *domain.Tag) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTags)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		tag.ID = id
		return putJSON(b, itob(id), tag)
	})
}

func (s *CoreStore) GetTag(id uint64) (domain.Tag, error) {
	var tag domain.Tag
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketTags), itob(id), &tag) {
			return domain.ErrTagNotFound
		}
		return nil
	})
	return tag, err
}

func (s *CoreStore) GetTagByName(name string) (domain.Tag, error) {
	var found domain.Tag
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTags).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var tag domain.Tag
			if json.Unmarshal(v, &tag) == nil && tag.Name == name {
				found = tag
				return nil
			}
		}
		return domain.ErrTagNotFound
	})
	return found, err
}

func (s *CoreStore) UpdateTag(tag domain.Tag) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTags)
		if b.Get(itob(tag.ID)) == nil {
			return domain.ErrTagNotFound
		}
		return putJSON(b, itob(tag.ID), tag)
	})
}

// DeleteTag removes the tag and every assignment referencing it.
func (s *CoreStore) DeleteTag(id uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		tags := tx.Bucket(bucketTags)
		if tags.Get(itob(id)) == nil {
			return domain.ErrTagNotFound
		}
		if err := tags.Delete(itob(id)); err != nil {
			return err
		}

		assigns := tx.Bucket(bucketAssignments)
		c := assigns.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if len(k) == 16 && binary.BigEndian.Uint64(k[8:]) == id {
				if err := assigns.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// AssignTag links a tag to a file. Both references are checked inside
// the transaction; re-assigning an existing pair is a no-op.
func (s *CoreStore) AssignTag(fileID, tagID uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketFiles).Get(itob(fileID)) == nil {
			return domain.ErrFileNotFound
		}
		if tx.Bucket(bucketTags).Get(itob(tagID)) == nil {
			return domain.ErrTagNotFound
		}
		return putJSON(tx.Bucket(bucketAssignments), assignKey(fileID, tagID),
			domain.TagAssignment{FileID: fileID, TagID: tagID})
	})
}

func (s *CoreStore) TagsForFile(fileID uint64) ([]domain.Tag, error) {
	var out []domain.Tag
	err := s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketFiles).Get(itob(fileID)) == nil {
			return domain.ErrFileNotFound
		}
		assigns := tx.Bucket(bucketAssignments)
		tags := tx.Bucket(bucketTags)
		c := assigns.Cursor()
		prefix := itob(fileID)
		for k, _ := c.Seek(prefix); k != nil && len(k) == 16 && string(k[:8]) == string(prefix); k, _ = c.Next() {
			var tag domain.Tag
			if getJSON(tags, k[8:], &tag) {
				out = append(out, tag)
			}
		}
		return nil
	})
	return out, err
}

// === Volumes ===

// SaveVolume inserts the volume when its ID is zero, otherwise
// replaces the stored record.
func (s *CoreStore) SaveVolume(v *domain.Volume) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVolumes)
		if v.ID == 0 {
			id, err := b.NextSequence()
			if err != nil {
				return err
			}
			v.ID = id
		}
		return putJSON(b, itob(v.ID), v)
	})
}

func (s *CoreStore) GetVolume(id uint64) (domain.Volume, error) {
	var v domain.Volume
	err := s.db.View(func(tx *bolt.Tx) error {
		if !getJSON(tx.Bucket(bucketVolumes), itob(id), &v) {
			return domain.ErrVolumeNotFound
		}
		return nil
	})
	return v, err
}

func (s *CoreStore) ListVolumes() ([]domain.Volume, error) {
	var out []domain.Volume
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVolumes).ForEach(func(_, v []byte) error {
			var vol domain.Volume
			if err := json.Unmarshal(v, &vol); err != nil {
				return err
			}
			out = append(out, vol)
			return nil
		})
	})
	return out, err
}
