// Package command defines the closed set of command variants exchanged
// between the core and its clients. The schema declared here is the
// single source of truth: the codec, the registry exhaustiveness check
// and the TypeScript bindings generator are all derived from it.
package command

// Key is the unique string discriminator of a command variant. Keys
// are stable across versions; the schema evolves by adding new keys or
// new optional fields, never by changing the meaning of an existing key.
type Key string

const (
	KeyCreateLibrary             Key = "CreateLibrary"
	KeyFileRead                  Key = "FileRead"
	KeyFileDelete                Key = "FileDelete"
	KeyLibDelete                 Key = "LibDelete"
	KeyTagCreate                 Key = "TagCreate"
	KeyTagUpdate                 Key = "TagUpdate"
	KeyTagAssign                 Key = "TagAssign"
	KeyTagDelete                 Key = "TagDelete"
	KeyLocCreate                 Key = "LocCreate"
	KeyLocUpdate                 Key = "LocUpdate"
	KeyLocDelete                 Key = "LocDelete"
	KeySysVolumeUnmount          Key = "SysVolumeUnmount"
	KeyGenerateThumbsForLocation Key = "GenerateThumbsForLocation"
	KeyIdentifyUniqueFiles       Key = "IdentifyUniqueFiles"
)

// Class determines how the dispatcher executes a command.
type Class int

const (
	// ClassSync commands run to completion on the dispatch path.
	ClassSync Class = iota
	// ClassJob commands are handed to the job supervisor and return a
	// job handle immediately.
	ClassJob
)

// Parameter shapes, one per key. Wire names follow the published schema.

type CreateLibraryParams struct {
	Name string `json:"name"`
}

type FileReadParams struct {
	ID uint64 `json:"id"`
}

type FileDeleteParams struct {
	ID uint64 `json:"id"`
}

type LibDeleteParams struct {
	ID uint64 `json:"id"`
}

type TagCreateParams struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagUpdateParams addresses the tag by its current name; the published
// shape carries no id field.
type TagUpdateParams struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type TagAssignParams struct {
	FileID uint64 `json:"file_id"`
	TagID  uint64 `json:"tag_id"`
}

type TagDeleteParams struct {
	ID uint64 `json:"id"`
}

type LocCreateParams struct {
	Path string `json:"path"`
}

// LocUpdateParams: a nil Name leaves the location name unchanged.
type LocUpdateParams struct {
	ID   uint64  `json:"id"`
	Name *string `json:"name"`
}

type LocDeleteParams struct {
	ID uint64 `json:"id"`
}

type SysVolumeUnmountParams struct {
	ID uint64 `json:"id"`
}

type GenerateThumbsForLocationParams struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
}

type IdentifyUniqueFilesParams struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
}

// Command is a single decoded request: a key plus its typed params.
// Params holds a pointer to the params struct matching Key.
type Command struct {
	Key    Key
	Params any
}

// Spec describes one variant of the closed schema.
type Spec struct {
	Key   Key
	Class Class
	// NewParams returns a pointer to a zero value of the variant's
	// params struct, used by the codec as a decode target.
	NewParams func() any
}

// specs is the authoritative variant table, in published order.
var specs = []Spec{
	{KeyCreateLibrary, ClassSync, func() any { return &CreateLibraryParams{} }},
	{KeyFileRead, ClassSync, func() any { return &FileReadParams{} }},
	{KeyFileDelete, ClassSync, func() any { return &FileDeleteParams{} }},
	{KeyLibDelete, ClassSync, func() any { return &LibDeleteParams{} }},
	{KeyTagCreate, ClassSync, func() any { return &TagCreateParams{} }},
	{KeyTagUpdate, ClassSync, func() any { return &TagUpdateParams{} }},
	{KeyTagAssign, ClassSync, func() any { return &TagAssignParams{} }},
	{KeyTagDelete, ClassSync, func() any { return &TagDeleteParams{} }},
	{KeyLocCreate, ClassSync, func() any { return &LocCreateParams{} }},
	{KeyLocUpdate, ClassSync, func() any { return &LocUpdateParams{} }},
	{KeyLocDelete, ClassSync, func() any { return &LocDeleteParams{} }},
	{KeySysVolumeUnmount, ClassSync, func() any { return &SysVolumeUnmountParams{} }},
	{KeyGenerateThumbsForLocation, ClassJob, func() any { return &GenerateThumbsForLocationParams{} }},
	{KeyIdentifyUniqueFiles, ClassJob, func() any { return &IdentifyUniqueFilesParams{} }},
}

var specsByKey = func() map[Key]Spec {
	m := make(map[Key]Spec, len(specs))
	for _, s := range specs {
		m[s.Key] = s
	}
	return m
}()

// Specs returns the closed variant table in published order.
func Specs() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// SpecFor looks up the spec for a key.
func SpecFor(key Key) (Spec, bool) {
	s, ok := specsByKey[key]
	return s, ok
}

// Keys returns every published key in order.
func Keys() []Key {
	out := make([]Key, len(specs))
	for i, s := range specs {
		out[i] = s.Key
	}
	return out
}
