package job

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/domain"
	"github.com/arcafs/arca/internal/store"
)

// recordingRenderer captures render calls and can fail selected paths.
type recordingRenderer struct {
	mu      sync.Mutex
	casIDs  []string
	srcs    []string
	failSrc string
}

func (r *recordingRenderer) Render(ctx context.Context, srcPath, casID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSrc != "" && srcPath == r.failSrc {
		return fmt.Errorf("render %s: simulated failure", srcPath)
	}
	r.srcs = append(r.srcs, srcPath)
	r.casIDs = append(r.casIDs, casID)
	return nil
}

func runThumbnailer(t *testing.T, s *store.CoreStore, loc domain.Location, render Renderer) Summary {
	t.Helper()
	sup := NewSupervisor(1, testLogger())
	defer sup.Close()

	h, err := sup.Submit(Request{
		Key:        command.KeyGenerateThumbsForLocation,
		Scope:      loc.Path,
		LocationID: loc.ID,
		Runner:     NewThumbnailer(s, render, loc.ID, loc.Path, testLogger()),
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	st := waitForState(t, sup, h.JobID, StateCompleted)
	return *st.Summary
}

func TestThumbnailer_RendersEligibleFilesOnly(t *testing.T) {
	s, loc, _ := identifyFixture(t)

	indexPath(t, s, loc, "photo.jpg", []byte("jpeg bytes"))
	indexPath(t, s, loc, "clip.mp4", []byte("video bytes"))
	indexPath(t, s, loc, "notes.txt", []byte("not an image"))
	dir := domain.FilePath{LocationID: loc.ID, MaterializedPath: "album.jpg", IsDir: true}
	if err := s.CreateFilePath(&dir); err != nil {
		t.Fatal(err)
	}

	render := &recordingRenderer{}
	summary := runThumbnailer(t, s, loc, render)

	if summary.ThumbsGenerated != 2 {
		t.Errorf("generated = %d, want 2", summary.ThumbsGenerated)
	}
	if len(render.casIDs) != 2 {
		t.Errorf("render called %d times", len(render.casIDs))
	}
	for _, id := range render.casIDs {
		if len(id) != casIDLen {
			t.Errorf("render received malformed cas id %q", id)
		}
	}
}

func TestThumbnailer_UsesLinkedFileCasID(t *testing.T) {
	s, loc, _ := identifyFixture(t)
	fp := indexPath(t, s, loc, "photo.jpg", []byte("jpeg bytes"))

	file, err := s.CreateFile(&domain.File{CasID: "feedfacefeedface", SizeInBytes: 10})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.LinkFilePath(fp.ID, file.ID); err != nil {
		t.Fatal(err)
	}

	render := &recordingRenderer{}
	runThumbnailer(t, s, loc, render)

	if len(render.casIDs) != 1 || render.casIDs[0] != "feedfacefeedface" {
		t.Errorf("cas ids = %v, want the linked file's id", render.casIDs)
	}
}

func TestThumbnailer_ItemFailureDoesNotAbort(t *testing.T) {
	s, loc, root := identifyFixture(t)
	indexPath(t, s, loc, "ok.jpg", []byte("fine"))
	indexPath(t, s, loc, "bad.jpg", []byte("doomed"))

	render := &recordingRenderer{failSrc: root + "/bad.jpg"}
	summary := runThumbnailer(t, s, loc, render)

	if summary.ThumbsGenerated != 1 {
		t.Errorf("generated = %d, want 1", summary.ThumbsGenerated)
	}
	if len(summary.ItemErrors) != 1 || summary.ItemErrors[0].Path != "bad.jpg" {
		t.Errorf("item errors = %+v", summary.ItemErrors)
	}
}

func TestThumbnailer_MissingRootFailsJob(t *testing.T) {
	s, loc, _ := identifyFixture(t)

	sup := NewSupervisor(1, testLogger())
	defer sup.Close()
	h, err := sup.Submit(Request{
		Key:        command.KeyGenerateThumbsForLocation,
		Scope:      "/tmp/definitely-missing",
		LocationID: loc.ID,
		Runner:     NewThumbnailer(s, &recordingRenderer{}, loc.ID, "/tmp/definitely-missing", testLogger()),
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForState(t, sup, h.JobID, StateFailed)
}
