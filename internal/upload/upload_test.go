package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ragdocs/docqa/internal/apperr"
	"github.com/ragdocs/docqa/internal/store"
)

type fakeStore struct {
	byHash  map[string]store.Document
	created []store.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: map[string]store.Document{}}
}

func (f *fakeStore) GetDocumentByHash(_ context.Context, hash string) (store.Document, error) {
	d, ok := f.byHash[hash]
	if !ok {
		return store.Document{}, apperr.NotFound("not found")
	}
	return d, nil
}

func (f *fakeStore) CreateDocument(_ context.Context, doc store.Document) error {
	f.byHash[doc.ContentHash] = doc
	f.created = append(f.created, doc)
	return nil
}

type fakeScheduler struct {
	enqueued []string
}

func (f *fakeScheduler) Enqueue(documentID string) { f.enqueued = append(f.enqueued, documentID) }

func newCoordinator(t *testing.T, st documentStore, sched ingestionScheduler) *Coordinator {
	t.Helper()
	return New(st, sched, Config{
		UploadRoot:        t.TempDir(),
		MaxBytes:          1024,
		AllowedExtensions: map[string]bool{"txt": true, "pdf": true},
	})
}

func TestAcceptRejectsUnsupportedType(t *testing.T) {
	c := newCoordinator(t, newFakeStore(), &fakeScheduler{})
	_, err := c.Accept(context.Background(), "a.docx", []byte("hi"))
	if !apperr.Of(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAcceptRejectsOversizeFile(t *testing.T) {
	c := newCoordinator(t, newFakeStore(), &fakeScheduler{})
	_, err := c.Accept(context.Background(), "a.txt", make([]byte, 2000))
	if !apperr.Of(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAcceptWritesFileAndEnqueues(t *testing.T) {
	st := newFakeStore()
	sched := &fakeScheduler{}
	c := newCoordinator(t, st, sched)

	res, err := c.Accept(context.Background(), "a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if res.Duplicate {
		t.Error("expected a fresh document, not a duplicate")
	}
	if len(st.created) != 1 {
		t.Fatalf("expected 1 document created, got %d", len(st.created))
	}
	if len(sched.enqueued) != 1 || sched.enqueued[0] != res.DocumentID {
		t.Fatalf("expected document to be enqueued, got %v", sched.enqueued)
	}

	data, err := os.ReadFile(st.created[0].StoragePath)
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("stored content = %q, want %q", data, "hello")
	}
}

func TestAcceptDeduplicatesIdenticalBytes(t *testing.T) {
	st := newFakeStore()
	sched := &fakeScheduler{}
	c := newCoordinator(t, st, sched)

	first, err := c.Accept(context.Background(), "a.txt", []byte("same bytes"))
	if err != nil {
		t.Fatalf("first Accept: %v", err)
	}
	second, err := c.Accept(context.Background(), "b.txt", []byte("same bytes"))
	if err != nil {
		t.Fatalf("second Accept: %v", err)
	}
	if !second.Duplicate || second.DocumentID != first.DocumentID {
		t.Errorf("expected second upload to be a duplicate of the first: %+v", second)
	}
	if len(sched.enqueued) != 1 {
		t.Errorf("expected only 1 ingestion run, got %d", len(sched.enqueued))
	}
	if len(st.created) != 1 {
		t.Errorf("expected only 1 document created, got %d", len(st.created))
	}
}

func TestAcceptHashDerivedPathIsDeterministic(t *testing.T) {
	st := newFakeStore()
	c := newCoordinator(t, st, &fakeScheduler{})
	res, err := c.Accept(context.Background(), "report.pdf", []byte("content"))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	doc := st.byHash[st.created[0].ContentHash]
	if filepath.Ext(doc.StoragePath) != ".pdf" {
		t.Errorf("expected .pdf extension in storage path, got %s", doc.StoragePath)
	}
	want := filepath.Join(c.uploadRoot, doc.ContentHash[:2], doc.ContentHash+".pdf")
	if doc.StoragePath != want {
		t.Errorf("storage path = %s, want %s", doc.StoragePath, want)
	}
	_ = res
}
