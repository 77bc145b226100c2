package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/neilberkman/thinkchat/internal/core/db"
	"github.com/neilberkman/thinkchat/internal/core/models"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
}

func fixedClock() func() time.Time {
	t := time.UnixMilli(1700000000000)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s := New(backend, WithIDGenerator(sequentialIDs()), WithClock(fixedClock()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func assertHealthy(t *testing.T, s *Store) {
	t.Helper()
	if s.Len() == 0 {
		t.Fatal("collection is empty")
	}
	if _, ok := s.Active(); !ok {
		t.Fatalf("active id %q is not a member", s.ActiveID())
	}
}

func TestLoad_MissingDataCreatesSession(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertHealthy(t, s)

	active, _ := s.Active()
	if active.Title != models.DefaultTitle || len(active.Messages) != 0 {
		t.Errorf("fresh session = %+v", active)
	}
}

func TestLoad_SelectsFirstSession(t *testing.T) {
	backend := NewMemoryBackend()
	data, _ := Encode([]models.ChatSession{
		models.NewSession("first", time.UnixMilli(2)),
		models.NewSession("second", time.UnixMilli(1)),
	})
	backend.Set(DefaultKey, data)

	s := newTestStore(t, backend)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.ActiveID() != "first" {
		t.Errorf("ActiveID() = %q, want first", s.ActiveID())
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestLoad_CorruptDataDegrades(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", "{{{"},
		{"wrong shape", `{"id":"x"}`},
		{"unknown role", `[{"id":"a","title":"t","messages":[{"id":"m","role":"assistant","content":"x","timestamp":1}],"createdAt":1,"updatedAt":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewMemoryBackend()
			backend.Set(DefaultKey, []byte(tt.blob))
			s := newTestStore(t, backend)

			err := s.Load(context.Background())
			var rerr *ReadError
			if !errors.As(err, &rerr) {
				t.Fatalf("Load() error = %v, want *ReadError", err)
			}
			if s.Len() != 0 {
				t.Errorf("Len() = %d after corrupt load, want 0", s.Len())
			}

			s.EnsureSession()
			assertHealthy(t, s)
		})
	}
}

func TestLoad_BackendFailureDegrades(t *testing.T) {
	backend := NewMemoryBackend()
	backend.GetErr = errors.New("disk on fire")
	s := newTestStore(t, backend)

	err := s.Load(context.Background())
	if err == nil || !errors.Is(err, backend.GetErr) {
		t.Fatalf("Load() error = %v, want wrapped backend error", err)
	}
}

func TestLoad_SettlesInterruptedStream(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Set(DefaultKey, []byte(`[{"id":"a","title":"hi","messages":[
		{"id":"m1","role":"user","content":"hi","timestamp":1},
		{"id":"m2","role":"model","content":"partial","timestamp":2,"isStreaming":true}
	],"createdAt":1,"updatedAt":2}]`))

	s := newTestStore(t, backend)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	sess, _ := s.Session("a")
	if sess.Streaming() {
		t.Error("interrupted message still streaming after load")
	}
	if last, _ := sess.Last(); last.Content != "partial" {
		t.Errorf("partial content lost: %q", last.Content)
	}
}

func TestLoad_EmptyArrayHeals(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Set(DefaultKey, []byte(`[]`))
	s := newTestStore(t, backend)

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	assertHealthy(t, s)
}

func TestCreateSession_PrependsAndActivates(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	a := s.CreateSession()
	b := s.CreateSession()

	sessions := s.Sessions()
	if sessions[0].ID != b.ID || sessions[1].ID != a.ID {
		t.Errorf("order = %s,%s; want %s,%s", sessions[0].ID, sessions[1].ID, b.ID, a.ID)
	}
	if s.ActiveID() != b.ID {
		t.Errorf("ActiveID() = %q, want %q", s.ActiveID(), b.ID)
	}
}

func TestDeleteSession_SoleSessionReplaced(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	only := s.CreateSession()

	if !s.DeleteSession(only.ID) {
		t.Fatal("DeleteSession() = false")
	}

	sessions := s.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("Len() = %d, want 1", len(sessions))
	}
	fresh := sessions[0]
	if fresh.ID == only.ID {
		t.Error("deleted session still present")
	}
	if len(fresh.Messages) != 0 || fresh.Title != models.DefaultTitle {
		t.Errorf("replacement is not fresh: %+v", fresh)
	}
	if s.ActiveID() != fresh.ID {
		t.Errorf("ActiveID() = %q, want %q", s.ActiveID(), fresh.ID)
	}
}

func TestDeleteSession_ActiveMovesToFirst(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	a := s.CreateSession()
	b := s.CreateSession()
	c := s.CreateSession() // order: c, b, a

	if err := s.Select(b.ID); err != nil {
		t.Fatal(err)
	}
	s.DeleteSession(b.ID)
	if s.ActiveID() != c.ID {
		t.Errorf("ActiveID() = %q, want %q", s.ActiveID(), c.ID)
	}

	// Deleting a non-active session keeps the selection
	s.DeleteSession(a.ID)
	if s.ActiveID() != c.ID {
		t.Errorf("ActiveID() = %q after deleting inactive, want %q", s.ActiveID(), c.ID)
	}

	if s.DeleteSession("missing") {
		t.Error("DeleteSession(missing) = true")
	}
}

func TestCreateDeleteSequences_NeverEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := newTestStore(t, NewMemoryBackend())
	s.CreateSession()

	for i := 0; i < 500; i++ {
		sessions := s.Sessions()
		switch rng.Intn(3) {
		case 0:
			s.CreateSession()
		case 1:
			s.DeleteSession(sessions[rng.Intn(len(sessions))].ID)
		case 2:
			_ = s.Select(sessions[rng.Intn(len(sessions))].ID)
		}
		assertHealthy(t, s)
	}
}

func TestUpdateSession_TouchesOnlyTarget(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	a := s.CreateSession()
	b := s.CreateSession()

	ok := s.UpdateSession(a.ID, func(sess models.ChatSession) models.ChatSession {
		sess.Title = "renamed"
		sess.ID = "hijacked"
		return sess
	})
	if !ok {
		t.Fatal("UpdateSession() = false")
	}

	gotA, found := s.Session(a.ID)
	if !found || gotA.Title != "renamed" {
		t.Errorf("target not updated: %+v", gotA)
	}
	gotB, _ := s.Session(b.ID)
	if !reflect.DeepEqual(gotB, b) {
		t.Errorf("other session changed: %+v", gotB)
	}

	if s.UpdateSession("missing", func(sess models.ChatSession) models.ChatSession { return sess }) {
		t.Error("UpdateSession(missing) = true")
	}
}

func TestSnapshotsAreStable(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	sess := s.CreateSession()
	before := s.Sessions()

	s.UpdateSession(sess.ID, func(cs models.ChatSession) models.ChatSession {
		return cs.WithMessage(models.NewMessage("m1", models.RoleUser, "hi", time.Now()), time.Now())
	})

	if len(before[0].Messages) != 0 || before[0].Title != models.DefaultTitle {
		t.Errorf("earlier snapshot changed: %+v", before[0])
	}
}

func TestSelect(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	a := s.CreateSession()
	s.CreateSession()

	if err := s.Select(a.ID); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if s.ActiveID() != a.ID {
		t.Errorf("ActiveID() = %q", s.ActiveID())
	}
	if err := s.Select("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Select(missing) error = %v", err)
	}
}

func TestHandle(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	a := s.CreateSession()
	b := s.CreateSession()

	h := s.Handle(a.ID)
	h.Update(func(cs models.ChatSession) models.ChatSession {
		cs.Title = "via handle"
		return cs
	})

	got, _ := h.Get()
	if got.Title != "via handle" {
		t.Errorf("handle update lost: %q", got.Title)
	}
	other, _ := s.Session(b.ID)
	if other.Title != models.DefaultTitle {
		t.Errorf("handle touched another session: %q", other.Title)
	}
}

func TestPersistAndReload(t *testing.T) {
	backend := NewMemoryBackend()
	s := New(backend, WithIDGenerator(sequentialIDs()), WithClock(fixedClock()))
	sess := s.CreateSession()
	s.UpdateSession(sess.ID, func(cs models.ChatSession) models.ChatSession {
		now := time.UnixMilli(1700000005000)
		return cs.WithMessage(models.NewMessage("m1", models.RoleUser, "hello", now), now).
			WithMessage(models.NewMessage("m2", models.RoleModel, "hi there", now), now)
	})
	want := s.Sessions()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reloaded := newTestStore(t, backend)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := reloaded.Sessions(); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded = %+v\nwant %+v", got, want)
	}
}

func TestPersist_SQLiteBackend(t *testing.T) {
	database, err := db.New(t.TempDir() + "/history.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = database.Close() })

	s := New(database, WithIDGenerator(sequentialIDs()), WithClock(fixedClock()))
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := s.Sessions()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reloaded := newTestStore(t, database)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Sessions(); !reflect.DeepEqual(got, want) {
		t.Errorf("reloaded = %+v, want %+v", got, want)
	}
}

func TestPersist_WriteFailureKeepsState(t *testing.T) {
	backend := NewMemoryBackend()
	backend.PutErr = errors.New("quota exceeded")
	s := newTestStore(t, backend)
	sess := s.CreateSession()

	err := s.Persist(context.Background())
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("Persist() error = %v, want *WriteError", err)
	}
	if _, ok := s.Session(sess.ID); !ok {
		t.Error("in-memory session lost after write failure")
	}
}

func TestPersist_EmptyCollectionNotWritten(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Set(DefaultKey, []byte("garbage"))
	s := newTestStore(t, backend)
	_ = s.Load(context.Background()) // degrades to empty

	if err := s.Persist(context.Background()); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if backend.Writes() != 0 {
		t.Errorf("empty collection was written %d times", backend.Writes())
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	events, cancel := s.Subscribe()
	defer cancel()

	sess := s.CreateSession()
	select {
	case ev := <-events:
		if ev.Kind != EventCreated || ev.SessionID != sess.ID {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	if _, open := <-events; open {
		t.Error("channel still open after cancel")
	}
	cancel() // idempotent
}

func TestImport(t *testing.T) {
	s := newTestStore(t, NewMemoryBackend())
	existing := s.CreateSession()

	pending := models.NewMessage("m2", models.RoleModel, "half", time.UnixMilli(3))
	pending.IsStreaming = true
	imported := models.NewSession("imported", time.UnixMilli(1)).
		WithMessage(models.NewMessage("m1", models.RoleUser, "old", time.UnixMilli(2)), time.UnixMilli(2)).
		WithMessage(pending, time.UnixMilli(3))

	added := s.Import([]models.ChatSession{existing, imported})
	if added != 1 {
		t.Errorf("Import() = %d, want 1", added)
	}
	sessions := s.Sessions()
	if len(sessions) != 2 || sessions[1].ID != "imported" {
		t.Fatalf("sessions after import = %+v", sessions)
	}
	if sessions[1].Streaming() {
		t.Error("imported streaming message not settled")
	}
	if s.ActiveID() != existing.ID {
		t.Errorf("import changed selection to %q", s.ActiveID())
	}
}
