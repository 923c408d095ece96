package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"thirdcoast.systems/reverb/internal/catalog"
	"thirdcoast.systems/reverb/internal/db"
	"thirdcoast.systems/reverb/internal/scrape"
	"thirdcoast.systems/reverb/internal/vector"
)

type fakePersonaStore struct {
	personas map[uuid.UUID]*db.Persona
	updates  int
}

func newFakePersonaStore(personas ...*db.Persona) *fakePersonaStore {
	s := &fakePersonaStore{personas: map[uuid.UUID]*db.Persona{}}
	for _, p := range personas {
		s.personas[p.ID] = p
	}
	return s
}

func (s *fakePersonaStore) GetPersona(ctx context.Context, id uuid.UUID) (*db.Persona, error) {
	p, ok := s.personas[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (s *fakePersonaStore) UpdatePersonaDiscovery(ctx context.Context, id uuid.UUID, token *string, status db.DiscoveryStatus, newVideos int) error {
	p, ok := s.personas[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.ContinuationToken = token
	p.DiscoveryStatus = status
	p.VideoCount += newVideos
	s.updates++
	return nil
}

type fakeVideoStore struct {
	byID       map[uuid.UUID]*db.Video
	byExternal map[string]*db.Video
}

func newFakeVideoStore(videos ...*db.Video) *fakeVideoStore {
	s := &fakeVideoStore{byID: map[uuid.UUID]*db.Video{}, byExternal: map[string]*db.Video{}}
	for _, v := range videos {
		s.byID[v.ID] = v
		s.byExternal[v.ExternalVideoID] = v
	}
	return s
}

func (s *fakeVideoStore) InsertVideoIfNew(ctx context.Context, params db.InsertVideoParams) (*db.Video, bool, error) {
	if existing, ok := s.byExternal[params.ExternalVideoID]; ok {
		return existing, false, nil
	}
	v := &db.Video{
		ID:              uuid.New(),
		PersonaID:       params.PersonaID,
		ExternalVideoID: params.ExternalVideoID,
		Title:           params.Title,
		PublishedAt:     params.PublishedAt,
		CaptionsStatus:  db.CaptionsStatusPending,
	}
	s.byID[v.ID] = v
	s.byExternal[v.ExternalVideoID] = v
	return v, true, nil
}

func (s *fakeVideoStore) GetVideo(ctx context.Context, id uuid.UUID) (*db.Video, error) {
	v, ok := s.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return v, nil
}

func (s *fakeVideoStore) SetVideoRun(ctx context.Context, id uuid.UUID, runID string) error {
	v, ok := s.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	v.ExternalRunID = &runID
	v.CaptionsStatus = db.CaptionsStatusProcessing
	return nil
}

func (s *fakeVideoStore) SetVideoCaptionsStatus(ctx context.Context, id uuid.UUID, status db.CaptionsStatus, errMsg *string) error {
	v, ok := s.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	v.CaptionsStatus = status
	v.CaptionsError = errMsg
	return nil
}

// fakeCaptionStore is mutex-guarded because the embedding stage marks
// chunks from concurrent goroutines.
type fakeCaptionStore struct {
	mu     sync.Mutex
	chunks []db.CaptionChunk
}

func (s *fakeCaptionStore) CountCaptionChunks(ctx context.Context, videoID uuid.UUID) (int, error) {
	n := 0
	for _, c := range s.chunks {
		if c.VideoID == videoID {
			n++
		}
	}
	return n, nil
}

func (s *fakeCaptionStore) DeleteCaptionChunks(ctx context.Context, videoID uuid.UUID) error {
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.VideoID != videoID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

func (s *fakeCaptionStore) InsertCaptionChunks(ctx context.Context, chunks []db.CaptionChunk) error {
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *fakeCaptionStore) matches(c db.CaptionChunk, personaID uuid.UUID, videoID *uuid.UUID) bool {
	if c.PersonaID != personaID {
		return false
	}
	return videoID == nil || c.VideoID == *videoID
}

func (s *fakeCaptionStore) ListUnembeddedChunks(ctx context.Context, personaID uuid.UUID, videoID *uuid.UUID, limit int) ([]db.CaptionChunk, error) {
	var out []db.CaptionChunk
	for _, c := range s.chunks {
		if !c.Embedded && s.matches(c, personaID, videoID) {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeCaptionStore) CountUnembeddedChunks(ctx context.Context, personaID uuid.UUID, videoID *uuid.UUID) (int, error) {
	n := 0
	for _, c := range s.chunks {
		if !c.Embedded && s.matches(c, personaID, videoID) {
			n++
		}
	}
	return n, nil
}

func (s *fakeCaptionStore) MarkChunkEmbedded(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.chunks {
		if s.chunks[i].ID == id {
			s.chunks[i].Embedded = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeEnqueuer struct {
	jobs     []db.EnqueueJobParams
	keys     map[string]uuid.UUID
	failNext error
}

func newFakeEnqueuer() *fakeEnqueuer {
	return &fakeEnqueuer{keys: map[string]uuid.UUID{}}
}

func (s *fakeEnqueuer) EnqueueJob(ctx context.Context, params db.EnqueueJobParams) (uuid.UUID, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return uuid.Nil, err
	}
	if _, ok := s.keys[params.IdempotencyKey]; ok {
		return uuid.Nil, db.ErrDuplicateIdempotencyKey
	}
	id := uuid.New()
	s.keys[params.IdempotencyKey] = id
	s.jobs = append(s.jobs, params)
	return id, nil
}

func (s *fakeEnqueuer) byType(jobType db.JobType) []db.EnqueueJobParams {
	var out []db.EnqueueJobParams
	for _, j := range s.jobs {
		if j.Type == jobType {
			out = append(out, j)
		}
	}
	return out
}

// fakeCatalog serves canned pages keyed by cursor; the empty string is the
// first page.
type fakeCatalog struct {
	pages map[string]*catalog.Page
	err   error
	calls int
}

func (f *fakeCatalog) ListVideos(ctx context.Context, channelID string, cursor *string) (*catalog.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	key := ""
	if cursor != nil {
		key = *cursor
	}
	page, ok := f.pages[key]
	if !ok {
		return nil, fmt.Errorf("no page at cursor %q", key)
	}
	return page, nil
}

type fakeScraper struct {
	runID    string
	startErr error
	fetchErr error
	results  map[string]*scrape.RunResult
	started  []string
}

func (f *fakeScraper) StartRun(ctx context.Context, externalVideoID string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, externalVideoID)
	return f.runID, nil
}

func (f *fakeScraper) FetchResults(ctx context.Context, runID string) (*scrape.RunResult, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	res, ok := f.results[runID]
	if !ok {
		return nil, fmt.Errorf("unknown run %q", runID)
	}
	return res, nil
}

type fakeUpserter struct {
	mu      sync.Mutex
	upserts map[string][]vector.Vector
	err     error
}

func newFakeUpserter() *fakeUpserter {
	return &fakeUpserter{upserts: map[string][]vector.Vector{}}
}

func (f *fakeUpserter) Upsert(ctx context.Context, namespace string, vectors []vector.Vector) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[namespace] = append(f.upserts[namespace], vectors...)
	return nil
}
