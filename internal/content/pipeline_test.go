package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/recruit-engine/internal/db"
	"github.com/jonathan/recruit-engine/internal/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	themes map[uuid.UUID]*db.ContentTheme
	items  map[uuid.UUID]*db.ContentItem
	claims map[uuid.UUID]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		themes: make(map[uuid.UUID]*db.ContentTheme),
		items:  make(map[uuid.UUID]*db.ContentItem),
		claims: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memStore) CreateContentTheme(_ context.Context, userID uuid.UUID, name, description, tone string) (*db.ContentTheme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th := &db.ContentTheme{ID: uuid.New(), UserID: userID, Name: name, Description: description, Tone: tone}
	s.themes[th.ID] = th
	c := *th
	return &c, nil
}

func (s *memStore) GetContentTheme(_ context.Context, userID, themeID uuid.UUID) (*db.ContentTheme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.themes[themeID]
	if !ok || th.UserID != userID {
		return nil, nil
	}
	c := *th
	return &c, nil
}

func (s *memStore) CreateContentItem(_ context.Context, userID uuid.UUID, themeID *uuid.UUID, content string, maxRegen int) (*db.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &db.ContentItem{
		ID: uuid.New(), UserID: userID, ThemeID: themeID, Content: content,
		Status: db.ContentDraft, MaxRegenerations: maxRegen,
	}
	s.items[it.ID] = it
	c := *it
	return &c, nil
}

func (s *memStore) GetContentItem(_ context.Context, userID, id uuid.UUID) (*db.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != userID {
		return nil, nil
	}
	c := *it
	return &c, nil
}

func (s *memStore) ReplaceRegeneratedContent(_ context.Context, userID, id uuid.UUID, seen int, content string) (*db.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != userID || it.Status == db.ContentPublished ||
		it.RegenerationCount != seen || it.RegenerationCount >= it.MaxRegenerations {
		return nil, nil
	}
	if _, held := s.claims[id]; held {
		return nil, nil
	}
	it.Content = content
	it.RegenerationCount++
	c := *it
	return &c, nil
}

func (s *memStore) MarkContentReviewing(_ context.Context, userID, id uuid.UUID) (*db.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != userID || it.Status != db.ContentDraft {
		return nil, nil
	}
	it.Status = db.ContentReviewing
	c := *it
	return &c, nil
}

func (s *memStore) ClaimContentForPublish(_ context.Context, userID, id, claim uuid.UUID, content string) (*db.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != userID || it.Status == db.ContentPublished || it.Content != content {
		return nil, nil
	}
	if _, held := s.claims[id]; held {
		return nil, nil
	}
	s.claims[id] = claim
	c := *it
	return &c, nil
}

func (s *memStore) ReleaseContentClaim(_ context.Context, _, id, claim uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[id] == claim {
		delete(s.claims, id)
	}
	return nil
}

func (s *memStore) MarkContentPublished(_ context.Context, userID, id, claim uuid.UUID, final, postID string, at time.Time) (*db.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != userID || it.Status == db.ContentPublished {
		return nil, nil
	}
	if held, ok := s.claims[id]; !ok || held != claim {
		return nil, nil
	}
	delete(s.claims, id)
	it.Content = final
	it.Status = db.ContentPublished
	it.ExternalPostID = &postID
	it.PublishedAt = &at
	c := *it
	return &c, nil
}

func (s *memStore) claimed(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, held := s.claims[id]
	return held
}

type countingGenerator struct {
	mu    sync.Mutex
	calls []GenerateRequest
	err   error
}

func (g *countingGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	return "draft " + string(rune('A'+len(g.calls)-1)), nil
}

func (g *countingGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeCredentials struct {
	cred *integration.Credential
}

func (f *fakeCredentials) Credential(context.Context, uuid.UUID) (*integration.Credential, error) {
	if f.cred == nil {
		return nil, integration.ErrNotConnected
	}
	return f.cred, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []string
	token string
	acct  string
	err   error
	delay time.Duration
}

func (f *fakePublisher) PublishPost(_ context.Context, accessToken, accountID, text string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.token, f.acct = accessToken, accountID
	err, delay := f.err, f.delay
	f.mu.Unlock()
	time.Sleep(delay)
	if err != nil {
		return "", err
	}
	return "urn:li:share:42", nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var (
	testUser = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	testNow  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	store     *memStore
	gen       *countingGenerator
	creds     *fakeCredentials
	publisher *fakePublisher
	pipeline  *Pipeline
	theme     *db.ContentTheme
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newMemStore(),
		gen:       &countingGenerator{},
		creds:     &fakeCredentials{cred: &integration.Credential{AccessToken: "tok", AccountID: "acct-1", ExpiresAt: testNow.Add(time.Hour)}},
		publisher: &fakePublisher{},
	}
	f.pipeline = NewPipeline(f.store, Options{
		Generator:   f.gen,
		Credentials: f.creds,
		Publisher:   f.publisher,
	})
	f.pipeline.now = func() time.Time { return testNow }

	theme, err := f.pipeline.CreateTheme(context.Background(), testUser, &ThemeInput{Name: "Engineering culture", Tone: "warm"})
	require.NoError(t, err)
	f.theme = theme
	return f
}

func (f *fixture) draft(t *testing.T) *db.ContentItem {
	t.Helper()
	item, err := f.pipeline.Generate(context.Background(), testUser, f.theme.ID, "")
	require.NoError(t, err)
	return item
}

func TestCreateTheme_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.CreateTheme(context.Background(), testUser, &ThemeInput{Name: ""})
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
}

func TestGenerate(t *testing.T) {
	f := newFixture(t)
	item, err := f.pipeline.Generate(context.Background(), testUser, f.theme.ID, "<p>We ship <b>weekly</b></p><script>x()</script>")
	require.NoError(t, err)

	assert.Equal(t, db.ContentDraft, item.Status)
	assert.Equal(t, "draft A", item.Content)
	assert.Equal(t, 0, item.RegenerationCount)
	assert.Equal(t, DefaultMaxRegenerations, item.MaxRegenerations)
	require.NotNil(t, item.ThemeID)
	assert.Equal(t, f.theme.ID, *item.ThemeID)

	require.Len(t, f.gen.calls, 1)
	assert.Equal(t, "We ship weekly", f.gen.calls[0].Seed)
	assert.Equal(t, "Engineering culture", f.gen.calls[0].Theme.Name)
	assert.Empty(t, f.gen.calls[0].Previous)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("unknown theme", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Generate(context.Background(), testUser, uuid.New(), "")
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "theme", nf.Resource)
	})

	t.Run("another user's theme", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Generate(context.Background(), uuid.New(), f.theme.ID, "")
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
	})

	t.Run("generator failure stores nothing", func(t *testing.T) {
		f := newFixture(t)
		f.gen.err = errors.New("quota exceeded")
		_, err := f.pipeline.Generate(context.Background(), testUser, f.theme.ID, "")
		var genErr *GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Empty(t, f.store.items)
	})

	t.Run("no generator", func(t *testing.T) {
		p := NewPipeline(newMemStore(), Options{})
		_, err := p.Generate(context.Background(), testUser, uuid.New(), "")
		assert.ErrorIs(t, err, ErrGenerationDisabled)
	})
}

func TestRegenerate_Cap(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)

	for i := 1; i <= DefaultMaxRegenerations; i++ {
		updated, err := f.pipeline.Regenerate(context.Background(), testUser, item.ID)
		require.NoError(t, err, "regeneration %d", i)
		assert.Equal(t, i, updated.RegenerationCount)
	}

	before, err := f.pipeline.Get(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	calls := f.gen.count()

	_, err = f.pipeline.Regenerate(context.Background(), testUser, item.ID)
	var limitErr *RegenerationLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, DefaultMaxRegenerations, limitErr.Count)
	assert.Equal(t, DefaultMaxRegenerations, limitErr.Max)

	after, err := f.pipeline.Get(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, calls, f.gen.count(), "generator must not be called past the cap")
}

func TestRegenerate_PassesPreviousDraft(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)

	updated, err := f.pipeline.Regenerate(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft B", updated.Content)

	require.Len(t, f.gen.calls, 2)
	assert.Equal(t, "draft A", f.gen.calls[1].Previous)
	require.NotNil(t, f.gen.calls[1].Theme)
	assert.Equal(t, f.theme.ID, f.gen.calls[1].Theme.ID)
}

func TestRegenerate_Concurrent(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Regenerate(context.Background(), testUser, item.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var limitErr *RegenerationLimitError
		if !errors.As(err, &limitErr) {
			assert.ErrorIs(t, err, ErrStaleContent)
		}
	}
	assert.LessOrEqual(t, succeeded, DefaultMaxRegenerations)

	got, err := f.pipeline.Get(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	assert.Equal(t, succeeded, got.RegenerationCount)
}

func TestRegenerate_Published(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)
	_, err := f.pipeline.Publish(context.Background(), testUser, item.ID, PublishRequest{FinalContent: item.Content})
	require.NoError(t, err)

	_, err = f.pipeline.Regenerate(context.Background(), testUser, item.ID)
	assert.ErrorIs(t, err, ErrAlreadyPublished)
}

func TestMarkReviewing(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)

	reviewing, err := f.pipeline.MarkReviewing(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ContentReviewing, reviewing.Status)

	again, err := f.pipeline.MarkReviewing(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ContentReviewing, again.Status)

	_, err = f.pipeline.MarkReviewing(context.Background(), testUser, uuid.New())
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestPublish(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)

	edited := item.Content + "\n\nApply today."
	res, err := f.pipeline.Publish(context.Background(), testUser, item.ID, PublishRequest{
		FinalContent: edited,
		BaseVersion:  Version(item.Content),
	})
	require.NoError(t, err)

	assert.Equal(t, "urn:li:share:42", res.ExternalPostID)
	assert.Equal(t, db.ContentPublished, res.Item.Status)
	assert.Equal(t, edited, res.Item.Content)
	require.NotNil(t, res.Item.PublishedAt)
	assert.Equal(t, testNow, *res.Item.PublishedAt)

	require.Len(t, f.publisher.calls, 1)
	assert.Equal(t, edited, f.publisher.calls[0])
	assert.Equal(t, "tok", f.publisher.token)
	assert.Equal(t, "acct-1", f.publisher.acct)

	_, err = f.pipeline.Publish(context.Background(), testUser, item.ID, PublishRequest{FinalContent: edited})
	assert.ErrorIs(t, err, ErrAlreadyPublished)
	assert.Len(t, f.publisher.calls, 1)
}

func TestPublish_Gating(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture, item *db.ContentItem) PublishRequest
		check   func(t *testing.T, err error)
		wantErr error
	}{
		{
			name: "not connected",
			setup: func(f *fixture, item *db.ContentItem) PublishRequest {
				f.creds.cred = nil
				return PublishRequest{FinalContent: item.Content}
			},
			wantErr: ErrNotConnected,
		},
		{
			name: "stale base version",
			setup: func(f *fixture, item *db.ContentItem) PublishRequest {
				return PublishRequest{FinalContent: "edited", BaseVersion: Version("an older draft")}
			},
			wantErr: ErrStaleContent,
		},
		{
			name: "unedited text that differs from stored",
			setup: func(f *fixture, item *db.ContentItem) PublishRequest {
				return PublishRequest{FinalContent: "something else"}
			},
			wantErr: ErrStaleContent,
		},
		{
			name: "regenerated after read",
			setup: func(f *fixture, item *db.ContentItem) PublishRequest {
				_, err := f.pipeline.Regenerate(context.Background(), testUser, item.ID)
				if err != nil {
					panic(err)
				}
				return PublishRequest{FinalContent: item.Content, BaseVersion: Version(item.Content)}
			},
			wantErr: ErrStaleContent,
		},
		{
			name: "empty content",
			setup: func(f *fixture, item *db.ContentItem) PublishRequest {
				return PublishRequest{FinalContent: "   "}
			},
			check: func(t *testing.T, err error) {
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "final_content", vErr.Field)
			},
		},
		{
			name: "content too long",
			setup: func(f *fixture, item *db.ContentItem) PublishRequest {
				return PublishRequest{FinalContent: strings.Repeat("x", MaxPostLength+1)}
			},
			check: func(t *testing.T, err error) {
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			item := f.draft(t)
			req := tt.setup(f, item)
			before, err := f.pipeline.Get(context.Background(), testUser, item.ID)
			require.NoError(t, err)

			_, err = f.pipeline.Publish(context.Background(), testUser, item.ID, req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, err)
			}

			assert.Empty(t, f.publisher.calls, "nothing may reach LinkedIn")
			after, err := f.pipeline.Get(context.Background(), testUser, item.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestPublish_UpstreamFailureLeavesPostUnchanged(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)
	f.publisher.err = errors.New("linkedin 500")

	_, err := f.pipeline.Publish(context.Background(), testUser, item.ID, PublishRequest{FinalContent: item.Content})
	var pubErr *PublishFailedError
	require.True(t, errors.As(err, &pubErr))
	assert.Equal(t, item.ID, pubErr.ID)
	assert.Len(t, f.publisher.calls, 1, "publish is not retried")

	got, err := f.pipeline.Get(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ContentDraft, got.Status)
	assert.Nil(t, got.ExternalPostID)
	assert.False(t, f.store.claimed(item.ID), "failed publish releases its claim")

	f.publisher.err = nil
	res, err := f.pipeline.Publish(context.Background(), testUser, item.ID, PublishRequest{FinalContent: item.Content})
	require.NoError(t, err)
	assert.Equal(t, db.ContentPublished, res.Item.Status)
}

func TestPublish_ConcurrentSendsOnePost(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)
	f.publisher.delay = 50 * time.Millisecond

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Publish(context.Background(), testUser, item.ID, PublishRequest{FinalContent: item.Content})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, ErrPublishInProgress) {
			assert.ErrorIs(t, err, ErrAlreadyPublished)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.publisher.count(), "only one publish may reach LinkedIn")

	got, err := f.pipeline.Get(context.Background(), testUser, item.ID)
	require.NoError(t, err)
	assert.Equal(t, db.ContentPublished, got.Status)
	assert.False(t, f.store.claimed(item.ID))
}

func TestRegenerate_BlockedWhilePublishing(t *testing.T) {
	f := newFixture(t)
	item := f.draft(t)

	claim := uuid.New()
	claimed, err := f.store.ClaimContentForPublish(context.Background(), testUser, item.ID, claim, item.Content)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	_, err = f.pipeline.Regenerate(context.Background(), testUser, item.ID)
	assert.ErrorIs(t, err, ErrStaleContent)

	_, err = f.pipeline.Publish(context.Background(), testUser, item.ID, PublishRequest{FinalContent: item.Content})
	assert.ErrorIs(t, err, ErrPublishInProgress)
	assert.Empty(t, f.publisher.calls)
}

func TestPublish_NoCredentialSource(t *testing.T) {
	store := newMemStore()
	item, err := store.CreateContentItem(context.Background(), testUser, nil, "hello", 3)
	require.NoError(t, err)

	pub := &fakePublisher{}
	p := NewPipeline(store, Options{Publisher: pub})
	_, err = p.Publish(context.Background(), testUser, item.ID, PublishRequest{FinalContent: "hello"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, pub.calls)
}
