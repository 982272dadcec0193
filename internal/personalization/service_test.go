package personalization

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/internal/conversation"
	"github.com/chatlings/internal/customizer"
	"github.com/chatlings/internal/ledger"
	"github.com/chatlings/internal/roster"
	"github.com/chatlings/pkg/models"
)

type fixture struct {
	svc    *Service
	convs  *conversation.InMemoryStore
	views  *InMemoryStore
	roster *roster.InMemoryStore
	ledger *ledger.InMemoryLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		convs:  conversation.NewInMemoryStore(),
		views:  NewInMemoryStore(),
		roster: roster.NewInMemoryStore(),
		ledger: ledger.NewInMemoryLedger(),
	}
	f.svc = NewService(f.convs, f.views, f.views, f.roster, f.ledger, customizer.NewWithRand(rand.New(rand.NewSource(1))))

	older := &models.BaseConversation{
		ContentID: "old", ContentTitle: "Old video", GeneratedAt: time.Now().Add(-time.Hour),
		Forest: []*models.CommentNode{models.NewCommentNode("o1", "meh", models.SentimentNegative)},
	}
	a := models.NewCommentNode("n1", "Great stuff", models.SentimentPositive)
	a.Children = append(a.Children, models.NewCommentNode("n2", "agreed", models.SentimentNeutral))
	newer := &models.BaseConversation{
		ContentID: "new", ContentTitle: "New video", GeneratedAt: time.Now(),
		Forest: []*models.CommentNode{a, models.NewCommentNode("n3", "Nice", models.SentimentPositive)},
	}
	require.NoError(t, f.convs.Create(ctx, older))
	require.NoError(t, f.convs.Create(ctx, newer))

	f.roster.Add("u1", models.RosterMember{ID: "r1", Name: "Blip"}, models.RosterMember{ID: "r2", Name: "Zorp"})
	return f
}

func TestGetPersonalizedConversationCreatesAndCredits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pc, err := f.svc.GetPersonalizedConversation(ctx, "u1", "")
	require.NoError(t, err)
	assert.False(t, pc.FromCache)
	assert.Equal(t, 5, pc.TotalRewardDelta)
	assert.Equal(t, models.ArchetypeBalanced, pc.Archetype)
	assert.Equal(t, []string{"r1", "r2"}, pc.AssignedRosterIDs)
	assert.Equal(t, "Great stuff", pc.CustomizedForest[0].Text)

	bal, err := f.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, bal)

	again, err := f.svc.GetPersonalizedConversation(ctx, "u1", "new")
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, pc.ID, again.ID)

	bal, err = f.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, bal)
}

func TestGetPersonalizedConversationUsesSavedAttitude(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SetAttitude(ctx, "u1", models.AttitudeProfile{Enthusiasm: 9, Criticism: 1, Humor: 1})
	require.NoError(t, err)

	pc, err := f.svc.GetPersonalizedConversation(ctx, "u1", "new")
	require.NoError(t, err)
	assert.Equal(t, models.ArchetypeEnthusiastic, pc.Archetype)
	assert.Equal(t, "INCREDIBLE stuff!", pc.CustomizedForest[0].Text)
	assert.Equal(t, "Great stuff", pc.CustomizedForest[0].OriginalText)
}

func TestGetPersonalizedConversationConcurrentFirstViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const workers = 16
	ids := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pc, err := f.svc.GetPersonalizedConversation(ctx, "u1", "old")
			errs[i] = err
			if err == nil {
				ids[i] = pc.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	bal, err := f.ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, -1, bal)

	list, err := f.views.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetPersonalizedConversationErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.GetPersonalizedConversation(ctx, "u1", "missing")
	assert.Equal(t, apperr.CodeContentNotFound, apperr.CodeOf(err))

	_, err = f.svc.GetPersonalizedConversation(ctx, "lonely", "new")
	assert.Equal(t, apperr.CodeNoRoster, apperr.CodeOf(err))

	_, err = f.svc.GetPersonalizedConversation(ctx, "", "new")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	empty := NewService(conversation.NewInMemoryStore(), f.views, f.views, f.roster, f.ledger, customizer.New())
	_, err = empty.GetPersonalizedConversation(ctx, "u1", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

type memCache struct {
	mu    sync.Mutex
	items map[string]*models.PersonalizedConversation
	gets  int
}

func (m *memCache) Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	pc, ok := m.items[userID]
	if !ok || pc.BaseConversationID != baseID {
		return nil, false, nil
	}
	cp := *pc
	return &cp, true, nil
}

func (m *memCache) Set(ctx context.Context, pc *models.PersonalizedConversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pc
	m.items[pc.UserID] = &cp
	return nil
}

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (brokenCache) Set(ctx context.Context, pc *models.PersonalizedConversation) error {
	return errors.New("connection refused")
}

func TestCacheIsReadThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := &memCache{items: map[string]*models.PersonalizedConversation{}}
	f.svc.WithCache(c)

	first, err := f.svc.GetPersonalizedConversation(ctx, "u1", "new")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.svc.GetPersonalizedConversation(ctx, "u1", "new")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, c.gets)
}

func TestCacheFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)
	f.svc.WithCache(brokenCache{})
	pc, err := f.svc.GetPersonalizedConversation(context.Background(), "u1", "new")
	require.NoError(t, err)
	assert.NotZero(t, pc.ID)
}

func TestAttitudeDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.svc.GetAttitude(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, view.IsDefault)
	assert.Equal(t, models.DefaultAttitude(), view.AttitudeProfile)
	assert.Equal(t, models.ArchetypeBalanced, view.Archetype)

	_, err = f.svc.SetAttitude(ctx, "u1", models.AttitudeProfile{Enthusiasm: 11, Criticism: 5, Humor: 5})
	assert.Equal(t, apperr.CodeInvalidAttitude, apperr.CodeOf(err))

	_, err = f.svc.SetAttitude(ctx, "u1", models.AttitudeProfile{Enthusiasm: 2, Criticism: 9, Humor: 3})
	require.NoError(t, err)
	view, err = f.svc.GetAttitude(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, view.IsDefault)
	assert.Equal(t, models.ArchetypeSkeptical, view.Archetype)
}

func TestGetHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.GetPersonalizedConversation(ctx, "u1", "old")
	require.NoError(t, err)
	_, err = f.svc.GetPersonalizedConversation(ctx, "u1", "new")
	require.NoError(t, err)

	h, err := f.svc.GetHistory(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, h.TotalViews)
	assert.Equal(t, 4, h.TotalGlow)
	assert.InDelta(t, 2.0, h.AverageGlow, 1e-9)
	titles := []string{h.Entries[0].ContentTitle, h.Entries[1].ContentTitle}
	assert.ElementsMatch(t, []string{"Old video", "New video"}, titles)

	empty, err := f.svc.GetHistory(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalViews)
	assert.Zero(t, empty.AverageGlow)
	assert.NotNil(t, empty.Entries)
}
