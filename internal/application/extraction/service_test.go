package extraction

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/config"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/mention"
	"github.com/turtacn/DataMention-Intelligence/internal/testutil"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

const testDoc = "We analysed the ADNI cohort in detail.|ADNI and NHANES were merged.|No mention here."

func newTestExtractor(t *testing.T) *mention.Extractor {
	t.Helper()
	seg := mention.SegmenterFunc(func(text string) []string { return strings.Split(text, "|") })
	e, err := mention.NewExtractor(mention.NewLexicon([]string{"ADNI", "NHANES"}, nil), seg)
	require.NoError(t, err)
	return e
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetOrLoad(ctx context.Context, docKey string, loader redis.SnippetLoader) ([]string, bool, error) {
	args := m.Called(ctx, docKey)
	if args.Bool(1) {
		return args.Get(0).([]string), true, args.Error(2)
	}
	snippets, err := loader(ctx)
	return snippets, false, err
}

func (m *mockCache) Invalidate(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestExtract(t *testing.T) {
	svc := NewService(newTestExtractor(t), nil)

	res, err := svc.Extract(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADNI", "NHANES"}, res.Candidates)
	assert.Equal(t, []string{
		"ADNI and NHANES were merged",
		"We analysed the ADNI cohort in detail",
	}, res.Snippets)
	assert.Equal(t, mention.DocumentKey(testDoc), res.DocumentKey)
	assert.False(t, res.Cached)
}

func TestExtract_EmptyText(t *testing.T) {
	svc := NewService(newTestExtractor(t), nil)
	_, err := svc.Extract(context.Background(), "  ")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestExtract_NoMentionIsNotAnError(t *testing.T) {
	svc := NewService(newTestExtractor(t), nil)
	res, err := svc.Extract(context.Background(), "Nothing relevant at all.")
	require.NoError(t, err)
	assert.Empty(t, res.Snippets)
}

func TestSnippets_WithoutCache(t *testing.T) {
	svc := NewService(newTestExtractor(t), nil)
	snippets, err := svc.Snippets(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Len(t, snippets, 2)
}

func TestSnippets_CacheHit(t *testing.T) {
	ex := newTestExtractor(t)
	cache := &mockCache{}
	cache.On("GetOrLoad", mock.Anything, ex.CacheKey(testDoc)).Return([]string{"cached snippet"}, true, nil)

	svc := NewService(ex, nil, WithCache(cache))
	snippets, err := svc.Snippets(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Equal(t, []string{"cached snippet"}, snippets)
	cache.AssertExpectations(t)
}

func TestSnippets_CacheMissRunsPipeline(t *testing.T) {
	ex := newTestExtractor(t)
	cache := &mockCache{}
	cache.On("GetOrLoad", mock.Anything, ex.CacheKey(testDoc)).Return(nil, false, nil)

	svc := NewService(ex, nil, WithCache(cache))
	snippets, err := svc.Snippets(context.Background(), testDoc)
	require.NoError(t, err)
	assert.Len(t, snippets, 2)
}

func TestReloadLexicon_InvalidatesCache(t *testing.T) {
	cache := &mockCache{}
	cache.On("Invalidate", mock.Anything).Return(int64(7), nil)
	log := testutil.NewMockLogger()
	ex := newTestExtractor(t)

	svc := NewService(ex, log, WithCache(cache))
	require.NoError(t, svc.ReloadLexicon(context.Background(), mention.NewLexicon([]string{"UKB"}, nil)))
	assert.Equal(t, []string{"UKB"}, ex.Lexicon().Entries())
	assert.True(t, log.HasMessage("info", "snippet cache invalidated"))
}

func TestReloadLexicon_InvalidationFailureIsTolerated(t *testing.T) {
	cache := &mockCache{}
	cache.On("Invalidate", mock.Anything).Return(int64(0), stderrors.New("redis down"))
	log := testutil.NewMockLogger()

	svc := NewService(newTestExtractor(t), log, WithCache(cache))
	require.NoError(t, svc.ReloadLexicon(context.Background(), mention.NewLexicon([]string{"UKB"}, nil)))
	assert.True(t, log.HasMessage("warn", "snippet cache invalidation failed"))
}

func TestReloadLexicon_RejectsEmpty(t *testing.T) {
	svc := NewService(newTestExtractor(t), nil)
	err := svc.ReloadLexicon(context.Background(), mention.NewLexicon(nil, nil))
	assert.True(t, errors.IsCode(err, errors.ErrCodeLexiconEmpty))
}

func TestSnippets_SharedCacheSeparatesLexicons(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	cache := redis.NewSnippetCache(client, logging.NewNopLogger())

	seg := mention.SegmenterFunc(func(text string) []string { return strings.Split(text, "|") })
	newSvc := func(entries ...string) Service {
		e, err := mention.NewExtractor(mention.NewLexicon(entries, nil), seg)
		require.NoError(t, err)
		return NewService(e, nil, WithCache(cache))
	}
	doc := "We analysed the ADNI cohort|The NHANES survey was merged"

	adni, err := newSvc("ADNI").Snippets(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"We analysed the ADNI cohort"}, adni)

	nhanes, err := newSvc("NHANES").Snippets(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"The NHANES survey was merged"}, nhanes)
}

func TestSnippets_ReloadedLexiconMissesOldEntries(t *testing.T) {
	ex := newTestExtractor(t)
	before := ex.CacheKey(testDoc)
	require.NoError(t, ex.ReplaceLexicon(mention.NewLexicon([]string{"ADNI"}, nil)))
	assert.NotEqual(t, before, ex.CacheKey(testDoc))
}
