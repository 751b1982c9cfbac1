package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/curtas/internal/model"
)

type fakeEpisodeStore struct {
	episodes     []*model.Episode
	lastExcluded []int
	lastLimit    int
}

func (f *fakeEpisodeStore) FetchCandidates(_ context.Context, excludeIDs []int, limit int) ([]*model.Episode, error) {
	f.lastExcluded = excludeIDs
	f.lastLimit = limit
	skip := make(map[int]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = true
	}
	out := make([]*model.Episode, 0)
	for _, ep := range f.episodes {
		if skip[ep.ID] {
			continue
		}
		out = append(out, ep)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEpisodeStore) ListTrending(_ context.Context, limit, offset int) ([]*model.Episode, error) {
	return page(f.episodes, limit, offset), nil
}

func (f *fakeEpisodeStore) ListNewReleases(_ context.Context, limit, offset int) ([]*model.Episode, error) {
	return page(f.episodes, limit, offset), nil
}

func (f *fakeEpisodeStore) ListByGenre(_ context.Context, genre string, limit, offset int) ([]*model.Episode, error) {
	out := make([]*model.Episode, 0)
	for _, ep := range f.episodes {
		if ep.Series != nil && strings.EqualFold(ep.Series.Genre, genre) {
			out = append(out, ep)
		}
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}

type fakeSeriesStore struct {
	mu      sync.Mutex
	series  []*model.Series
	similar map[int][]*model.Series
	calls   int
}

func (f *fakeSeriesStore) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeSeriesStore) FindByID(_ context.Context, id int) (*model.Series, error) {
	for _, s := range f.series {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeSeriesStore) sorted(less func(a, b *model.Series) bool, limit int) []*model.Series {
	out := append([]*model.Series(nil), f.series...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return page(out, limit, 0)
}

func (f *fakeSeriesStore) TopByTrending(_ context.Context, limit int) ([]*model.Series, error) {
	f.count()
	return f.sorted(func(a, b *model.Series) bool { return a.TrendingScore > b.TrendingScore }, limit), nil
}

func (f *fakeSeriesStore) TopByCreated(_ context.Context, limit int) ([]*model.Series, error) {
	return f.sorted(func(a, b *model.Series) bool { return a.CreatedAt.After(b.CreatedAt) }, limit), nil
}

func (f *fakeSeriesStore) TopByHype(_ context.Context, limit int) ([]*model.Series, error) {
	return f.sorted(func(a, b *model.Series) bool { return a.HypeScore > b.HypeScore }, limit), nil
}

func (f *fakeSeriesStore) TopByGenre(_ context.Context, genre string, limit int) ([]*model.Series, error) {
	out := make([]*model.Series, 0)
	for _, s := range f.series {
		if strings.EqualFold(s.Genre, genre) {
			out = append(out, s)
		}
	}
	return page(out, limit, 0), nil
}

func (f *fakeSeriesStore) ListPublished(_ context.Context, limit int) ([]*model.Series, error) {
	return page(f.series, limit, 0), nil
}

func (f *fakeSeriesStore) ListGenres(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range f.series {
		if !seen[s.Genre] {
			seen[s.Genre] = true
			out = append(out, s.Genre)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeSeriesStore) FindSimilar(_ context.Context, id int, limit int) ([]*model.Series, error) {
	return page(f.similar[id], limit, 0), nil
}

type fakeHistoryStore struct {
	completed map[int][]int
}

func (f *fakeHistoryStore) CompletedEpisodeIDs(_ context.Context, userID int, _ float64) ([]int, error) {
	return f.completed[userID], nil
}

// fakeAffinityStore 用互斥锁模拟行锁
type fakeAffinityStore struct {
	mu    sync.Mutex
	prefs map[int]model.Affinity
	gets  int
}

func newFakeAffinityStore() *fakeAffinityStore {
	return &fakeAffinityStore{prefs: map[int]model.Affinity{}}
}

func (f *fakeAffinityStore) Get(_ context.Context, userID int) (model.Affinity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	return f.prefs[userID].Clone(), nil
}

func (f *fakeAffinityStore) Update(_ context.Context, userID int, fn func(model.Affinity) model.Affinity) (model.Affinity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := fn(f.prefs[userID].Clone())
	f.prefs[userID] = next
	return next.Clone(), nil
}

type fakeTrendingStore struct {
	mu      sync.Mutex
	rows    []model.SeriesEngagement
	scores  map[int]float64
	failIDs map[int]bool
	lists   int
	block   chan struct{}
}

func (f *fakeTrendingStore) ListEngagement(_ context.Context) ([]model.SeriesEngagement, error) {
	f.mu.Lock()
	f.lists++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.rows, nil
}

func (f *fakeTrendingStore) UpdateTrendingScore(_ context.Context, id int, score float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return errors.New("write failed")
	}
	if f.scores == nil {
		f.scores = map[int]float64{}
	}
	f.scores[id] = score
	return nil
}

// fixedRand 总是返回 0，即不交换
type fixedRand struct{ v int }

func (r fixedRand) IntN(n int) int { return min(r.v, n-1) }

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (f *fakeSeriesStore) Search(_ context.Context, term, genre string, limit, offset int) ([]*model.Series, int64, error) {
	f.count()
	out := make([]*model.Series, 0)
	for _, s := range f.series {
		if term != "" && !containsFold(s.Title, term) && !containsFold(s.Description, term) {
			continue
		}
		if genre != "" && !containsFold(s.Genre, genre) {
			continue
		}
		out = append(out, s)
	}
	return page(out, limit, offset), int64(len(out)), nil
}

func (f *fakeSeriesStore) SuggestByTitle(_ context.Context, term string, limit int) ([]*model.Series, error) {
	out := make([]*model.Series, 0)
	for _, s := range f.series {
		if containsFold(s.Title, term) {
			out = append(out, s)
		}
	}
	return page(out, limit, 0), nil
}

func (f *fakeEpisodeStore) Search(_ context.Context, term, genre string, limit, offset int) ([]*model.Episode, int64, error) {
	out := make([]*model.Episode, 0)
	for _, ep := range f.episodes {
		if term != "" && !containsFold(ep.Title, term) && (ep.Series == nil || !containsFold(ep.Series.Title, term)) {
			continue
		}
		if genre != "" && (ep.Series == nil || !containsFold(ep.Series.Genre, genre)) {
			continue
		}
		out = append(out, ep)
	}
	return page(out, limit, offset), int64(len(out)), nil
}

type fakeSearchLogStore struct {
	mu       sync.Mutex
	logged   []string
	users    []*int
	trending []*model.TrendingKeyword
	err      error
	cleaned  []int
}

func (f *fakeSearchLogStore) Log(_ context.Context, keyword string, userID *int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.logged = append(f.logged, keyword)
	f.users = append(f.users, userID)
	return nil
}

func (f *fakeSearchLogStore) GetTrending(_ context.Context, _, limit int) ([]*model.TrendingKeyword, error) {
	if f.err != nil {
		return nil, f.err
	}
	return page(f.trending, limit, 0), nil
}

func (f *fakeSearchLogStore) DeleteOldKeywords(_ context.Context, days int) (int64, error) {
	f.cleaned = append(f.cleaned, days)
	return 1, nil
}

func (f *fakeSearchLogStore) DeleteOldLogs(_ context.Context, days int) (int64, error) {
	f.cleaned = append(f.cleaned, days)
	return 2, nil
}

type fakeSearchCacheStore struct {
	mu      sync.Mutex
	entries map[string]*model.SearchCache
	expired bool
	upserts int
	cleaned int
}

func newFakeSearchCacheStore() *fakeSearchCacheStore {
	return &fakeSearchCacheStore{entries: map[string]*model.SearchCache{}}
}

func (f *fakeSearchCacheStore) FindWithExpiry(_ context.Context, keyword, source string) (*model.SearchCache, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[source+"|"+keyword]
	if !ok {
		return nil, false, nil
	}
	return e, f.expired, nil
}

func (f *fakeSearchCacheStore) Upsert(_ context.Context, keyword, source, resultJSON string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.entries[source+"|"+keyword] = &model.SearchCache{Keyword: keyword, Source: source, ResultJSON: resultJSON}
	return nil
}

func (f *fakeSearchCacheStore) CleanExpired(_ context.Context) (int64, error) {
	f.cleaned++
	return 0, nil
}

func (f *fakeSearchCacheStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}
