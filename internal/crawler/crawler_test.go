package crawler_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"classifieds-scraper/internal/api"
	"classifieds-scraper/internal/crawler"
	"classifieds-scraper/internal/transform"
	"classifieds-scraper/pkg/models"
)

var policies = []crawler.EmptyPagePolicy{crawler.StopOnEmpty, crawler.SkipEmpty}

var fixedNow = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

// fakeSource serves canned search pages and detail records and records
// every call it receives.
type fakeSource struct {
	mu sync.Mutex

	pages      map[int]models.PageResult
	pageErrs   map[int]error
	lastPage   int
	probeErr   error
	records    map[models.ID]*models.Announcement
	detailErrs map[models.ID]error
	panicOn    models.ID

	searchCalls []int
	probeCalls  int
	detailCalls []models.ID
}

func (f *fakeSource) SearchPage(ctx context.Context, _ string, page int) (models.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, page)
	if err := ctx.Err(); err != nil {
		return models.PageResult{}, err
	}
	if err := f.pageErrs[page]; err != nil {
		return models.PageResult{}, err
	}
	return f.pages[page], nil
}

func (f *fakeSource) LastPage(ctx context.Context, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	return f.lastPage, nil
}

func (f *fakeSource) Announcement(ctx context.Context, id models.ID) (*models.Announcement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, id)
	if id != "" && id == f.panicOn {
		panic("decoder exploded")
	}
	if err := f.detailErrs[id]; err != nil {
		return nil, err
	}
	if rec, ok := f.records[id]; ok {
		return rec, nil
	}
	title := "listing " + id.String()
	return &models.Announcement{ID: id, Title: &title}, nil
}

func page(more bool, ids ...string) models.PageResult {
	res := models.PageResult{HasMorePages: more}
	for _, id := range ids {
		res.IDs = append(res.IDs, models.ID(id))
	}
	return res
}

func idRange(from, n int) []string {
	out := make([]string, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

func toIDs(ids ...string) []models.ID {
	out := make([]models.ID, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ID(id))
	}
	return out
}

func discoverer(src crawler.ListingSource, policy crawler.EmptyPagePolicy) *crawler.Coordinator {
	return crawler.NewCoordinator(crawler.Config{EmptyPage: policy}, src, nil, transform.MiniTransformer{}, zap.NewNop(), nil)
}

func TestDiscover_ThreePageScenario(t *testing.T) {
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			p1, p2, p3 := idRange(1, 60), idRange(61, 60), idRange(121, 30)
			src := &fakeSource{pages: map[int]models.PageResult{
				1: page(true, p1...),
				2: page(true, p2...),
				3: page(false, p3...),
				4: page(true, "999"),
			}}

			ids, err := discoverer(src, policy).Discover(context.Background(), "cat", 10)
			require.NoError(t, err)

			assert.Equal(t, []int{1, 2, 3}, src.searchCalls)
			assert.Zero(t, src.probeCalls)
			assert.Equal(t, toIDs(append(append(p1, p2...), p3...)...), ids)
		})
	}
}

func TestDiscover_StopsOnLastPageRegardlessOfLimit(t *testing.T) {
	for _, policy := range policies {
		for k := 1; k <= 5; k++ {
			t.Run(fmt.Sprintf("%s/k=%d", policy, k), func(t *testing.T) {
				pages := make(map[int]models.PageResult)
				want := make([]int, 0, k)
				for p := 1; p <= 8; p++ {
					pages[p] = page(p < k, strconv.Itoa(p))
					if p <= k {
						want = append(want, p)
					}
				}
				src := &fakeSource{pages: pages}

				ids, err := discoverer(src, policy).Discover(context.Background(), "cat", 8)
				require.NoError(t, err)
				assert.Equal(t, want, src.searchCalls)
				assert.Len(t, ids, k)
			})
		}
	}
}

func TestDiscover_EmptyPagePolicy(t *testing.T) {
	pages := map[int]models.PageResult{
		1: page(true, "1", "2"),
		2: page(true),
		3: page(false, "3"),
	}
	tests := []struct {
		policy    crawler.EmptyPagePolicy
		wantCalls []int
		wantIDs   []models.ID
	}{
		{policy: crawler.StopOnEmpty, wantCalls: []int{1, 2}, wantIDs: toIDs("1", "2")},
		{policy: crawler.SkipEmpty, wantCalls: []int{1, 2, 3}, wantIDs: toIDs("1", "2", "3")},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			src := &fakeSource{pages: pages}
			ids, err := discoverer(src, tt.policy).Discover(context.Background(), "cat", 5)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, src.searchCalls)
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDiscover_FailedPageIsSkippedAndDuplicatesCollapse(t *testing.T) {
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			src := &fakeSource{
				pages: map[int]models.PageResult{
					1: page(true, "1", "2"),
					3: page(false, "2", "3"),
				},
				pageErrs: map[int]error{2: fmt.Errorf("%w after 3 attempts: timeout", api.ErrTransport)},
			}
			ids, err := discoverer(src, policy).Discover(context.Background(), "cat", 5)
			require.NoError(t, err)
			assert.Equal(t, []int{1, 2, 3}, src.searchCalls)
			assert.Equal(t, toIDs("1", "2", "3"), ids)
		})
	}
}

func TestDiscover_ProbesPageCountWithoutLimit(t *testing.T) {
	src := &fakeSource{
		lastPage: 2,
		pages: map[int]models.PageResult{
			1: page(true, "1"),
			2: page(true, "2"),
			3: page(true, "3"),
		},
	}
	ids, err := discoverer(src, crawler.StopOnEmpty).Discover(context.Background(), "cat", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, src.probeCalls)
	assert.Equal(t, []int{1, 2}, src.searchCalls)
	assert.Equal(t, toIDs("1", "2"), ids)
}

func TestDiscover_ProbeFailureFallsBackToOnePage(t *testing.T) {
	src := &fakeSource{
		probeErr: &api.StatusError{Code: 503},
		pages: map[int]models.PageResult{
			1: page(true, "1"),
			2: page(true, "2"),
		},
	}
	ids, err := discoverer(src, crawler.StopOnEmpty).Discover(context.Background(), "cat", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, src.searchCalls)
	assert.Equal(t, toIDs("1"), ids)
}

func TestDiscover_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{pages: map[int]models.PageResult{1: page(true, "1")}}
	_, err := discoverer(src, crawler.StopOnEmpty).Discover(ctx, "cat", 3)
	assert.ErrorIs(t, err, context.Canceled)
}

// sleepLog stands in for the pause between requests and records the
// calls that had been made each time it was asked to wait.
type sleepLog struct {
	src     *fakeSource
	pages   []int
	details []int
	waits   []time.Duration
}

func (l *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	l.src.mu.Lock()
	defer l.src.mu.Unlock()
	last := 0
	if n := len(l.src.searchCalls); n > 0 {
		last = l.src.searchCalls[n-1]
	}
	l.pages = append(l.pages, last)
	l.details = append(l.details, len(l.src.detailCalls))
	l.waits = append(l.waits, d)
	return ctx.Err()
}

func TestDiscover_PausesOnlyBetweenSuccessfulPages(t *testing.T) {
	tests := []struct {
		name     string
		policy   crawler.EmptyPagePolicy
		pages    map[int]models.PageResult
		pageErrs map[int]error
		limit    int
		want     []int
	}{
		{
			name:  "until the last page",
			pages: map[int]models.PageResult{1: page(true, "1"), 2: page(true, "2"), 3: page(false, "3")},
			limit: 10,
			want:  []int{1, 2},
		},
		{
			name:  "page limit reached",
			pages: map[int]models.PageResult{1: page(true, "1"), 2: page(true, "2"), 3: page(true, "3")},
			limit: 3,
			want:  []int{1, 2},
		},
		{
			name:     "failed page",
			pages:    map[int]models.PageResult{1: page(true, "1"), 3: page(false, "3")},
			pageErrs: map[int]error{2: fmt.Errorf("%w: 502", api.ErrStatus)},
			limit:    5,
			want:     []int{1},
		},
		{
			name:   "skipped empty page",
			policy: crawler.SkipEmpty,
			pages:  map[int]models.PageResult{1: page(true), 2: page(false, "2")},
			limit:  5,
			want:   []int{1},
		},
		{
			name:  "single page",
			pages: map[int]models.PageResult{1: page(true, "1")},
			limit: 1,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{pages: tt.pages, pageErrs: tt.pageErrs}
			log := &sleepLog{src: src}
			c := crawler.NewCoordinator(crawler.Config{
				WaitTime:  250 * time.Millisecond,
				EmptyPage: tt.policy,
				Sleep:     log.sleep,
			}, src, nil, transform.MiniTransformer{}, zap.NewNop(), nil)

			_, err := c.Discover(context.Background(), "cat", tt.limit)
			require.NoError(t, err)

			assert.Equal(t, tt.want, log.pages)
			for _, d := range log.waits {
				assert.Equal(t, 250*time.Millisecond, d)
			}
		})
	}
}

func TestDiscover_CancelledDuringPause(t *testing.T) {
	src := &fakeSource{pages: map[int]models.PageResult{1: page(true, "1"), 2: page(false, "2")}}
	c := crawler.NewCoordinator(crawler.Config{WaitTime: time.Hour}, src, nil, transform.MiniTransformer{}, zap.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Discover(ctx, "cat", 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []int{1}, src.searchCalls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestReconcile(t *testing.T) {
	discovered := toIDs("5", "6", "7", "8")
	tracked := models.NewIDSet("5", "7")

	tests := []struct {
		name  string
		sel   crawler.Selector
		limit int
		want  []models.ID
	}{
		{name: "cap above size", sel: crawler.AllSelector{}, limit: 10, want: toIDs("6", "8")},
		{name: "no cap", sel: crawler.AllSelector{}, limit: 0, want: toIDs("6", "8")},
		{name: "cap truncates in order", sel: crawler.AllSelector{}, limit: 1, want: toIDs("6")},
		{name: "even", sel: crawler.ParitySelector{Even: true}, limit: 10, want: toIDs("6", "8")},
		{name: "odd", sel: crawler.ParitySelector{Even: false}, limit: 10, want: toIDs()},
		{name: "nil selector", sel: nil, limit: 10, want: toIDs("6", "8")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crawler.Reconcile(discovered, tracked, tt.sel, tt.limit))
		})
	}
}

func TestReconcile_BatchIsSubsetAndCapped(t *testing.T) {
	for seed := 1; seed <= 40; seed++ {
		var discovered []models.ID
		tracked := models.NewIDSet()
		for i := 0; i < seed*3; i++ {
			id := models.ID(strconv.Itoa((i * 7 * seed) % 53))
			discovered = append(discovered, id)
			if (i+seed)%3 == 0 {
				tracked.Add(id)
			}
		}
		limit := seed % 6

		batch := crawler.Reconcile(discovered, tracked, crawler.AllSelector{}, limit)

		inDiscovered := models.NewIDSet(discovered...)
		seen := models.NewIDSet()
		for _, id := range batch {
			assert.True(t, inDiscovered.Has(id), "seed %d: %s not discovered", seed, id)
			assert.False(t, tracked.Has(id), "seed %d: %s already tracked", seed, id)
			assert.True(t, seen.Add(id), "seed %d: %s repeated", seed, id)
		}
		if limit > 0 {
			assert.LessOrEqual(t, len(batch), limit, "seed %d", seed)
		}
	}
}

func TestSelectorFor(t *testing.T) {
	sel, err := crawler.SelectorFor("EVEN")
	require.NoError(t, err)
	assert.True(t, sel.Select("12"))
	assert.False(t, sel.Select("13"))
	assert.False(t, sel.Select("abc"))

	sel, err = crawler.SelectorFor("odd")
	require.NoError(t, err)
	assert.True(t, sel.Select("13"))

	sel, err = crawler.SelectorFor("")
	require.NoError(t, err)
	assert.True(t, sel.Select("abc"))

	_, err = crawler.SelectorFor("prime")
	assert.Error(t, err)
}

func TestParseEmptyPagePolicy(t *testing.T) {
	p, err := crawler.ParseEmptyPagePolicy("Skip")
	require.NoError(t, err)
	assert.Equal(t, crawler.SkipEmpty, p)

	p, err = crawler.ParseEmptyPagePolicy("stop")
	require.NoError(t, err)
	assert.Equal(t, crawler.StopOnEmpty, p)

	_, err = crawler.ParseEmptyPagePolicy("retry")
	assert.Error(t, err)
}
