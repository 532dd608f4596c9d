package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"channel-scout/internal/logging"
	"channel-scout/internal/metrics"
	"channel-scout/internal/scraper"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

type fakeExpander struct {
	keywords []string
	err      error
}

func (f *fakeExpander) ExpandQuery(ctx context.Context, query string) ([]string, error) {
	return f.keywords, f.err
}

type fakeSearcher struct {
	byKeyword map[string][]models.Candidate
	errs      map[string]error
	videos    map[string]models.RecentVideoSample
	videoErr  error
	uploads   map[string]string
	searched  []string
	onSearch  func(keyword string)
}

func (f *fakeSearcher) Search(ctx context.Context, keyword string, limit int) ([]models.Candidate, error) {
	f.searched = append(f.searched, keyword)
	if f.onSearch != nil {
		f.onSearch(keyword)
	}
	if err := f.errs[keyword]; err != nil {
		return nil, err
	}
	return f.byKeyword[keyword], nil
}

func (f *fakeSearcher) RecentVideos(ctx context.Context, channelID, uploadsPlaylistID string, n int64) (models.RecentVideoSample, error) {
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[channelID] = uploadsPlaylistID
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.videos[channelID], nil
}

type fakeClassifier struct {
	verdict models.Classification
	err     error
	texts   []string
}

func (f *fakeClassifier) Classify(ctx context.Context, description, channelText string) (models.Classification, error) {
	f.texts = append(f.texts, channelText)
	return f.verdict, f.err
}

type fakeScraper struct {
	contacts map[string]models.ContactInfo
	errs     map[string]error
	calls    []string
	closed   int
}

func (f *fakeScraper) ExtractFromChannel(ctx context.Context, channelURL string) (models.ContactInfo, error) {
	f.calls = append(f.calls, channelURL)
	if err := f.errs[channelURL]; err != nil {
		return models.ContactInfo{}, err
	}
	return f.contacts[channelURL], nil
}

func (f *fakeScraper) Close() error {
	f.closed++
	return nil
}

type fakeOpener struct {
	scraper *fakeScraper
	err     error
	opens   int
}

func (f *fakeOpener) Open(ctx context.Context) (scraper.ContactScraper, error) {
	f.opens++
	if f.err != nil {
		return nil, f.err
	}
	return f.scraper, nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]models.ContactInfo
}

func (m *memoryCache) GetContact(ctx context.Context, channelID string) (models.ContactInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.data[channelID]
	return info, ok, nil
}

func (m *memoryCache) SetContact(ctx context.Context, channelID string, info models.ContactInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[channelID] = info
	return nil
}

type memoryStore struct {
	runs []*models.RunResult
}

func (m *memoryStore) SaveRun(ctx context.Context, run *models.RunResult) error {
	m.runs = append(m.runs, run)
	return nil
}

func candidate(id string, subs int64, country string) models.Candidate {
	return models.Candidate{
		ChannelID:       id,
		Title:           "Channel " + id,
		Description:     "About " + id,
		Country:         country,
		CustomURL:       "@" + id,
		SubscriberCount: subs,
	}
}

func channelURL(id string) string {
	return "https://www.youtube.com/@" + id
}

type fixture struct {
	expander   *fakeExpander
	searcher   *fakeSearcher
	classifier *fakeClassifier
	scraper    *fakeScraper
	opener     *fakeOpener
}

func newFixture() *fixture {
	s := &fakeScraper{contacts: map[string]models.ContactInfo{}, errs: map[string]error{}}
	return &fixture{
		expander:   &fakeExpander{},
		searcher:   &fakeSearcher{byKeyword: map[string][]models.Candidate{}, errs: map[string]error{}},
		classifier: &fakeClassifier{},
		scraper:    s,
		opener:     &fakeOpener{scraper: s},
	}
}

func (f *fixture) orchestrator(opts Options, extra ...Option) *Orchestrator {
	o := New(opts, f.expander, f.searcher, f.classifier, f.opener, logging.NewNopLogger(), extra...)
	o.newID = func() string { return "run-1" }
	return o
}

func baseOptions() Options {
	return Options{
		DefaultLimit:          20,
		MaxLimit:              200,
		PerKeywordLimit:       50,
		RecentVideos:          3,
		DefaultMinSubscribers: 100000,
		ScrapeContacts:        true,
	}
}

func ids(results []models.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ChannelID)
	}
	return out
}

func TestRunSubscriberThreshold(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{
		candidate("small", 99999, "US"),
		candidate("exact", 100000, "US"),
		candidate("big", 2000000, "US"),
	}

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "big"}, ids(res.Results))

	zero := int64(0)
	res, err = o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking", MinSubscribers: &zero}))
	require.NoError(t, err)
	assert.Equal(t, []string{"small", "exact", "big"}, ids(res.Results))
}

func TestRunCountryFilter(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{
		candidate("us", 200000, "US"),
		candidate("gb", 200000, "gb"),
		candidate("de", 200000, "DE"),
		candidate("none", 200000, models.UnknownCountry),
	}
	o := f.orchestrator(baseOptions())

	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking", CountryCode: "us, GB"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"us", "gb"}, ids(res.Results))

	res, err = o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"us", "gb", "de", "none"}, ids(res.Results))
}

func TestRunDeduplicatesAcrossKeywords(t *testing.T) {
	f := newFixture()
	f.expander.keywords = []string{"recipes", "Cooking", "baking"}
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US"), candidate("b", 200000, "US")}
	f.searcher.byKeyword["recipes"] = []models.Candidate{candidate("b", 200000, "US"), candidate("c", 200000, "US")}
	f.searcher.byKeyword["baking"] = []models.Candidate{candidate("a", 200000, "US"), candidate("d", 200000, "US")}

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"cooking", "recipes", "baking"}, res.Keywords)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(res.Results))
	assert.Equal(t, 1, f.opener.opens)
	assert.Equal(t, 1, f.scraper.closed)
}

func TestRunStopsAtLimit(t *testing.T) {
	f := newFixture()
	f.expander.keywords = []string{"more"}
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("c%d", i)
		f.searcher.byKeyword["cooking"] = append(f.searcher.byKeyword["cooking"], candidate(id, 200000, "US"))
	}
	f.searcher.byKeyword["more"] = []models.Candidate{candidate("x", 200000, "US")}

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking", Limit: 3}))
	require.NoError(t, err)

	assert.Equal(t, []string{"c0", "c1", "c2"}, ids(res.Results))
	assert.Equal(t, []string{"cooking"}, f.searcher.searched)
	assert.Len(t, f.classifier.texts, 3)
	assert.False(t, res.TimedOut)
}

func TestRunScrapeFailureKeepsCandidate(t *testing.T) {
	f := newFixture()
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("c%d", i)
		f.searcher.byKeyword["cooking"] = append(f.searcher.byKeyword["cooking"], candidate(id, 200000, "US"))
		f.scraper.contacts[channelURL(id)] = models.ContactInfo{Email: id + "@creators.tv"}
	}
	f.scraper.errs[channelURL("c3")] = utils.NewLoadTimeout("load", context.DeadlineExceeded)

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	require.Len(t, res.Results, 5)
	third := res.Results[2]
	assert.True(t, third.Contact.IsEmpty())
	require.Len(t, third.Warnings, 1)
	assert.Contains(t, third.Warnings[0], "contacts")
	assert.Equal(t, "c4@creators.tv", res.Results[3].Contact.Email)
}

func TestRunStageFailuresFallBackToDefaults(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US")}
	f.searcher.videoErr = errors.New("quota")
	f.classifier.err = utils.NewClassificationFailure("classify", errors.New("overloaded"))

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	got := res.Results[0]
	assert.Empty(t, got.RecentVideos)
	assert.Zero(t, got.AverageViews)
	assert.Equal(t, models.Classification{}, got.Classification)
	assert.Len(t, got.Warnings, 2)
}

func TestRunPassesUploadsPlaylist(t *testing.T) {
	f := newFixture()
	known := candidate("a", 200000, "US")
	known.UploadsPlaylistID = "UUa"
	f.searcher.byKeyword["cooking"] = []models.Candidate{known, candidate("b", 200000, "US")}

	o := f.orchestrator(baseOptions())
	_, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"a": "UUa", "b": ""}, f.searcher.uploads)
}

func TestRunMergesClassifierContacts(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US")}
	f.scraper.contacts[channelURL("a")] = models.ContactInfo{Links: []string{"https://instagram.com/a"}}
	f.classifier.verdict = models.Classification{
		IsICP:   true,
		Contact: models.ContactInfo{Email: "a@creators.tv", Links: []string{"https://instagram.com/a", "https://x.com/a"}},
	}

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	assert.Equal(t, "a@creators.tv", res.Results[0].Contact.Email)
	assert.Equal(t, []string{"https://instagram.com/a", "https://x.com/a"}, res.Results[0].Contact.Links)
	assert.Contains(t, f.classifier.texts[0], "Links: https://instagram.com/a")
}

func TestRunMinAverageViews(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("low", 200000, "US"), candidate("high", 200000, "US")}
	f.searcher.videos = map[string]models.RecentVideoSample{
		"low":  {{ViewCount: 100}, {ViewCount: 200}, {ViewCount: 0}},
		"high": {{ViewCount: 5000}},
	}
	minViews := 1000.0

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking", MinViews: &minViews}))
	require.NoError(t, err)
	assert.Equal(t, []string{"high"}, ids(res.Results))
	assert.Equal(t, []string{channelURL("high")}, f.scraper.calls)
}

func TestRunExpansionFailure(t *testing.T) {
	f := newFixture()
	f.expander.err = errors.New("model unavailable")

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrExpansion)
	assert.Empty(t, f.searcher.searched)
}

func TestRunKeywordErrorIsRecorded(t *testing.T) {
	f := newFixture()
	f.expander.keywords = []string{"recipes"}
	f.searcher.errs["cooking"] = utils.NewUpstreamError("search", errors.New("quotaExceeded"))
	f.searcher.byKeyword["recipes"] = []models.Candidate{candidate("a", 200000, "US")}

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ids(res.Results))
	require.Len(t, res.KeywordErrors, 1)
	assert.Equal(t, "cooking", res.KeywordErrors[0].Keyword)
}

func TestRunDeadlineReturnsPartialResults(t *testing.T) {
	f := newFixture()
	f.expander.keywords = []string{"slow"}
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US")}
	f.searcher.byKeyword["slow"] = []models.Candidate{candidate("b", 200000, "US")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.searcher.onSearch = func(keyword string) {
		if keyword == "slow" {
			cancel()
		}
	}

	o := f.orchestrator(baseOptions())
	res, err := o.Run(ctx, o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, []string{"a"}, ids(res.Results))
	assert.Equal(t, 1, f.scraper.closed)
}

func TestRunTimeoutOption(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US")}
	f.searcher.onSearch = func(string) { time.Sleep(30 * time.Millisecond) }

	opts := baseOptions()
	opts.RunTimeout = 5 * time.Millisecond
	o := f.orchestrator(opts)

	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Empty(t, res.Results)
}

func TestRunUsesContactCacheAndStore(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US"), candidate("b", 200000, "US")}
	f.scraper.contacts[channelURL("b")] = models.ContactInfo{Email: "b@creators.tv"}

	cache := &memoryCache{data: map[string]models.ContactInfo{"a": {Email: "cached@creators.tv"}}}
	store := &memoryStore{}
	m := metrics.New(nil)

	o := f.orchestrator(baseOptions(), WithContactCache(cache), WithRunStore(store), WithMetrics(m))
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	assert.Equal(t, "cached@creators.tv", res.Results[0].Contact.Email)
	assert.Equal(t, []string{channelURL("b")}, f.scraper.calls)
	assert.Equal(t, "b@creators.tv", cache.data["b"].Email)
	require.Len(t, store.runs, 1)
	assert.Equal(t, "run-1", store.runs[0].RunID)
}

func TestRunOpenFailureDisablesScraping(t *testing.T) {
	f := newFixture()
	f.opener.err = errors.New("browser session pool exhausted")
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US"), candidate("b", 200000, "US")}

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking"}))
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	assert.Equal(t, 1, f.opener.opens)
	assert.NotEmpty(t, res.Results[1].Warnings)
}

func TestRunWithoutScraping(t *testing.T) {
	f := newFixture()
	f.searcher.byKeyword["cooking"] = []models.Candidate{candidate("a", 200000, "US")}
	off := false

	o := f.orchestrator(baseOptions())
	res, err := o.Run(context.Background(), o.NewRequest(&models.SearchRequest{Query: "cooking", ScrapeContacts: &off}))
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Zero(t, f.opener.opens)
	assert.Empty(t, res.Results[0].Warnings)
}

func TestNewRequestClampsLimit(t *testing.T) {
	o := newFixture().orchestrator(baseOptions())
	assert.Equal(t, 20, o.clampLimit(0))
	assert.Equal(t, 200, o.clampLimit(1000))
	assert.Equal(t, 7, o.clampLimit(7))

	req := o.NewRequest(&models.SearchRequest{Query: " cooking "})
	assert.Equal(t, "cooking", req.Query)
	assert.Equal(t, "cooking", req.Description)
	assert.Equal(t, int64(100000), req.MinSubscribers)
	assert.True(t, req.ScrapeContacts)
}

func TestComposeChannelText(t *testing.T) {
	c := candidate("a", 150000, "US")
	text := ComposeChannelText(c, models.ContactInfo{}, models.RecentVideoSample{
		{Title: "One", Description: "first", ViewCount: 100},
		{Title: "Two", Description: "second", ViewCount: 300},
	})
	assert.Contains(t, text, "Channel Name: Channel a")
	assert.Contains(t, text, "Subscribers: 150000")
	assert.Contains(t, text, "Links: N/A")
	assert.Contains(t, text, "Last 3 Video Titles: One | Two")
	assert.Contains(t, text, "Average Views: 200")
	assert.Contains(t, text, "Country: US")
}
