package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"channel-scout/internal/logging"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

type fakeAPI struct {
	searchPages  map[string]string // page token -> body
	channels     map[string]string // channel id -> item json
	uploads      string
	playlistCode int
	playlistBody string
	videosBody   string
	searchCalls  atomic.Int32
	uploadCalls  atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()

	switch {
	case strings.HasSuffix(r.URL.Path, "/search"):
		f.searchCalls.Add(1)
		body, ok := f.searchPages[q.Get("pageToken")]
		if !ok {
			http.Error(w, `{"error":{"code":403,"message":"quotaExceeded"}}`, http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(body))
	case strings.HasSuffix(r.URL.Path, "/channels"):
		if q.Get("part") == "contentDetails" {
			f.uploadCalls.Add(1)
			if f.uploads == "" {
				_, _ = w.Write([]byte(`{"items":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"items":[{"id":"UC1","contentDetails":{"relatedPlaylists":{"uploads":"` + f.uploads + `"}}}]}`))
			return
		}
		var items []json.RawMessage
		for _, id := range strings.Split(q.Get("id"), ",") {
			if item, ok := f.channels[id]; ok {
				items = append(items, json.RawMessage(item))
			}
		}
		data, _ := json.Marshal(map[string]interface{}{"items": items})
		_, _ = w.Write(data)
	case strings.HasSuffix(r.URL.Path, "/playlistItems"):
		if f.playlistCode != 0 {
			http.Error(w, `{"error":{"code":404,"message":"playlistNotFound"}}`, f.playlistCode)
			return
		}
		_, _ = w.Write([]byte(f.playlistBody))
	case strings.HasSuffix(r.URL.Path, "/videos"):
		_, _ = w.Write([]byte(f.videosBody))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{RequestsPerSecond: 1000}, logging.NewNopLogger(),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func channelJSON(id, title, country, subs string) string {
	return `{"id":"` + id + `","snippet":{"title":"` + title + `","country":"` + country + `","customUrl":"@` + strings.ToLower(title) + `"},` +
		`"statistics":{"subscriberCount":"` + subs + `","videoCount":"12","viewCount":"5000"},` +
		`"contentDetails":{"relatedPlaylists":{"uploads":"UU` + id[2:] + `"}}}`
}

func TestSearchPaginatesAndDedups(t *testing.T) {
	api := &fakeAPI{
		searchPages: map[string]string{
			"":   `{"nextPageToken":"p2","items":[{"id":{"channelId":"UC1"}},{"id":{"kind":"youtube#channel"}},{"id":{"channelId":"UC2"}}]}`,
			"p2": `{"items":[{"id":{"channelId":"UC2"}},{"snippet":{"channelId":"UC3"}}]}`,
		},
		channels: map[string]string{
			"UC1": channelJSON("UC1", "Alpha", "us", "150000"),
			"UC2": channelJSON("UC2", "Beta", "", "90000"),
			"UC3": `{"id":"UC3"}`,
		},
	}
	c := newTestClient(t, api)

	got, err := c.Search(context.Background(), "vegan recipes", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"UC1", "UC2", "UC3"}, []string{got[0].ChannelID, got[1].ChannelID, got[2].ChannelID})
	assert.Equal(t, "US", got[0].Country)
	assert.Equal(t, int64(150000), got[0].SubscriberCount)
	assert.Equal(t, "UU1", got[0].UploadsPlaylistID)
	assert.Equal(t, models.UnknownCountry, got[1].Country)

	// missing optional fields fall back to sentinels
	assert.Equal(t, models.NotAvailable, got[2].Title)
	assert.Equal(t, models.NotAvailable, got[2].Description)
	assert.Zero(t, got[2].SubscriberCount)
	assert.EqualValues(t, 2, api.searchCalls.Load())
}

func TestSearchStopsAtLimit(t *testing.T) {
	api := &fakeAPI{
		searchPages: map[string]string{
			"": `{"nextPageToken":"p2","items":[{"id":{"channelId":"UC1"}},{"id":{"channelId":"UC2"}}]}`,
		},
		channels: map[string]string{
			"UC1": channelJSON("UC1", "Alpha", "us", "1"),
			"UC2": channelJSON("UC2", "Beta", "us", "1"),
		},
	}
	c := newTestClient(t, api)

	got, err := c.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, api.searchCalls.Load())
}

func TestSearchUpstreamError(t *testing.T) {
	api := &fakeAPI{searchPages: map[string]string{}}
	c := newTestClient(t, api)

	_, err := c.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindUpstream))
}

func TestRecentVideos(t *testing.T) {
	api := &fakeAPI{
		uploads:      "UU1",
		playlistBody: `{"items":[{"contentDetails":{"videoId":"v1"}},{"contentDetails":{"videoId":"v2"}},{"contentDetails":{"videoId":"v3"}}]}`,
		videosBody: `{"items":[
			{"id":"v2","snippet":{"title":"Two","publishedAt":"2024-01-02T00:00:00Z"},"statistics":{"viewCount":"200"}},
			{"id":"v1","snippet":{"title":"One","description":"first"},"statistics":{"viewCount":"100"}},
			{"id":"v3","snippet":{"title":"Three"},"statistics":{"viewCount":"0"}}]}`,
	}
	c := newTestClient(t, api)

	sample, err := c.RecentVideos(context.Background(), "UC1", "", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two", "Three"}, sample.Titles())
	assert.Equal(t, 100.0, sample.AverageViews())
	assert.Equal(t, 2024, sample[1].PublishedAt.Year())
}

func TestRecentVideosKnownUploadsPlaylist(t *testing.T) {
	api := &fakeAPI{
		playlistBody: `{"items":[{"contentDetails":{"videoId":"v1"}}]}`,
		videosBody:   `{"items":[{"id":"v1","snippet":{"title":"One"},"statistics":{"viewCount":"50"}}]}`,
	}
	c := newTestClient(t, api)

	sample, err := c.RecentVideos(context.Background(), "UC1", "UU1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"One"}, sample.Titles())
	assert.Zero(t, api.uploadCalls.Load())

	api.uploads = "UU1"
	_, err = c.RecentVideos(context.Background(), "UC1", "", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, api.uploadCalls.Load())
}

func TestRecentVideosUnresolvable(t *testing.T) {
	t.Run("no uploads playlist", func(t *testing.T) {
		c := newTestClient(t, &fakeAPI{})
		sample, err := c.RecentVideos(context.Background(), "UC404", "", 3)
		require.NoError(t, err)
		assert.Empty(t, sample)
	})

	t.Run("playlist not found", func(t *testing.T) {
		c := newTestClient(t, &fakeAPI{uploads: "UU1", playlistCode: http.StatusNotFound})
		sample, err := c.RecentVideos(context.Background(), "UC1", "", 3)
		require.NoError(t, err)
		assert.Empty(t, sample)
	})
}
