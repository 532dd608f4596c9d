// Package youtube wraps the YouTube Data API v3 calls used by discovery:
// paginated channel search with statistics enrichment and recent-upload sampling.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"channel-scout/internal/logging"
	"channel-scout/internal/logging/types"
	"channel-scout/pkg/models"
	"channel-scout/pkg/utils"
)

const (
	// maxPageSize is the per-call maximum of search.list and channels.list
	maxPageSize = 50

	channelParts = "snippet,statistics,brandingSettings,contentDetails"
)

// Options configures the client
type Options struct {
	APIKey            string
	RequestsPerSecond float64
	PageSize          int64
}

// Client is safe for concurrent use by multiple runs
type Client struct {
	service  *ytapi.Service
	limiter  *rate.Limiter
	pageSize int64
	logger   types.Logger
}

// New creates a client. Extra client options are appended after the API key,
// which lets tests point the service at a local endpoint.
func New(ctx context.Context, opts Options, logger types.Logger, extra ...option.ClientOption) (*Client, error) {
	if opts.APIKey == "" && len(extra) == 0 {
		return nil, fmt.Errorf("YouTube API key is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	clientOpts := make([]option.ClientOption, 0, len(extra)+1)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, extra...)

	service, err := ytapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return &Client{
		service:  service,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		pageSize: pageSize,
		logger:   logger.WithField("component", "youtube"),
	}, nil
}

// Search collects up to limit unique channels for keyword in upstream order.
// Duplicates across pages of the same search are skipped.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	emitted := make(map[string]struct{}, limit)
	candidates := make([]models.Candidate, 0, limit)
	pageToken := ""

	for len(candidates) < limit {
		if err := c.limiter.Wait(ctx); err != nil {
			return candidates, utils.NewUpstreamError("search.list", err)
		}

		call := c.service.Search.List([]string{"snippet"}).
			Q(keyword).
			Type("channel").
			MaxResults(c.pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return candidates, utils.NewUpstreamError("search.list", err)
		}

		ids := make([]string, 0, len(resp.Items))
		for _, item := range resp.Items {
			id := searchResultChannelID(item)
			if id == "" {
				continue
			}
			if _, dup := emitted[id]; dup {
				continue
			}
			emitted[id] = struct{}{}
			ids = append(ids, id)
			if len(candidates)+len(ids) == limit {
				break
			}
		}

		if len(ids) > 0 {
			page, err := c.channels(ctx, ids)
			if err != nil {
				return candidates, err
			}
			candidates = append(candidates, page...)
		}

		c.logger.Debug("search page processed", map[string]interface{}{
			"keyword":   keyword,
			"page_ids":  len(ids),
			"collected": len(candidates),
		})

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return candidates, nil
}

// channels enriches ids with one channels.list call, keeping the order of ids.
// Channels the API no longer returns are dropped.
func (c *Client) channels(ctx context.Context, ids []string) ([]models.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, utils.NewUpstreamError("channels.list", err)
	}

	resp, err := c.service.Channels.List(strings.Split(channelParts, ",")).
		Id(ids...).
		MaxResults(maxPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, utils.NewUpstreamError("channels.list", err)
	}

	byID := make(map[string]*ytapi.Channel, len(resp.Items))
	for _, ch := range resp.Items {
		if ch != nil {
			byID[ch.Id] = ch
		}
	}

	out := make([]models.Candidate, 0, len(ids))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			out = append(out, toCandidate(ch))
		}
	}
	return out, nil
}

// RecentVideos samples the newest n uploads of a channel. uploadsPlaylistID
// is the id Search already resolved; when empty it is looked up with
// channels.list. A channel without uploads, or whose uploads playlist cannot
// be resolved, yields an empty sample.
func (c *Client) RecentVideos(ctx context.Context, channelID, uploadsPlaylistID string, n int64) (models.RecentVideoSample, error) {
	if n <= 0 {
		return models.RecentVideoSample{}, nil
	}

	uploads := uploadsPlaylistID
	if uploads == "" {
		var err error
		if uploads, err = c.uploadsPlaylist(ctx, channelID); err != nil {
			return nil, err
		}
		if uploads == "" {
			return models.RecentVideoSample{}, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, utils.NewUpstreamError("playlistItems.list", err)
	}
	plResp, err := c.service.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(uploads).
		MaxResults(n).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return models.RecentVideoSample{}, nil
		}
		return nil, utils.NewUpstreamError("playlistItems.list", err)
	}

	videoIDs := make([]string, 0, len(plResp.Items))
	for _, item := range plResp.Items {
		if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
			videoIDs = append(videoIDs, item.ContentDetails.VideoId)
		}
	}
	if len(videoIDs) == 0 {
		return models.RecentVideoSample{}, nil
	}
	if int64(len(videoIDs)) > n {
		videoIDs = videoIDs[:n]
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, utils.NewUpstreamError("videos.list", err)
	}
	vResp, err := c.service.Videos.List([]string{"snippet", "statistics"}).Id(videoIDs...).Context(ctx).Do()
	if err != nil {
		return nil, utils.NewUpstreamError("videos.list", err)
	}

	byID := make(map[string]*ytapi.Video, len(vResp.Items))
	for _, v := range vResp.Items {
		byID[v.Id] = v
	}

	// keep playlist order, which is newest first
	sample := make(models.RecentVideoSample, 0, len(videoIDs))
	for _, id := range videoIDs {
		if v, ok := byID[id]; ok {
			sample = append(sample, toRecentVideo(v))
		}
	}
	return sample, nil
}

func (c *Client) uploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", utils.NewUpstreamError("channels.list", err)
	}
	resp, err := c.service.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", utils.NewUpstreamError("channels.list", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists == nil {
		return "", nil
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

func searchResultChannelID(item *ytapi.SearchResult) string {
	if item == nil {
		return ""
	}
	if item.Id != nil && item.Id.ChannelId != "" {
		return item.Id.ChannelId
	}
	if item.Snippet != nil {
		return item.Snippet.ChannelId
	}
	return ""
}

func toCandidate(ch *ytapi.Channel) models.Candidate {
	cand := models.Candidate{
		ChannelID:   ch.Id,
		Title:       models.NotAvailable,
		Description: models.NotAvailable,
		Country:     models.UnknownCountry,
		CustomURL:   models.NotAvailable,
	}

	if s := ch.Snippet; s != nil {
		cand.Title = utils.GetStringOrDefault(s.Title, models.NotAvailable)
		cand.Description = utils.GetStringOrDefault(s.Description, models.NotAvailable)
		cand.CustomURL = utils.GetStringOrDefault(s.CustomUrl, models.NotAvailable)
		if s.Country != "" {
			cand.Country = strings.ToUpper(s.Country)
		}
	}
	if cand.Country == models.UnknownCountry && ch.BrandingSettings != nil &&
		ch.BrandingSettings.Channel != nil && ch.BrandingSettings.Channel.Country != "" {
		cand.Country = strings.ToUpper(ch.BrandingSettings.Channel.Country)
	}
	if st := ch.Statistics; st != nil {
		if !st.HiddenSubscriberCount {
			cand.SubscriberCount = int64(st.SubscriberCount)
		}
		cand.VideoCount = int64(st.VideoCount)
		cand.ViewCount = int64(st.ViewCount)
	}
	if cd := ch.ContentDetails; cd != nil && cd.RelatedPlaylists != nil {
		cand.UploadsPlaylistID = cd.RelatedPlaylists.Uploads
	}
	return cand
}

func toRecentVideo(v *ytapi.Video) models.RecentVideo {
	rv := models.RecentVideo{VideoID: v.Id}
	if s := v.Snippet; s != nil {
		rv.Title = s.Title
		rv.Description = s.Description
		if t, err := time.Parse(time.RFC3339, s.PublishedAt); err == nil {
			rv.PublishedAt = t
		}
	}
	if v.Statistics != nil {
		rv.ViewCount = int64(v.Statistics.ViewCount)
	}
	return rv
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
