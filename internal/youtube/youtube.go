package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

var ErrNoResults = errors.New("youtube: no results")

type Video struct {
	ID    string
	Title string
}

func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// Searcher finds videos through the YouTube Data API.
type Searcher struct {
	svc *yt.Service
}

func NewSearcher(ctx context.Context, apiKey string, httpClient *http.Client, opts ...option.ClientOption) (*Searcher, error) {
	if httpClient != nil {
		// A caller supplied client bypasses option.WithAPIKey, so attach
		// the key on its transport instead.
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		keyed := *httpClient
		keyed.Transport = &transport.APIKey{Key: apiKey, Transport: base}
		opts = append(opts, option.WithHTTPClient(&keyed))
	} else {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return &Searcher{svc: svc}, nil
}

// Top returns the first video matching query.
func (s *Searcher) Top(ctx context.Context, query string) (Video, error) {
	resp, err := s.svc.Search.List([]string{"id", "snippet"}).
		Q(query).
		MaxResults(1).
		Type("video").
		Context(ctx).
		Do()
	if err != nil {
		return Video{}, fmt.Errorf("youtube search: %w", err)
	}

	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		v := Video{ID: item.Id.VideoId}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
		}
		return v, nil
	}
	return Video{}, ErrNoResults
}
