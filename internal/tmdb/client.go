// Package tmdb is the client for the movie metadata API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Clark-Hu/movie-of-the-day/internal/domain"
	"github.com/Clark-Hu/movie-of-the-day/internal/metrics"
)

// DefaultBaseURL is the public metadata API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// ErrNotFound is wrapped by FetchError when upstream answers 404.
var ErrNotFound = errors.New("tmdb: not found")

// FetchError reports a transport failure or a non-success upstream response.
type FetchError struct {
	Op         string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tmdb: %s: upstream returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("tmdb: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Criteria are the discovery query parameters.
type Criteria struct {
	ReleaseYear  int
	SortBy       string
	MinVoteCount int
	IncludeAdult bool
	Language     string
	Page         int
}

// DailyCriteria is the fixed, non-personalised query used for the movie of
// the day: last year's most popular well-rated titles.
func DailyCriteria(now time.Time) Criteria {
	return Criteria{
		ReleaseYear:  now.Year() - 1,
		SortBy:       "popularity.desc",
		MinVoteCount: 1000,
		IncludeAdult: false,
		Language:     "en-US",
		Page:         1,
	}
}

func (c Criteria) values() url.Values {
	q := url.Values{}
	if c.SortBy != "" {
		q.Set("sort_by", c.SortBy)
	}
	if c.MinVoteCount > 0 {
		q.Set("vote_count.gte", strconv.Itoa(c.MinVoteCount))
	}
	q.Set("include_adult", strconv.FormatBool(c.IncludeAdult))
	if c.Language != "" {
		q.Set("language", c.Language)
	}
	if c.ReleaseYear > 0 {
		q.Set("primary_release_year", strconv.Itoa(c.ReleaseYear))
	}
	page := c.Page
	if page <= 0 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))
	return q
}

// Client is the movie metadata contract consumed by the rest of the service.
type Client interface {
	Discover(ctx context.Context, criteria Criteria) ([]domain.MovieSummary, error)
	GetDetails(ctx context.Context, movieID int64) (domain.Movie, error)
	GetCredits(ctx context.Context, movieID int64) (domain.Credits, error)
	GetWatchProviders(ctx context.Context, movieID int64) (domain.WatchProviders, error)
	SearchMovies(ctx context.Context, query string, page int) ([]domain.MovieSummary, error)
	Genres(ctx context.Context) ([]domain.Genre, error)
}

// Options tunes the HTTP client.
type Options struct {
	Timeout       time.Duration
	RatePerSecond float64 // 0 disables client-side limiting
	Burst         int
	Logger        zerolog.Logger
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewHTTPClient constructs an HTTP-backed metadata client.
func NewHTTPClient(baseURL, apiKey string, opts Options) (*HTTPClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = newLimiter(opts.RatePerSecond, opts.Burst)
	}

	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter: limiter,
		logger:  opts.Logger,
	}, nil
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type pagedResponse struct {
	Page         int                   `json:"page"`
	Results      []domain.MovieSummary `json:"results"`
	TotalPages   int                   `json:"total_pages"`
	TotalResults int                   `json:"total_results"`
}

// Discover lists movie summaries in upstream order (popularity-ranked for the daily criteria).
func (c *HTTPClient) Discover(ctx context.Context, criteria Criteria) ([]domain.MovieSummary, error) {
	var payload pagedResponse
	if err := c.get(ctx, "discover", "/discover/movie", criteria.values(), &payload); err != nil {
		return nil, err
	}
	c.logger.Debug().Int("results", len(payload.Results)).Int("year", criteria.ReleaseYear).Msg("discover completed")
	return payload.Results, nil
}

// GetDetails fetches the full record for one movie.
func (c *HTTPClient) GetDetails(ctx context.Context, movieID int64) (domain.Movie, error) {
	var movie domain.Movie
	if err := c.get(ctx, "details", fmt.Sprintf("/movie/%d", movieID), nil, &movie); err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

// GetCredits fetches cast and crew.
func (c *HTTPClient) GetCredits(ctx context.Context, movieID int64) (domain.Credits, error) {
	var credits domain.Credits
	if err := c.get(ctx, "credits", fmt.Sprintf("/movie/%d/credits", movieID), nil, &credits); err != nil {
		return domain.Credits{}, err
	}
	return credits, nil
}

// GetWatchProviders fetches streaming availability for every country.
func (c *HTTPClient) GetWatchProviders(ctx context.Context, movieID int64) (domain.WatchProviders, error) {
	var providers domain.WatchProviders
	if err := c.get(ctx, "watch_providers", fmt.Sprintf("/movie/%d/watch/providers", movieID), nil, &providers); err != nil {
		return domain.WatchProviders{}, err
	}
	if providers.Results == nil {
		providers.Results = map[string]domain.CountryProviders{}
	}
	return providers, nil
}

// SearchMovies runs a title search.
func (c *HTTPClient) SearchMovies(ctx context.Context, query string, page int) ([]domain.MovieSummary, error) {
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	var payload pagedResponse
	if err := c.get(ctx, "search", "/search/movie", q, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// Genres lists the movie genres known upstream.
func (c *HTTPClient) Genres(ctx context.Context) ([]domain.Genre, error) {
	var payload struct {
		Genres []domain.Genre `json:"genres"`
	}
	if err := c.get(ctx, "genres", "/genre/movie/list", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Genres, nil
}

func (c *HTTPClient) get(ctx context.Context, op, path string, query url.Values, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &FetchError{Op: op, Err: err}
		}
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + path
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "decode_error").Inc()
			return &FetchError{Op: op, StatusCode: 0, Err: fmt.Errorf("decode response: %w", err)}
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(op, "ok").Inc()
		return nil
	case resp.StatusCode == http.StatusNotFound:
		metrics.UpstreamRequestsTotal.WithLabelValues(op, "not_found").Inc()
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: ErrNotFound}
	default:
		metrics.UpstreamRequestsTotal.WithLabelValues(op, "http_error").Inc()
		c.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("unexpected upstream status")
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
}

// PosterURL joins an image base URL, a size and a poster path.
func PosterURL(imageBase, size, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return strings.TrimRight(imageBase, "/") + "/" + size + posterPath
}
