// Package garmin is a small client for the Garmin Connect endpoints the ingest jobs read.
package garmin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/logging"
)

const (
	profilePath    = "/userprofile-service/socialProfile"
	dailyStatsPath = "/usersummary-service/usersummary/daily/"
	activitiesPath = "/activitylist-service/activities/search/activities"

	dateLayout = "2006-01-02"

	maxErrorBodySize = 4 * 1024
)

// Config holds what Login needs to open a session.
type Config struct {
	BaseURL           string
	TokenURL          string
	ClientID          string
	Username          string
	Password          string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithLogger overrides the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the transport used for the token exchange and API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.base = hc
	}
}

// Client is an authenticated Garmin Connect session.
type Client struct {
	baseURL     string
	base        *http.Client
	session     *http.Client
	limiter     *rate.Limiter
	logger      zerolog.Logger
	displayName string
}

// Login exchanges the credentials for a token and resolves the account display name.
// The returned client refreshes its token transparently for the life of ctx.
func Login(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: cfg.BaseURL,
		base:    &http.Client{Timeout: cfg.Timeout},
		logger:  logging.Logger().With().Str("component", "garmin").Logger(),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	oauthCfg := &oauth2.Config{
		ClientID: cfg.ClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	sessionCtx := context.WithValue(ctx, oauth2.HTTPClient, c.base)
	token, err := oauthCfg.PasswordCredentialsToken(sessionCtx, cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", classifyTokenError(err))
	}
	c.session = oauthCfg.Client(sessionCtx, token)
	c.session.Timeout = c.base.Timeout

	var profile struct {
		DisplayName string `json:"displayName"`
	}
	body, err := c.get(ctx, profilePath, nil)
	if err != nil {
		return nil, fmt.Errorf("login: load profile: %w", err)
	}
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("login: decode profile: %w", errors.Join(domain.ErrDecode, err))
	}
	if profile.DisplayName == "" {
		return nil, fmt.Errorf("login: profile has no display name: %w", domain.ErrAuthentication)
	}
	c.displayName = profile.DisplayName

	c.logger.Info().Str("display_name", c.displayName).Msg("garmin session established")
	return c, nil
}

// DisplayName returns the account the session belongs to.
func (c *Client) DisplayName() string {
	return c.displayName
}

// DailyStats fetches the user summary for the calendar date of day.
// A summary without a uuid is returned with an empty UUID rather than an error.
func (c *Client) DailyStats(ctx context.Context, day time.Time) (domain.DailyStats, error) {
	date := day.Format(dateLayout)
	query := url.Values{"calendarDate": []string{date}}

	body, err := c.get(ctx, dailyStatsPath+url.PathEscape(c.displayName), query)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("fetch stats for %s: %w", date, err)
	}
	return decodeDailyStats(day, body)
}

// Activities returns up to limit activities starting at offset start, newest first.
func (c *Client) Activities(ctx context.Context, start, limit int) ([]domain.Activity, error) {
	query := url.Values{
		"start": []string{strconv.Itoa(start)},
		"limit": []string{strconv.Itoa(limit)},
	}
	body, err := c.get(ctx, activitiesPath, query)
	if err != nil {
		return nil, fmt.Errorf("fetch activities (start=%d, limit=%d): %w", start, limit, err)
	}
	return decodeActivities(body)
}

// LastActivity returns the most recent activity, or nil when the account has none.
func (c *Client) LastActivity(ctx context.Context) (*domain.Activity, error) {
	activities, err := c.Activities(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, nil
	}
	return &activities[0], nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.session.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, classifyTokenError(err)
		}
		return nil, errors.Join(domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("garmin request")

	if err := statusError(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(domain.ErrConnection, err)
	}
	return body, nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	detail := fmt.Errorf("status %d: %s", resp.StatusCode, body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return errors.Join(domain.ErrAuthentication, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Join(domain.ErrTooManyRequests, detail)
	default:
		return errors.Join(domain.ErrConnection, detail)
	}
}

func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) || retrieveErr.Response == nil {
		return errors.Join(domain.ErrConnection, err)
	}
	switch code := retrieveErr.Response.StatusCode; {
	case code == http.StatusTooManyRequests:
		return errors.Join(domain.ErrTooManyRequests, err)
	case code >= 400 && code < 500:
		return errors.Join(domain.ErrAuthentication, err)
	default:
		return errors.Join(domain.ErrConnection, err)
	}
}
