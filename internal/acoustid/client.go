// Package acoustid looks up recordings by acoustic fingerprint.
package acoustid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/franz/music-catalog/internal/util"
)

const (
	// BaseURL is the AcoustID web service endpoint
	BaseURL = "https://api.acoustid.org/v2"

	// UserAgent identifies this application to AcoustID
	UserAgent = "mcat-MusicCatalog/1.0.0 (https://github.com/franz/music-catalog)"

	// DefaultDelay is the pause before every call (the service allows 3 req/s)
	DefaultDelay = 400 * time.Millisecond

	lookupMeta = "recordings releasegroups releases tracks"
)

// Client calls the AcoustID lookup API. Every call is preceded by a
// blocking sleep; failed calls are returned, never retried.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	delay      time.Duration
	logger     *util.Logger
}

// Config holds client configuration
type Config struct {
	APIKey     string
	BaseURL    string        // defaults to BaseURL
	Delay      time.Duration // defaults to DefaultDelay; negative disables
	HTTPClient *http.Client
	Logger     *util.Logger
}

// NewClient creates a new AcoustID API client
func NewClient(cfg *Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}
	delay := cfg.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  UserAgent,
		delay:      delay,
		logger:     util.OrDefault(cfg.Logger),
	}
}

// Candidate is one (recording, release) pairing returned for a fingerprint
type Candidate struct {
	AcoustID       string
	Similarity     float64
	RecordingID    string
	Title          string
	Artist         string
	ReleaseID      string
	ReleaseGroupID string
	Album          string
	AlbumArtist    string
	Year           int
	Country        string
	TrackNo        int
	DiscNo         int
	Owned          bool // set by Rank when the catalog already holds this release
}

type lookupResponse struct {
	Status  string         `json:"status"`
	Error   *apiError      `json:"error"`
	Results []lookupResult `json:"results"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type lookupResult struct {
	ID         string      `json:"id"`
	Score      float64     `json:"score"`
	Recordings []recording `json:"recordings"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type recording struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Artists       []artist       `json:"artists"`
	Releases      []release      `json:"releases"`
	ReleaseGroups []releaseGroup `json:"releasegroups"`
}

type releaseGroup struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Artists  []artist  `json:"artists"`
	Releases []release `json:"releases"`
}

type release struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Country string   `json:"country"`
	Artists []artist `json:"artists"`
	Date    *struct {
		Year int `json:"year"`
	} `json:"date"`
	Mediums []medium `json:"mediums"`
}

type medium struct {
	Position int     `json:"position"`
	Tracks   []track `json:"tracks"`
}

type track struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Title    string `json:"title"`
}

// Lookup returns the candidates for a fingerprint, one per release, sorted
// by similarity. An empty slice means the service knows no match.
func (c *Client) Lookup(ctx context.Context, fingerprint string, duration int) ([]Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: AcoustID API key not set", util.ErrInvalidConfig)
	}
	if fingerprint == "" {
		return nil, fmt.Errorf("fingerprint cannot be empty")
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client", c.apiKey)
	form.Set("format", "json")
	form.Set("meta", lookupMeta)
	form.Set("duration", strconv.Itoa(duration))
	form.Set("fingerprint", fingerprint)

	c.logger.Debugf("AcoustID API: lookup (duration %ds)", duration)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/lookup", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("AcoustID service unavailable (%d) - rate limit exceeded or maintenance", resp.StatusCode)
	}

	var result lookupResponse
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Status != "ok" {
		if result.Error != nil {
			return nil, fmt.Errorf("AcoustID error %d: %s", result.Error.Code, result.Error.Message)
		}
		return nil, fmt.Errorf("AcoustID returned status %q (HTTP %d)", result.Status, resp.StatusCode)
	}

	return candidates(result.Results), nil
}

// wait blocks for the configured delay, returning early only if ctx ends
func (c *Client) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// candidates flattens results into one candidate per release
func candidates(results []lookupResult) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)

	add := func(res lookupResult, rec recording, groupID, groupTitle string, groupArtists []artist, rel release) {
		if rel.ID == "" || seen[rel.ID] {
			return
		}
		seen[rel.ID] = true

		recArtist := firstArtist(rec.Artists)
		albumArtist := firstArtist(rel.Artists)
		if albumArtist == "" {
			albumArtist = firstArtist(groupArtists)
		}
		if albumArtist == "" {
			albumArtist = recArtist
		}
		if recArtist == "" {
			recArtist = albumArtist
		}
		album := rel.Title
		if album == "" {
			album = groupTitle
		}

		c := Candidate{
			AcoustID:       res.ID,
			Similarity:     res.Score,
			RecordingID:    rec.ID,
			Title:          rec.Title,
			Artist:         recArtist,
			ReleaseID:      rel.ID,
			ReleaseGroupID: groupID,
			Album:          album,
			AlbumArtist:    albumArtist,
			Country:        rel.Country,
		}
		if rel.Date != nil {
			c.Year = rel.Date.Year
		}
		c.TrackNo, c.DiscNo = trackPosition(rel, rec.Title)
		out = append(out, c)
	}

	for _, res := range results {
		for _, rec := range res.Recordings {
			// Release groups carry the richer data, so they claim a release first
			for _, g := range rec.ReleaseGroups {
				for _, rel := range g.Releases {
					add(res, rec, g.ID, g.Title, g.Artists, rel)
				}
			}
			for _, rel := range rec.Releases {
				add(res, rec, "", "", nil, rel)
			}
		}
	}

	Rank(out, nil, "")
	return out
}

// trackPosition finds the track and disc number of a recording on a
// release. AcoustID only lists the matching tracks, so the first title
// match wins, then the first track, then 1/1.
func trackPosition(rel release, title string) (int, int) {
	want := strings.ToLower(strings.TrimSpace(title))
	firstTrack, firstDisc := 0, 0

	for _, m := range rel.Mediums {
		disc := m.Position
		if disc <= 0 {
			disc = 1
		}
		for _, t := range m.Tracks {
			if strings.ToLower(strings.TrimSpace(t.Title)) == want && t.Position > 0 {
				return t.Position, disc
			}
			if firstTrack == 0 && t.Position > 0 {
				firstTrack, firstDisc = t.Position, disc
			}
		}
	}

	if firstTrack > 0 {
		return firstTrack, firstDisc
	}
	return 1, 1
}

func firstArtist(artists []artist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}
