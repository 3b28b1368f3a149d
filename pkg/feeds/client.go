package feeds

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

	"github.com/gabriel-ai-assistant/police-scanner/pkg/calls"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"
)

// scalar accepts JSON strings and numbers interchangeably; the feed API
// is not consistent about the groupId type across feeds.
type scalar string

func (s *scalar) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = scalar(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = scalar(n.String())
	return nil
}

// looseBool accepts the assorted truthy encodings the playlist detail
// endpoint uses for its public flag.
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = looseBool(t)
	case float64:
		*b = t != 0
	case string:
		s := strings.ToLower(t)
		*b = s == "1" || s == "true" || s == "yes"
	case nil:
		*b = false
	default:
		return fmt.Errorf("cannot decode %T as bool", v)
	}
	return nil
}

// LiveCall is one call payload from the live calls endpoint.
type LiveCall struct {
	GroupID  scalar   `json:"groupId"`
	TS       int64    `json:"ts"`
	FeedID   *int64   `json:"feedId"`
	TGID     *int64   `json:"tgId"`
	Tag      *int64   `json:"tag"`
	NodeID   *int64   `json:"nodeId"`
	SID      *int64   `json:"sid"`
	SiteID   *int64   `json:"siteId"`
	Freq     *float64 `json:"freq"`
	Src      *int64   `json:"src"`
	URL      string   `json:"url"`
	StartTS  *int64   `json:"start_ts"`
	EndTS    *int64   `json:"end_ts"`
	Duration float64  `json:"duration"`
	Size     *int64   `json:"size"`

	// Raw is the untouched payload, persisted alongside the parsed
	// fields as a snapshot of what the API actually sent.
	Raw json.RawMessage `json:"-"`
}

// ToCall converts an API payload into a pending call row.
func (lc *LiveCall) ToCall(playlistUUID string, fetchedAt time.Time) calls.Call {
	startTS := lc.TS
	if lc.StartTS != nil {
		startTS = *lc.StartTS
	}
	endTS := lc.TS
	if lc.EndTS != nil {
		endTS = *lc.EndTS
	}
	startedAt := time.Unix(startTS, 0).UTC()
	endedAt := time.Unix(endTS, 0).UTC()

	return calls.Call{
		CallUID:      calls.UID(string(lc.GroupID), lc.TS),
		GroupID:      string(lc.GroupID),
		TS:           lc.TS,
		FeedID:       lc.FeedID,
		TGID:         lc.TGID,
		TagID:        lc.Tag,
		NodeID:       lc.NodeID,
		SID:          lc.SID,
		SiteID:       lc.SiteID,
		Freq:         lc.Freq,
		Src:          lc.Src,
		URL:          lc.URL,
		StartedAt:    &startedAt,
		EndedAt:      &endedAt,
		DurationMS:   int64(lc.Duration * 1000),
		SizeBytes:    lc.Size,
		FetchedAt:    fetchedAt,
		RawJSON:      datatypes.JSON(lc.Raw),
		Status:       calls.StatusPending,
		PlaylistUUID: playlistUUID,
	}
}

// LiveCallsPage is one response from the live calls endpoint: the calls
// plus the server position to resume from next cycle.
type LiveCallsPage struct {
	Calls   []LiveCall
	LastPos int64
}

// PlaylistSummary is one entry from the public playlist listing.
type PlaylistSummary struct {
	UUID     string          `json:"uuid"`
	Name     string          `json:"name"`
	Descr    *string         `json:"descr"`
	Counties json.RawMessage `json:"counties"`
}

// PlaylistDetail is the full playlist record from the detail endpoint.
type PlaylistDetail struct {
	Name      string          `json:"name"`
	Descr     *string         `json:"descr"`
	TS        *int64          `json:"ts"`
	LastSeen  *int64          `json:"last_seen"`
	Listeners *int64          `json:"listeners"`
	Public    looseBool       `json:"public"`
	MaxGroups *int64          `json:"maxGroups"`
	NumGroups *int64          `json:"numGroups"`
	CTIDs     json.RawMessage `json:"ctids"`
	Groups    json.RawMessage `json:"groups"`

	Raw json.RawMessage `json:"-"`
}

type metricsRecorder interface {
	RecordAPICall(ctx context.Context, metric *APICallMetric) error
}

// Client talks to the feed API. Every request, success or failure, is
// recorded as an api_call_metrics row independent of the business-level
// poll log.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  oauth2.TokenSource
	metrics metricsRecorder
}

func NewClient(httpClient *http.Client, baseURL string, tokens oauth2.TokenSource, metrics metricsRecorder) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		metrics: metrics,
	}
}

// LiveCalls fetches calls for a playlist newer than lastPos. A zero
// lastPos omits the position parameter, which the server treats as a
// short lookback window rather than full history.
func (c *Client) LiveCalls(ctx context.Context, playlistUUID string, lastPos int64) (*LiveCallsPage, error) {
	params := url.Values{"playlist_uuid": {playlistUUID}}
	if lastPos > 0 {
		params.Set("pos", strconv.FormatInt(lastPos, 10))
	}
	endpoint := c.baseURL + "/calls/v1/live/?" + params.Encode()

	var envelope struct {
		Calls   []json.RawMessage `json:"calls"`
		LastPos int64             `json:"lastPos"`
	}
	if err := c.getJSON(ctx, endpoint, &envelope); err != nil {
		return nil, err
	}

	page := &LiveCallsPage{
		Calls:   make([]LiveCall, 0, len(envelope.Calls)),
		LastPos: envelope.LastPos,
	}
	for _, raw := range envelope.Calls {
		var call LiveCall
		if err := json.Unmarshal(raw, &call); err != nil {
			return nil, fmt.Errorf("decoding live call: %w", err)
		}
		call.Raw = raw
		page.Calls = append(page.Calls, call)
	}
	return page, nil
}

// PublicPlaylists fetches the full public playlist listing.
func (c *Client) PublicPlaylists(ctx context.Context) ([]PlaylistSummary, error) {
	var out []PlaylistSummary
	if err := c.getJSON(ctx, c.baseURL+"/calls/v1/playlists_public", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PlaylistDetail fetches one playlist's full record.
func (c *Client) PlaylistDetail(ctx context.Context, uuid string) (*PlaylistDetail, error) {
	endpoint := c.baseURL + "/calls/v1/playlist_get/?uuid=" + url.QueryEscape(uuid)

	var raw json.RawMessage
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return nil, err
	}
	var detail PlaylistDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("decoding playlist detail for %s: %w", uuid, err)
	}
	detail.Raw = raw
	return &detail, nil
}

// CountryRecord is one entry from the countries reference endpoint.
type CountryRecord struct {
	COID        int64   `json:"coid"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	ISOAlpha2   *string `json:"iso_alpha2"`

	Raw json.RawMessage `json:"-"`
}

// StateRecord is one entry from the states reference endpoint.
type StateRecord struct {
	STID      int64  `json:"stid"`
	COID      int64  `json:"coid"`
	StateName string `json:"state_name"`
	StateCode string `json:"state_code"`

	Raw json.RawMessage `json:"-"`
}

// Countries fetches the country reference listing.
func (c *Client) Countries(ctx context.Context) ([]CountryRecord, error) {
	var envelope struct {
		Countries []json.RawMessage `json:"countries"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/common/countries", &envelope); err != nil {
		return nil, err
	}
	out := make([]CountryRecord, 0, len(envelope.Countries))
	for _, raw := range envelope.Countries {
		var rec CountryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding country: %w", err)
		}
		rec.Raw = raw
		out = append(out, rec)
	}
	return out, nil
}

// States fetches the state reference listing.
func (c *Client) States(ctx context.Context) ([]StateRecord, error) {
	var envelope struct {
		States []json.RawMessage `json:"states"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/common/states", &envelope); err != nil {
		return nil, err
	}
	out := make([]StateRecord, 0, len(envelope.States))
	for _, raw := range envelope.States {
		var rec StateRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding state: %w", err)
		}
		rec.Raw = raw
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("fetching feed api token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	token.SetAuthHeader(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordCall(ctx, rawURL, 0, time.Since(start), nil, err)
		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		c.recordCall(ctx, rawURL, resp.StatusCode, elapsed, nil, err)
		return fmt.Errorf("reading response from %s: %w", rawURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, rawURL)
		c.recordCall(ctx, rawURL, resp.StatusCode, elapsed, nil, err)
		return err
	}

	size := int64(len(body))
	c.recordCall(ctx, rawURL, resp.StatusCode, elapsed, &size, nil)

	logger.Log.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"bytes":       size,
		"duration_ms": elapsed.Milliseconds(),
		"url":         rawURL,
	}).Info("Feed API request completed")

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("bad JSON from %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) recordCall(ctx context.Context, endpoint string, status int, elapsed time.Duration, size *int64, callErr error) {
	if c.metrics == nil {
		return
	}
	metric := &APICallMetric{
		Endpoint:     endpoint,
		StatusCode:   status,
		DurationMS:   elapsed.Milliseconds(),
		ResponseSize: size,
	}
	if callErr != nil {
		msg := callErr.Error()
		metric.Error = &msg
	}
	if err := c.metrics.RecordAPICall(ctx, metric); err != nil {
		logger.Log.WithError(err).Warn("API metrics logging failed")
	}
}
