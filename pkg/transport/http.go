package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/notion-go/notion/internal/codec"
	"github.com/notion-go/notion/pkg/constants"
	"github.com/notion-go/notion/pkg/logger"
	"github.com/notion-go/notion/pkg/models"
)

// Endpoints used by HTTP.
const (
	EndpointGetRecordValues       = "getRecordValues"
	EndpointSubmitTransaction     = "submitTransaction"
	EndpointQueryCollection       = "queryCollection"
	EndpointSearchPagesWithParent = "searchPagesWithParent"
	EndpointUserSettings          = "getUserAnalyticsSettings"
)

const defaultQueryLimit = 1000

type Params struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries uint64
	Logger     logger.Logger
}

// HTTP talks to the remote store's JSON API. Every call is a POST to
// BaseURL + "/api/v3/" + endpoint, authenticated with the token_v2 cookie.
type HTTP struct {
	BaseURL     string
	Token       string
	MaxRetries  uint64
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	// Backoff builds the schedule for retrying throttled and 5xx responses.
	Backoff func() retry.Backoff

	httpClient *http.Client
	logger     logger.Logger
}

var _ Transport = (*HTTP)(nil)

func NewHTTP(p Params) *HTTP {
	c := HTTP{
		BaseURL:     strings.TrimRight(p.BaseURL, "/"),
		Token:       p.Token,
		MaxRetries:  p.MaxRetries,
		Marshaler:   codec.JSON{},
		Unmarshaler: codec.JSON{},
		Backoff: func() retry.Backoff {
			return retry.NewFibonacci(500 * time.Millisecond)
		},
		logger: p.Logger,
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}

	timeout := p.Timeout
	if timeout == 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	c.httpClient = &http.Client{
		Timeout: timeout, // Set a default timeout to avoid hanging requests
	}

	return &c
}

func (h *HTTP) SetTimeout(timeout time.Duration) *HTTP {
	h.httpClient.Timeout = timeout
	return h
}

func (h *HTTP) SetHTTPClient(client *http.Client) *HTTP {
	h.httpClient = client
	return h
}

// Post sends body to endpoint and decodes the response into out, if out is
// not nil.
func (h *HTTP) Post(ctx context.Context, endpoint string, body, out any) error {
	if h.BaseURL == "" {
		return constants.ErrNoBaseURL
	}

	reqBody, err := h.Marshaler.Marshal(body)
	if err != nil {
		return err
	}

	var respData []byte
	attempt := 0
	b := retry.WithMaxRetries(h.MaxRetries, h.Backoff())
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+constants.APIPath+endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		if h.Token != "" {
			req.AddCookie(&http.Cookie{Name: constants.TokenCookie, Value: h.Token})
		}

		respData, err = h.MakeRequest(req)
		var terr *Error
		if errors.As(err, &terr) {
			terr.Endpoint = endpoint
			if terr.Retryable() {
				h.logger.Warn("request failed, retrying", "endpoint", endpoint, "status", terr.StatusCode, "attempt", attempt)
				return retry.RetryableError(err)
			}
		}
		return err
	})
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := h.Unmarshaler.Unmarshal(respData, out); err != nil {
		return fmt.Errorf("%w: %s: %v", constants.ErrInvalidResponse, endpoint, err)
	}
	return nil
}

func (h *HTTP) MakeRequest(req *http.Request) ([]byte, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBytes, nil
	}

	apiErr := &Error{StatusCode: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	if h.Unmarshaler.Unmarshal(respBytes, &body) == nil {
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" && resp.StatusCode == http.StatusBadRequest {
		apiErr.Message = "There was an error (400) submitting the request."
	}
	return nil, apiErr
}

type recordRequest struct {
	Requests []models.Key `json:"requests"`
}

type recordResult struct {
	Role  string        `json:"role"`
	Value models.Record `json:"value"`
}

func (h *HTTP) FetchRecords(ctx context.Context, keys []models.Key) (map[models.Key]models.Record, error) {
	var res struct {
		Results []recordResult `json:"results"`
	}
	if err := h.Post(ctx, EndpointGetRecordValues, recordRequest{Requests: keys}, &res); err != nil {
		return nil, err
	}
	if len(res.Results) != len(keys) {
		return nil, fmt.Errorf("%w: asked for %d records, got %d", constants.ErrInvalidResponse, len(keys), len(res.Results))
	}

	records := make(map[models.Key]models.Record, len(keys))
	for i, r := range res.Results {
		if r.Value == nil {
			continue
		}
		records[keys[i]] = r.Value
	}
	h.logger.Debug("fetched records", "requested", len(keys), "found", len(records))
	return records, nil
}

func (h *HTTP) SubmitOperations(ctx context.Context, ops []models.Operation) error {
	body := map[string]any{
		"requestId":  models.NewID(),
		"operations": ops,
	}
	if err := h.Post(ctx, EndpointSubmitTransaction, body, nil); err != nil {
		return err
	}
	h.logger.Debug("submitted transaction", "operations", len(ops))
	return nil
}

func (h *HTTP) QueryCollection(ctx context.Context, collectionID, viewID string, spec models.QuerySpec) (*QueryResponse, error) {
	limit := spec.Limit
	if limit == 0 {
		limit = defaultQueryLimit
	}
	body := map[string]any{
		"collectionId":     collectionID,
		"collectionViewId": viewID,
		"query":            spec,
		"loader": map[string]any{
			"type":             "table",
			"limit":            limit,
			"searchQuery":      spec.Search,
			"loadContentCover": true,
		},
	}
	var res QueryResponse
	if err := h.Post(ctx, EndpointQueryCollection, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (h *HTTP) SearchWithParent(ctx context.Context, parentID, query string) (*SearchResponse, error) {
	body := map[string]any{
		"query":    query,
		"parentId": parentID,
		"limit":    constants.SearchLimit,
	}
	var res SearchResponse
	if err := h.Post(ctx, EndpointSearchPagesWithParent, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UserID returns the id of the user owning the token.
func (h *HTTP) UserID(ctx context.Context) (string, error) {
	var res struct {
		UserID string `json:"user_id"`
	}
	if err := h.Post(ctx, EndpointUserSettings, map[string]string{"platform": "web"}, &res); err != nil {
		return "", err
	}
	if res.UserID == "" {
		return "", constants.ErrNoUserID
	}
	return res.UserID, nil
}
