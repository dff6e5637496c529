package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ritmofit/agent/pkg/agent/types"
)

const defaultRequestTimeout = 10 * time.Second

// Client handles requests to the RitmoFit backend. Every request carries the
// bearer token from the token provider; errors are classified (see errors.go)
// and propagated unmodified -- recovery is the caller's business.
type Client struct {
	slogger *slog.Logger
	baseURL *url.URL
	client  *http.Client
	tokens  types.TokenProvider
}

type clientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mostly for tests.
func WithHTTPClient(client *http.Client) clientOption {
	return func(c *Client) {
		c.client = client
	}
}

func NewClient(slogger *slog.Logger, rawBaseURL string, tokens types.TokenProvider, opts ...clientOption) (*Client, error) {
	baseURL, err := url.Parse(rawBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	c := &Client{
		slogger: slogger.With("component", "api_client"),
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultRequestTimeout},
		tokens:  tokens,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// UnreadNotifications fetches only unread notifications.
func (c *Client) UnreadNotifications(ctx context.Context) ([]Notification, error) {
	var wire []wireNotification
	if err := c.getJSON(ctx, "/notifications", "", &wire); err != nil {
		return nil, err
	}

	return notificationsFromWire(wire), nil
}

// AllNotifications fetches read and unread notifications.
func (c *Client) AllNotifications(ctx context.Context) ([]Notification, error) {
	var wire []wireNotification
	if err := c.getJSON(ctx, "/notifications", "all=true", &wire); err != nil {
		return nil, err
	}

	return notificationsFromWire(wire), nil
}

func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/notifications/%s/read", notificationID))
}

// MarkUnread marks one notification unread. This endpoint may not exist
// server-side; callers should tolerate a not-found error (see IsNotFound).
func (c *Client) MarkUnread(ctx context.Context, notificationID string) error {
	return c.mutate(ctx, http.MethodPost, fmt.Sprintf("/notifications/%s/unread", notificationID))
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.mutate(ctx, http.MethodPost, "/notifications/read-all")
}

func (c *Client) DeleteNotification(ctx context.Context, notificationID string) error {
	return c.mutate(ctx, http.MethodDelete, fmt.Sprintf("/notifications/%s", notificationID))
}

// Reservations fetches the current user's reservations.
func (c *Client) Reservations(ctx context.Context) ([]Reservation, error) {
	var wire []wireReservation
	if err := c.getJSON(ctx, "/reservations/me", "", &wire); err != nil {
		return nil, err
	}

	return reservationsFromWire(wire), nil
}

func (c *Client) CreateReservation(ctx context.Context, sessionID string) error {
	op := "POST /reservations"

	body, err := json.Marshal(map[string]string{"sessionId": sessionID})
	if err != nil {
		return fmt.Errorf("marshaling reservation request: %w", err)
	}

	response, err := c.do(ctx, http.MethodPost, "/reservations", "", body)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return err
		}
		return newTransportError(op, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return newStatusError(op, response.StatusCode)
	}

	return nil
}

func (c *Client) CancelReservation(ctx context.Context, sessionID string) error {
	return c.mutate(ctx, http.MethodPatch, fmt.Sprintf("/reservations/%s/cancel", sessionID))
}

func (c *Client) getJSON(ctx context.Context, path, rawQuery string, dest any) error {
	op := fmt.Sprintf("GET %s", path)

	response, err := c.do(ctx, http.MethodGet, path, rawQuery, nil)
	if err != nil {
		c.slogger.Log(ctx, slog.LevelError,
			"error making request to RitmoFit endpoint",
			"path", path,
			"err", err,
		)
		if errors.Is(err, ErrNoToken) {
			return err
		}
		return newTransportError(op, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		c.slogger.Log(ctx, slog.LevelError,
			"got not-ok status code from RitmoFit endpoint",
			"path", path,
			"response_code", response.StatusCode,
		)
		return newStatusError(op, response.StatusCode)
	}

	if err := json.NewDecoder(response.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}

	return nil
}

// mutate issues a bodyless mutation request, returning success or a
// classified failure only.
func (c *Client) mutate(ctx context.Context, verb, path string) error {
	op := fmt.Sprintf("%s %s", verb, path)

	response, err := c.do(ctx, verb, path, "", nil)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return err
		}
		return newTransportError(op, err)
	}
	defer response.Body.Close()

	// Drain so the connection can be reused
	io.Copy(io.Discard, response.Body)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return newStatusError(op, response.StatusCode)
	}

	return nil
}

func (c *Client) do(ctx context.Context, verb, path, rawQuery string, body []byte) (*http.Response, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("reading auth token: %w", err)
	}
	if token == "" {
		return nil, ErrNoToken
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, verb, c.url(path, rawQuery).String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request object: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	return c.client.Do(request)
}

func (c *Client) url(path, rawQuery string) *url.URL {
	u := *c.baseURL
	u.Path = u.Path + path
	u.RawQuery = rawQuery
	return &u
}
