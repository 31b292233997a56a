package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

const (
	defaultInfoTimeout = 10 * time.Second
	maxInfoBytes       = 1 << 20
)

// InfoClient fetches the server metadata blob from /filewatch/_info.
type InfoClient struct {
	client *http.Client
}

// NewInfoClient creates a client with the given request timeout. A zero
// timeout uses the default.
func NewInfoClient(timeout time.Duration) *InfoClient {
	if timeout <= 0 {
		timeout = defaultInfoTimeout
	}
	return &InfoClient{
		client: &http.Client{Timeout: timeout},
	}
}

// ServerInfo is the raw info document. It is passed through unmodified.
type ServerInfo struct {
	URL string
	Raw string
}

// Indented returns Raw pretty-printed when it is valid JSON, otherwise Raw.
func (s ServerInfo) Indented() string {
	var out json.RawMessage
	if err := json.Unmarshal([]byte(s.Raw), &out); err != nil {
		return s.Raw
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return s.Raw
	}
	return string(b)
}

// Fetch requests the info document for target.
func (c *InfoClient) Fetch(ctx context.Context, target Target) (*ServerInfo, error) {
	u := target.InfoURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build info request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", u)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", u)
	}
	if resp.StatusCode >= 300 {
		return nil, errors.Errorf("GET %s: %d %s", InfoPath, resp.StatusCode, string(body))
	}
	return &ServerInfo{URL: u, Raw: string(body)}, nil
}

// InfoMsg delivers the result of an info fetch.
type InfoMsg struct {
	Info *ServerInfo
	Err  error
}

// FetchCmd returns a Bubble Tea command that fetches the info document.
func (c *InfoClient) FetchCmd(ctx context.Context, target Target) tea.Cmd {
	return func() tea.Msg {
		info, err := c.Fetch(ctx, target)
		return InfoMsg{Info: info, Err: err}
	}
}
