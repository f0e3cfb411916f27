package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Labels returned instead of a city when no lookup is possible.
const (
	LocalNetwork    = "Local Network"
	UnknownLocation = "Unknown Location"
)

// Client resolves client IPs to a human-readable location through an
// ip-api.com compatible service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
	log     *zap.Logger
}

// New creates a client with a short timeout; lookups must not hold up a login.
func New(baseURL string, skip bool, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 3 * time.Second,
		},
		log: log,
	}
}

// Locate returns "City, Country" for ip. It never fails: private and loopback addresses
// map to LocalNetwork, and anything that cannot be resolved maps to UnknownLocation.
func (c *Client) Locate(ctx context.Context, ip string) string {
	if IsLocal(ip) {
		return LocalNetwork
	}
	if c.Skip || c.BaseURL == "" {
		return UnknownLocation
	}
	loc, err := c.lookup(ctx, ip)
	if err != nil {
		c.log.Debug("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return UnknownLocation
	}
	return loc
}

func (c *Client) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/json/"+ip, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("geo service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("geo service error %s", resp.Status)
	}

	var out struct {
		Status  string `json:"status"`
		City    string `json:"city"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Status != "" && out.Status != "success" {
		return "", fmt.Errorf("geo service status %q", out.Status)
	}

	parts := make([]string, 0, 2)
	if out.City != "" {
		parts = append(parts, out.City)
	}
	if out.Country != "" {
		parts = append(parts, out.Country)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty location")
	}
	return strings.Join(parts, ", "), nil
}

// IsLocal reports whether ip is empty, unparsable, loopback, private or link-local.
func IsLocal(ip string) bool {
	if ip == "" || ip == "unknown" {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() || parsed.IsUnspecified()
}
