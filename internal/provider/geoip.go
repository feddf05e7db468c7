package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/trackshield/platform/internal/domain"
)

// GeoLookup resolves an IP address to a location snapshot. Implementations
// return nil on any failure; ingestion proceeds without a geo snapshot.
type GeoLookup interface {
	Resolve(ctx context.Context, ip string) *domain.GeoLocation
}

// GeoIPClient resolves IPs against an ip-api style JSON endpoint.
type GeoIPClient struct {
	baseURL string
	logger  *slog.Logger
	client  *http.Client
}

// NewGeoIPClient creates a geo lookup client.
func NewGeoIPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *GeoIPClient {
	return &GeoIPClient{
		baseURL: baseURL,
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
	}
}

// Resolve looks up the IP. Returns nil on any transport, status or decode
// failure; the caller treats a missing snapshot as "no geo data".
func (c *GeoIPClient) Resolve(ctx context.Context, ip string) *domain.GeoLocation {
	loc, err := c.fetch(ctx, ip)
	if err != nil {
		c.logger.Warn("geo lookup failed", "ip", ip, "error", err)
		return nil
	}
	return loc
}

func (c *GeoIPClient) fetch(ctx context.Context, ip string) (*domain.GeoLocation, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status,country,city,regionName,zip,lat,lon,isp,timezone,proxy,hosting",
		c.baseURL, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned %d", resp.StatusCode)
	}

	var body struct {
		Status     string  `json:"status"`
		Country    string  `json:"country"`
		City       string  `json:"city"`
		RegionName string  `json:"regionName"`
		Zip        string  `json:"zip"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		ISP        string  `json:"isp"`
		Timezone   string  `json:"timezone"`
		Proxy      bool    `json:"proxy"`
		Hosting    bool    `json:"hosting"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("lookup status %q", body.Status)
	}

	return &domain.GeoLocation{
		Country:   body.Country,
		City:      body.City,
		Region:    body.RegionName,
		Postal:    body.Zip,
		Latitude:  body.Lat,
		Longitude: body.Lon,
		ISP:       body.ISP,
		Timezone:  body.Timezone,
		IsVPN:     body.Proxy || body.Hosting,
	}, nil
}
