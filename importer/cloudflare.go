package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudflare/cloudflare-go"
)

var ErrMissingToken = errors.New("missing Cloudflare API token")

// Exporter is the part of the Cloudflare API a zone export needs.
type Exporter interface {
	ZoneIDByName(zoneName string) (string, error)
	ZoneExport(ctx context.Context, zoneID string) (string, error)
}

// CloudflareSource downloads zones as BIND files from Cloudflare. Its
// exports mark "automatic" TTLs as 1, see WithAutoTTL.
type CloudflareSource struct {
	token   string
	baseURL string
	api     Exporter
}

func WithCFToken(token string) func(*CloudflareSource) {
	return func(s *CloudflareSource) { s.token = token }
}

// WithCFBaseURL points the client at another API endpoint.
func WithCFBaseURL(url string) func(*CloudflareSource) {
	return func(s *CloudflareSource) { s.baseURL = url }
}

// WithCFExporter replaces the Cloudflare client.
func WithCFExporter(api Exporter) func(*CloudflareSource) {
	return func(s *CloudflareSource) { s.api = api }
}

func NewCloudflareSource(options ...func(*CloudflareSource)) *CloudflareSource {
	source := &CloudflareSource{}
	for _, fn := range options {
		fn(source)
	}
	return source
}

func (s *CloudflareSource) client() (Exporter, error) {
	if s.api != nil {
		return s.api, nil
	}
	if s.token == "" {
		return nil, ErrMissingToken
	}
	options := []cloudflare.Option{cloudflare.UserAgent("zoneport")}
	if s.baseURL != "" {
		options = append(options, cloudflare.BaseURL(s.baseURL))
	}
	api, err := cloudflare.NewWithAPIToken(s.token, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}
	return api, nil
}

// Export returns the BIND export of the named zone.
func (s *CloudflareSource) Export(ctx context.Context, zoneName string) (string, error) {
	api, err := s.client()
	if err != nil {
		return "", err
	}
	zoneID, err := api.ZoneIDByName(zoneName)
	if err != nil {
		return "", fmt.Errorf("failed to look up Cloudflare zone %s: %w", zoneName, err)
	}
	content, err := api.ZoneExport(ctx, zoneID)
	if err != nil {
		return "", fmt.Errorf("failed to export Cloudflare zone %s: %w", zoneName, err)
	}
	return content, nil
}
