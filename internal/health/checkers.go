package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-miniservice/internal/persistence"
	"github.com/MKhiriev/go-miniservice/internal/restclient"
)

// schemaVersioner is implemented by relational providers.
type schemaVersioner interface {
	SchemaVersion(ctx context.Context) (int64, error)
}

// ProviderChecker pings a persistence provider. For relational providers it
// also reads the migration version, so a database without applied
// migrations is reported unhealthy.
type ProviderChecker struct {
	provider persistence.Provider
}

func NewProviderChecker(p persistence.Provider) (*ProviderChecker, error) {
	if p == nil {
		return nil, ErrNilProvider
	}
	return &ProviderChecker{provider: p}, nil
}

func (c *ProviderChecker) Name() string {
	return "persistence:" + c.provider.Name()
}

func (c *ProviderChecker) Check(ctx context.Context) error {
	if err := c.provider.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", c.provider.Name(), err)
	}

	if v, ok := c.provider.(schemaVersioner); ok {
		if _, err := v.SchemaVersion(ctx); err != nil {
			return fmt.Errorf("schema version %s: %w", c.provider.Name(), err)
		}
	}

	return nil
}

// PeerChecker calls the health endpoint of another miniservice through the
// REST client, so the call carries the tracing headers and retry policy of
// the service.
type PeerChecker struct {
	name   string
	url    string
	client *restclient.Client
}

// NewPeerChecker checks the peer at baseURL. The "/healthz" path is appended
// unless baseURL already ends with it.
func NewPeerChecker(name, baseURL string, client *restclient.Client) (*PeerChecker, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("peer %q: %w", name, ErrEmptyPeerURL)
	}

	url := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(url, Path) {
		url += Path
	}

	return &PeerChecker{name: name, url: url, client: client}, nil
}

func (c *PeerChecker) Name() string {
	return "peer:" + c.name
}

func (c *PeerChecker) Check(ctx context.Context) error {
	report, err := restclient.Get[Report](ctx, c.client, c.url)
	if err != nil {
		return err
	}
	// Peers that answer 200 with an empty body count as healthy.
	if report.Status != "" && report.Status != StatusHealthy {
		return fmt.Errorf("%s: %w", c.name, ErrPeerUnhealthy)
	}
	return nil
}
