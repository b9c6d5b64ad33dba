package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fawkes-platform/smart-alerting/pkg/logger"
)

// EntityCatalog resolves a service name to its owning team.
type EntityCatalog interface {
	OwnerOf(ctx context.Context, service string) (string, error)
}

// BackstageCatalog looks owners up in the Backstage software catalog using
// the default-namespace component entity for the service.
type BackstageCatalog struct {
	client *resty.Client
	logger logger.Logger
}

func NewBackstageCatalog(baseURL string, log logger.Logger) *BackstageCatalog {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetHeader("Accept", "application/json")
	return &BackstageCatalog{client: client, logger: log}
}

func (c *BackstageCatalog) OwnerOf(ctx context.Context, service string) (string, error) {
	var entity struct {
		Spec struct {
			Owner string `json:"owner"`
		} `json:"spec"`
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&entity).
		SetPathParam("name", service).
		Get("/api/catalog/entities/by-name/component/default/{name}")
	if err != nil {
		return "", fmt.Errorf("query catalog for %s: %w", service, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("catalog returned %d for %s", resp.StatusCode(), service)
	}
	return entity.Spec.Owner, nil
}
