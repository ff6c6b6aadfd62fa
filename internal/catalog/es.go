package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
)

type ESConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

// ESCatalog reads products from an Elasticsearch index whose documents are
// models.Product.
type ESCatalog struct {
	Client *elasticsearch.Client
	Index  string
}

func NewESCatalog(ctx context.Context, cfg ESConfig) (*ESCatalog, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.es")
	l.Info("es_connecting", "url", cfg.URL, "user", cfg.User)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("es client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es info: %s: %s", res.Status(), body)
	}

	l.Info("es_connected")
	return &ESCatalog{Client: client, Index: cfg.Index}, nil
}

func (c *ESCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	res, err := c.Client.Get(c.Index, id, c.Client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("es get: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("es get: %s", res.Status())
	}

	var doc struct {
		ID     string         `json:"_id"`
		Found  bool           `json:"found"`
		Source models.Product `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("es get: decode: %w", err)
	}
	if !doc.Found {
		return nil, ErrNotFound
	}
	if doc.Source.ID == "" {
		doc.Source.ID = doc.ID
	}
	return &doc.Source, nil
}

func (c *ESCatalog) Search(ctx context.Context, query string, from, size int) (int64, []models.Product, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "brand", "tags"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("es search: encode: %w", err)
	}

	res, err := c.Client.Search(
		c.Client.Search.WithContext(ctx),
		c.Client.Search.WithIndex(c.Index),
		c.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("es search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("es search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string         `json:"_id"`
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("es search: decode: %w", err)
	}

	prods := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		prods[i] = hit.Source
		if prods[i].ID == "" {
			prods[i].ID = hit.ID
		}
	}
	return r.Hits.Total.Value, prods, nil
}
