package search

import (
	"bytes"
	"context"
	"encoding/json"

	"example.com/jodi/services/whatsapp/config"
	"example.com/jodi/services/whatsapp/internal/models"
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ElasticClient mirrors loaded events into an Elasticsearch index for ad-hoc
// lookup. Documents are keyed by the event dedup key, so re-indexing the
// same event overwrites rather than duplicates.
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return &ElasticClient{enabled: false}, nil
	}

	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client:  client,
		config:  cfg,
		enabled: true,
	}, nil
}

// IndexEvents indexes a batch of loaded events. Failures here are logged and
// reported but must not fail the database load; the caller decides.
func (c *ElasticClient) IndexEvents(ctx context.Context, events []models.GroupEvent) error {
	if c == nil || !c.enabled {
		return nil
	}

	indexName := config.FormatIndex(c.config, c.config.Index)

	for _, event := range events {
		doc, err := json.Marshal(event)
		if err != nil {
			return errors.Wrap(err, "failed to marshal event document")
		}

		req := esapi.IndexRequest{
			Index:      indexName,
			DocumentID: event.DedupKey(),
			Body:       bytes.NewReader(doc),
		}

		res, err := req.Do(ctx, c.client)
		if err != nil {
			return errors.Wrap(err, "failed to execute Elasticsearch index request")
		}
		res.Body.Close()

		if res.IsError() {
			return errors.Errorf("Elasticsearch index error: %s", res.Status())
		}
	}

	log.Info().Int("events", len(events)).Str("index", indexName).Msg("Events mirrored to Elasticsearch")
	return nil
}
