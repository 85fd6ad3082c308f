// Package elastic sends request documents to an Elasticsearch 6.x or 7.x
// cluster, translating the legacy filter and facet sections on the way.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/kailas-cloud/lazysearch/internal/domain/search/request"
	"github.com/kailas-cloud/lazysearch/internal/domain/search/result"
)

// Config holds cluster connection parameters.
type Config struct {
	Addrs    []string
	Username string
	Password string
	// HTTP overrides the round tripper (tests, custom TLS).
	HTTP http.RoundTripper
}

// Error is a non-2xx engine response.
type Error struct {
	Status int
	Type   string
	Reason string
}

func (e *Error) Error() string {
	switch {
	case e.Type == "" && e.Reason == "":
		return fmt.Sprintf("elasticsearch: status %d", e.Status)
	case e.Type == "":
		return fmt.Sprintf("elasticsearch: status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("elasticsearch: status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// Transport executes searches through the official client.
type Transport struct {
	es *elasticsearch.Client
}

// New creates a transport for the cluster in cfg.
func New(cfg Config) (*Transport, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.HTTP,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Transport{es: es}, nil
}

// Execute renders doc in the 6.x/7.x query DSL, posts it to
// /{index}/{docType}/_search and reads the response back into the legacy
// response shape.
func (t *Transport) Execute(
	ctx context.Context, doc *request.Document, index, docType string,
) (*result.Response, error) {
	translated, err := translate(doc)
	if err != nil {
		return nil, fmt.Errorf("translate request: %w", err)
	}
	body, err := json.Marshal(translated.doc)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		t.es.Search.WithContext(ctx),
		t.es.Search.WithIndex(index),
		t.es.Search.WithBody(bytes.NewReader(body)),
	}
	if docType != "" {
		opts = append(opts, t.es.Search.WithDocumentType(docType))
	}

	res, err := t.es.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("search %s/%s: %w", index, docType, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, decodeError(res.StatusCode, res.Body)
	}

	var raw searchResponse
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return translated.convert(&raw)
}

// Ping checks that the cluster answers.
func (t *Transport) Ping(ctx context.Context) error {
	res, err := t.es.Ping(t.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeError(res.StatusCode, res.Body)
	}
	return nil
}

func decodeError(status int, body io.Reader) error {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	e := &Error{Status: status}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || len(payload.Error) == 0 {
		return e
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload.Error, &detail); err != nil {
		// Older clusters report the error as a plain string.
		var s string
		if json.Unmarshal(payload.Error, &s) == nil {
			e.Reason = s
		}
		return e
	}
	e.Type, e.Reason = detail.Type, detail.Reason
	return e
}
