// Package knowledgebase provides a client for the Wikibase action API the
// schema mappings target.
package knowledgebase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/logging"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for a knowledge-base response.
const DefaultTimeout = 15 * time.Second

// DefaultSearchLimit bounds property search results.
const DefaultSearchLimit = 10

// Property is a knowledge-base property with its declared constraints.
type Property struct {
	ID          string                      `json:"id"`
	Label       string                      `json:"label"`
	Description string                      `json:"description,omitempty"`
	DataType    models.SchemaValueType      `json:"data_type"`
	Constraints []models.PropertyConstraint `json:"constraints,omitempty"`
}

// Reference returns the property as it is stored in a statement.
func (p *Property) Reference() models.PropertyReference {
	return models.PropertyReference{ID: p.ID, Label: p.Label, DataType: p.DataType}
}

// SearchResult is one hit of a property search.
type SearchResult struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	APIPath   string
	UserAgent string
	Timeout   time.Duration
}

// Client provides access to a Wikibase action API.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewClient creates a knowledge-base client.
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	endpoint, err := buildURL(opts.BaseURL, opts.APIPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge base URL: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:  endpoint,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("knowledgebase"),
	}, nil
}

// GetProperty fetches a property's label, datatype and constraints.
// A property the knowledge base does not know yields apperrors.ErrNotFound.
func (c *Client) GetProperty(ctx context.Context, id, lang string) (*Property, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !isPropertyID(id) {
		return nil, fmt.Errorf("%w: property id %q", apperrors.ErrInvalidInput, id)
	}

	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", id)
	params.Set("props", "labels|descriptions|datatype|claims")
	params.Set("languages", lang)
	params.Set("languagefallback", "1")

	var response struct {
		Entities map[string]entity `json:"entities"`
	}
	if err := c.get(ctx, params, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch property %s: %w", id, err)
	}

	e, ok := response.Entities[id]
	if !ok || e.Missing != nil {
		return nil, fmt.Errorf("property %s: %w", id, apperrors.ErrNotFound)
	}

	prop := &Property{
		ID:          e.ID,
		Label:       e.Labels[lang].Value,
		Description: e.Descriptions[lang].Value,
		DataType:    models.SchemaValueType(e.DataType),
		Constraints: parseConstraints(e.Claims[propertyConstraint]),
	}

	c.logger.Debug("Fetched property",
		zap.String("property_id", prop.ID),
		zap.String("data_type", string(prop.DataType)),
		zap.Int("constraints", len(prop.Constraints)))

	return prop, nil
}

// SearchProperties searches property labels and aliases.
func (c *Client) SearchProperties(ctx context.Context, query, lang string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("search", query)
	params.Set("type", "property")
	params.Set("language", lang)
	params.Set("uselang", lang)
	params.Set("limit", strconv.Itoa(limit))

	var response struct {
		Search []SearchResult `json:"search"`
	}
	if err := c.get(ctx, params, &response); err != nil {
		return nil, fmt.Errorf("failed to search properties: %w", err)
	}
	if response.Search == nil {
		return []SearchResult{}, nil
	}
	return response.Search, nil
}

// apiError is the error envelope of the action API.
type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// IsRetryable reports whether the API asked the client to back off.
func (e *apiError) IsRetryable() bool {
	return e.Code == "maxlag" || e.Code == "ratelimited"
}

// get performs a GET against the action API with retries on transient
// failures and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	endpoint := c.endpoint + "?" + params.Encode()

	return retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("Knowledge base request failed",
				zap.String("action", params.Get("action")),
				zap.String("error", logging.SanitizeError(err)))
			return fmt.Errorf("failed to call knowledge base: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Error("Knowledge base returned error",
				zap.Int("status", resp.StatusCode),
				zap.String("body", logging.TruncateString(string(body), logging.MaxBodyLogLength)))
			return &retry.StatusError{
				StatusCode: resp.StatusCode,
				Body:       logging.TruncateString(string(body), logging.MaxBodyLogLength),
			}
		}

		var envelope struct {
			Error *apiError `json:"error"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if envelope.Error != nil {
			return envelope.Error
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}

func isPropertyID(id string) bool {
	if len(id) < 2 || id[0] != 'P' {
		return false
	}
	_, err := strconv.ParseUint(id[1:], 10, 64)
	return err == nil
}
