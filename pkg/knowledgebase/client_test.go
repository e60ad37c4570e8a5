package knowledgebase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/retry"
)

const isbnPropertyResponse = `{
	"entities": {
		"P957": {
			"id": "P957",
			"type": "property",
			"datatype": "external-id",
			"labels": {"en": {"language": "en", "value": "ISBN-10"}},
			"descriptions": {"en": {"language": "en", "value": "former identifier for a book"}},
			"claims": {
				"P2302": [
					{
						"rank": "normal",
						"mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q21502404"}}},
						"qualifiers": {
							"P1793": [{"snaktype": "value", "datavalue": {"type": "string", "value": "\\d{9}[\\dX]"}}],
							"P6607": [{"snaktype": "value", "datavalue": {"type": "monolingualtext", "value": {"text": "ten digits", "language": "en"}}}]
						}
					},
					{
						"rank": "normal",
						"mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q21510860"}}},
						"qualifiers": {
							"P2313": [{"snaktype": "value", "datavalue": {"type": "quantity", "value": {"amount": "+0", "unit": "1"}}}],
							"P2312": [{"snaktype": "value", "datavalue": {"type": "quantity", "value": {"amount": "+9999999999", "unit": "1"}}}]
						}
					},
					{
						"rank": "normal",
						"mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q21510859"}}},
						"qualifiers": {
							"P2305": [
								{"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q571"}}},
								{"snaktype": "somevalue"}
							]
						}
					},
					{
						"rank": "normal",
						"mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q19474404"}}}
					},
					{
						"rank": "deprecated",
						"mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q52004125"}}}
					},
					{
						"rank": "normal",
						"mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q53869507"}}}
					}
				]
			}
		}
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL:   server.URL,
		APIPath:   "/w/api.php",
		UserAgent: "ekaya-mapper-test",
		Timeout:   time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	client.retryCfg = &retry.Config{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
	return client
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "not a url", APIPath: "/w/api.php"}, zap.NewNop())
	assert.Error(t, err)
}

func TestClient_GetProperty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "wbgetentities", r.URL.Query().Get("action"))
		assert.Equal(t, "P957", r.URL.Query().Get("ids"))
		assert.Equal(t, "en", r.URL.Query().Get("languages"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "ekaya-mapper-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(isbnPropertyResponse))
	})

	prop, err := client.GetProperty(context.Background(), " p957 ", "en")
	require.NoError(t, err)

	assert.Equal(t, "P957", prop.ID)
	assert.Equal(t, "ISBN-10", prop.Label)
	assert.Equal(t, "former identifier for a book", prop.Description)
	assert.Equal(t, models.ValueTypeExternalID, prop.DataType)
	assert.Equal(t, models.PropertyReference{ID: "P957", Label: "ISBN-10", DataType: models.ValueTypeExternalID}, prop.Reference())

	require.Len(t, prop.Constraints, 5, "deprecated constraint is skipped")

	format := prop.Constraints[0]
	assert.Equal(t, models.ConstraintFormat, format.Type)
	assert.Equal(t, "Q21502404", format.ConstraintItemID)
	assert.Equal(t, `\d{9}[\dX]`, format.Param(models.ConstraintParamPattern))
	assert.Equal(t, "ten digits", format.Description)

	rng := prop.Constraints[1]
	assert.Equal(t, models.ConstraintRange, rng.Type)
	assert.Equal(t, "0", rng.Param(models.ConstraintParamMinimum))
	assert.Equal(t, "9999999999", rng.Param(models.ConstraintParamMaximum))

	oneOf := prop.Constraints[2]
	assert.Equal(t, models.ConstraintOneOf, oneOf.Type)
	assert.Equal(t, []string{"Q571"}, oneOf.Parameters[models.ConstraintParamValues], "somevalue snaks carry no value")

	assert.Equal(t, models.ConstraintSingleValue, prop.Constraints[3].Type)
	assert.Nil(t, prop.Constraints[3].Parameters)

	assert.Equal(t, models.ConstraintOther, prop.Constraints[4].Type)
	assert.Equal(t, "Q53869507", prop.Constraints[4].ConstraintItemID)
}

func TestClient_GetProperty_Missing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities": {"P999999": {"id": "P999999", "missing": true}}}`))
	})

	_, err := client.GetProperty(context.Background(), "P999999", "en")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestClient_GetProperty_InvalidID(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	for _, id := range []string{"", "Q5", "P", "Pabc"} {
		_, err := client.GetProperty(context.Background(), id, "en")
		assert.Error(t, err, id)
	}
	assert.Zero(t, calls.Load(), "invalid ids never reach the server")
}

func TestClient_GetProperty_APIError(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"error": {"code": "no-such-entity", "info": "Could not find an entity"}}`))
	})

	_, err := client.GetProperty(context.Background(), "P1", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-entity")
	assert.Equal(t, int32(1), calls.Load(), "API errors are not retried")
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			_, _ = w.Write([]byte(`{"error": {"code": "maxlag", "info": "Waiting for replicas"}}`))
		default:
			_, _ = w.Write([]byte(isbnPropertyResponse))
		}
	})

	prop, err := client.GetProperty(context.Background(), "P957", "en")
	require.NoError(t, err)
	assert.Equal(t, "ISBN-10", prop.Label)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.GetProperty(context.Background(), "P957", "en")
	var statusErr *retry.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SearchProperties(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "wbsearchentities", q.Get("action"))
		assert.Equal(t, "birth", q.Get("search"))
		assert.Equal(t, "property", q.Get("type"))
		assert.Equal(t, "10", q.Get("limit"))
		_, _ = w.Write([]byte(`{"search": [
			{"id": "P569", "label": "date of birth", "description": "date on which the subject was born"},
			{"id": "P19", "label": "place of birth"}
		]}`))
	})

	results, err := client.SearchProperties(context.Background(), "birth", "en", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{ID: "P569", Label: "date of birth", Description: "date on which the subject was born"}, results[0])
	assert.Equal(t, "P19", results[1].ID)
}

func TestClient_SearchProperties_EmptyQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("empty query should not call the server")
	})

	results, err := client.SearchProperties(context.Background(), "  ", "en", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}
