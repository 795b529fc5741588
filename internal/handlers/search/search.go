package search

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/models"
)

// SearchHandler forwards catalog searches to elasticsearch verbatim. No
// business logic lives here.
type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return apperr.Validation("query parameter q is required")
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	res, err := h.ES.Search(
		h.ES.Search.WithContext(c.Request().Context()),
		h.ES.Search.WithIndex(h.Index),
		h.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return apperr.External("search unavailable", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperr.External("search failed: "+res.Status(), nil)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Item `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return apperr.External("search response malformed", err)
	}

	items := make([]models.Item, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		items = append(items, hit.Source)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"total": r.Hits.Total.Value,
		"items": items,
	})
}
