package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/velmark/shopapi/internal/models"
)

// ItemIndex keeps the search index in step with catalog mutations. A nil
// receiver is a no-op so the API can run without elasticsearch (tests, local).
type ItemIndex struct {
	Client *elasticsearch.Client
	Name   string
}

func (ix *ItemIndex) Put(ctx context.Context, item *models.Item) error {
	if ix == nil || ix.Client == nil {
		return nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("es: marshal item: %w", err)
	}
	res, err := ix.Client.Index(
		ix.Name,
		bytes.NewReader(data),
		ix.Client.Index.WithDocumentID(strconv.FormatUint(uint64(item.ID), 10)),
		ix.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("es: index item: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es: index item: %s", res.Status())
	}
	return nil
}

func (ix *ItemIndex) Delete(ctx context.Context, itemID uint) error {
	if ix == nil || ix.Client == nil {
		return nil
	}
	res, err := ix.Client.Delete(
		ix.Name,
		strconv.FormatUint(uint64(itemID), 10),
		ix.Client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("es: delete item: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("es: delete item: %s", res.Status())
	}
	return nil
}
