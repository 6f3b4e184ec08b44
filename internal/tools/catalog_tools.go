package tools

import (
	"context"
	"fmt"

	"github.com/ahmadsadek12/convoyd/internal/catalog"
)

// searchCatalogTool wraps catalog.Store.SearchItems as the read-only "look
// something up before recommending it" tool every conversation starts from.
type searchCatalogTool struct {
	catalog *catalog.Store
}

// NewSearchCatalogTool builds the search_catalog tool.
func NewSearchCatalogTool(catalogStore *catalog.Store) Tool {
	return &searchCatalogTool{catalog: catalogStore}
}

func (t *searchCatalogTool) Name() string { return "search_catalog" }

func (t *searchCatalogTool) Description() string {
	return "Search the business's menu/catalog for items matching a free-text query. Returns name, price, and availability."
}

func (t *searchCatalogTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Free-text search term, e.g. a dish name or category.",
			},
		},
		"required": []string{"query"},
	}
}

func (t *searchCatalogTool) Permission() Permission { return ReadOnly }

func (t *searchCatalogTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	query, _ := args["query"].(string)
	if query == "" {
		return Fail("INVALID_ARGUMENTS", "query is required"), nil
	}

	items, err := t.catalog.SearchItems(ctx, tenant.OwnerUserID, query)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}

	results := make([]map[string]any, 0, len(items))
	for _, it := range items {
		results = append(results, map[string]any{
			"item_id":      it.ID,
			"name":         it.Name,
			"price":        it.Price,
			"availability": string(it.Availability),
		})
	}
	return Ok(fmt.Sprintf("found %d item(s)", len(results)), map[string]any{"items": results}), nil
}

// getItemTool wraps catalog.Store.GetItem for when the LLM already has an
// item id (e.g. from a prior search result) and wants its fresh details.
type getItemTool struct {
	catalog *catalog.Store
}

// NewGetItemTool builds the get_item tool.
func NewGetItemTool(catalogStore *catalog.Store) Tool {
	return &getItemTool{catalog: catalogStore}
}

func (t *getItemTool) Name() string { return "get_item" }

func (t *getItemTool) Description() string {
	return "Fetch the current price, availability, and description of one catalog item by id."
}

func (t *getItemTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"item_id": map[string]any{"type": "string", "description": "The item's id."},
		},
		"required": []string{"item_id"},
	}
}

func (t *getItemTool) Permission() Permission { return ReadOnly }

func (t *getItemTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	tenant, ok := TenantFromContext(ctx)
	if !ok {
		return Fail("INTERNAL_ERROR", "missing tenant context"), nil
	}
	itemID, _ := args["item_id"].(string)
	if itemID == "" {
		return Fail("INVALID_ARGUMENTS", "item_id is required"), nil
	}

	item, err := t.catalog.GetItem(ctx, tenant.BusinessID, itemID)
	if err != nil {
		return Fail("NOT_FOUND", fmt.Sprintf("item %s not found", itemID)), nil
	}
	return Ok(item.Name, map[string]any{
		"item_id":      item.ID,
		"name":         item.Name,
		"price":        item.Price,
		"availability": string(item.Availability),
		"visible":      item.Visible(),
	}), nil
}
