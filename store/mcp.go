package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the read-only query tools on an MCP server.
func (s *Store) RegisterMCP(srv *mcp.Server) {
	s.registerGetOperations(srv)
	s.registerGetOperationsSum(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Store) registerGetOperations(srv *mcp.Server) {
	type req struct {
		Bank         string   `json:"bank"`
		Limit        int      `json:"limit"`
		Offset       int      `json:"offset"`
		DateFrom     string   `json:"date_from"`
		DateTo       string   `json:"date_to"`
		AmountMin    *float64 `json:"amount_min"`
		AmountMax    *float64 `json:"amount_max"`
		TextLike     string   `json:"text_ilike"`
		CategoryLike string   `json:"category_ilike"`
	}

	tool := &mcp.Tool{
		Name:        "get_operations",
		Description: "Read stored bank operations, newest first. Supports date range, amount range, and case-insensitive text/category filters.",
		InputSchema: inputSchema(map[string]any{
			"bank":           map[string]any{"type": "string", "description": "Bank key (vtb, alfa); empty = all"},
			"limit":          map[string]any{"type": "integer", "description": "Max rows, 1-500, default 50"},
			"offset":         map[string]any{"type": "integer", "description": "Rows to skip"},
			"date_from":      map[string]any{"type": "string", "description": "Inclusive lower date bound, YYYY-MM-DD"},
			"date_to":        map[string]any{"type": "string", "description": "Inclusive upper date bound, YYYY-MM-DD"},
			"amount_min":     map[string]any{"type": "number", "description": "Minimum signed amount"},
			"amount_max":     map[string]any{"type": "number", "description": "Maximum signed amount"},
			"text_ilike":     map[string]any{"type": "string", "description": "Substring of the operation text"},
			"category_ilike": map[string]any{"type": "string", "description": "Substring of the category"},
		}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, r *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		ops, err := s.ListOperations(ctx, Filter{
			Bank:         p.Bank,
			DateFrom:     p.DateFrom,
			DateTo:       p.DateTo,
			AmountMin:    p.AmountMin,
			AmountMax:    p.AmountMax,
			TextLike:     p.TextLike,
			CategoryLike: p.CategoryLike,
			Limit:        p.Limit,
			Offset:       p.Offset,
		})
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(map[string]any{"operations": ops, "count": len(ops)})
	})
}

func (s *Store) registerGetOperationsSum(srv *mcp.Server) {
	type req struct {
		Bank        string `json:"bank"`
		Granularity string `json:"granularity"`
		DateFrom    string `json:"date_from"`
		DateTo      string `json:"date_to"`
		Limit       int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "get_operations_sum",
		Description: "Aggregate signed operation amounts per day, week, month, or year, newest bucket first.",
		InputSchema: inputSchema(map[string]any{
			"bank":        map[string]any{"type": "string", "description": "Bank key; empty = all"},
			"granularity": map[string]any{"type": "string", "description": "day (default), week, month, or year"},
			"date_from":   map[string]any{"type": "string", "description": "Inclusive lower date bound, YYYY-MM-DD"},
			"date_to":     map[string]any{"type": "string", "description": "Inclusive upper date bound, YYYY-MM-DD"},
			"limit":       map[string]any{"type": "integer", "description": "Max buckets, default 200"},
		}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, r *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		sums, err := s.SumByPeriod(ctx, p.Granularity, p.Bank, p.DateFrom, p.DateTo, p.Limit)
		if err != nil {
			return toolError(err), nil
		}
		return toolJSON(map[string]any{"periods": sums, "count": len(sums)})
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(errors.New(err.Error()))
	return &res
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(fmt.Errorf("marshal: %w", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}
