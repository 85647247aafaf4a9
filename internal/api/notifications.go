package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/notification-center/internal/model"
)

// ListResult holds one page of notifications plus the server-side counters
// that accompany it. UnreadCount is the authoritative total across all
// pages, not just the returned slice.
type ListResult struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
	Total         int                  `json:"total"`
	Page          int                  `json:"page"`
	Size          int                  `json:"size"`
}

// idsPayload is the request body for batch operations.
type idsPayload struct {
	IDs []string `json:"ids"`
}

// List retrieves a page of notifications matching the filter.
func (c *Client) List(ctx context.Context, filter model.ListFilter) (*ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(filter.Page))
	q.Set("size", strconv.Itoa(filter.Size))
	if filter.Type != nil {
		q.Set("type", string(*filter.Type))
	}
	if filter.UnreadOnly {
		q.Set("unread_only", "true")
	}
	if filter.SortBy != "" {
		q.Set("sort_by", filter.SortBy)
	}
	if filter.SortOrder != "" {
		q.Set("sort_order", filter.SortOrder)
	}

	var result ListResult
	if err := c.get(ctx, "/api/notifications?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return &result, nil
}

// Get retrieves a single notification by id.
func (c *Client) Get(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := c.get(ctx, "/api/notifications/"+url.PathEscape(id), &n); err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return &n, nil
}

// MarkRead marks a single notification as read on the server.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := "/api/notifications/" + url.PathEscape(id) + "/read"
	if err := c.put(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// BatchMarkRead marks multiple notifications as read on the server.
func (c *Client) BatchMarkRead(ctx context.Context, ids []string) error {
	if err := c.put(ctx, "/api/notifications/read", idsPayload{IDs: ids}, nil); err != nil {
		return fmt.Errorf("batch marking %d notifications read: %w", len(ids), err)
	}
	return nil
}

// MarkAllRead marks every notification for the subject as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.put(ctx, "/api/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Delete removes a single notification on the server.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.delete(ctx, "/api/notifications/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// BatchDelete removes multiple notifications on the server.
func (c *Client) BatchDelete(ctx context.Context, ids []string) error {
	if err := c.delete(ctx, "/api/notifications", idsPayload{IDs: ids}, nil); err != nil {
		return fmt.Errorf("batch deleting %d notifications: %w", len(ids), err)
	}
	return nil
}

// ClearAll removes every notification for the subject.
func (c *Client) ClearAll(ctx context.Context) error {
	if err := c.delete(ctx, "/api/notifications/all", nil, nil); err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}
	return nil
}

// UnreadCount fetches the authoritative unread total for the subject.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := c.get(ctx, "/api/notifications/unread-count", &result); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	return result.Count, nil
}
