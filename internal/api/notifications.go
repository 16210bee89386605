package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/campuspantry/portal-sync/internal/model"
)

// GetNotifications fetches the identity's notifications.
func (c *Client) GetNotifications(ctx context.Context, ident model.Identity) ([]model.Notification, error) {
	query := url.Values{}
	if ident.InternalID != "" {
		query.Set("student_id", ident.InternalID.String())
	}
	if ident.Email != "" {
		query.Set("student_email", ident.Email)
	}

	var resp NotificationsResponse
	if err := c.get(ctx, "/notifications", query, &resp); err != nil {
		return nil, fmt.Errorf("get notifications: %w", err)
	}

	return resp.Data, nil
}

// UpdateNotification sets a notification's read flag.
func (c *Client) UpdateNotification(ctx context.Context, id model.ID, isRead bool) error {
	body := map[string]bool{"is_read": isRead}
	if err := c.patch(ctx, "/notifications/"+id.String(), body, nil); err != nil {
		return fmt.Errorf("update notification %s: %w", id, err)
	}
	return nil
}

// DeleteNotification removes a notification server-side.
func (c *Client) DeleteNotification(ctx context.Context, id model.ID) error {
	if err := c.delete(ctx, "/notifications/"+id.String()); err != nil {
		return fmt.Errorf("delete notification %s: %w", id, err)
	}
	return nil
}
