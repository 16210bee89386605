package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/campuspantry/portal-sync/internal/model"
)

// GetOrders fetches a page of orders.
func (c *Client) GetOrders(ctx context.Context, opts ListOrdersOptions) (*OrdersResponse, error) {
	query := url.Values{}

	if opts.StudentID != "" {
		query.Set("student_id", opts.StudentID.String())
	}
	if opts.StudentEmail != "" {
		query.Set("student_email", opts.StudentEmail)
	}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var resp OrdersResponse
	if err := c.get(ctx, "/orders", query, &resp); err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	return &resp, nil
}

// GetAllOrders fetches every order matching the options by paginating.
func (c *Client) GetAllOrders(ctx context.Context, opts ListOrdersOptions) ([]model.Order, error) {
	var all []model.Order
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	opts.Page = 1

	for {
		resp, err := c.GetOrders(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Data...)

		if resp.Pagination.TotalPages == 0 || opts.Page >= resp.Pagination.TotalPages {
			break
		}
		opts.Page++
	}

	return all, nil
}

// CreateOrder submits a new order.
func (c *Client) CreateOrder(ctx context.Context, order NewOrder) (*model.Order, error) {
	var resp OrderResponse
	if err := c.post(ctx, "/orders", order, &resp); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &resp.Data, nil
}

// UpdateOrderStatus sets an order's status.
func (c *Client) UpdateOrderStatus(ctx context.Context, id model.ID, status model.Status) (*model.Order, error) {
	body := map[string]string{"status": string(status)}

	var resp OrderResponse
	if err := c.patch(ctx, "/orders/"+id.String()+"/status", body, &resp); err != nil {
		return nil, fmt.Errorf("update order %s status: %w", id, err)
	}
	return &resp.Data, nil
}

// ConfirmOrder marks an order confirmed.
func (c *Client) ConfirmOrder(ctx context.Context, id model.ID) (*model.Order, error) {
	var resp OrderResponse
	if err := c.patch(ctx, "/orders/"+id.String()+"/confirm", nil, &resp); err != nil {
		return nil, fmt.Errorf("confirm order %s: %w", id, err)
	}
	return &resp.Data, nil
}
