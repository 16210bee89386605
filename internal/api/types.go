package api

import "github.com/campuspantry/portal-sync/internal/model"

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// OrdersResponse from GET /orders.
type OrdersResponse struct {
	Success    bool          `json:"success"`
	Data       []model.Order `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// OrderResponse from POST /orders and the PATCH endpoints.
type OrderResponse struct {
	Success bool        `json:"success"`
	Data    model.Order `json:"data"`
}

// NotificationsResponse from GET /notifications.
type NotificationsResponse struct {
	Success bool                 `json:"success"`
	Data    []model.Notification `json:"data"`
}

// NewOrder is the POST /orders request body.
type NewOrder struct {
	StudentID    model.ID          `json:"student_id"`
	StudentEmail string            `json:"student_email"`
	Items        []model.OrderItem `json:"items"`
}

// ListOrdersOptions filters GET /orders. StudentID and StudentEmail are sent
// together; the server OR-matches them.
type ListOrdersOptions struct {
	StudentID    model.ID
	StudentEmail string
	Status       model.Status
	Page         int
	Limit        int
}
