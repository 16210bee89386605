package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campuspantry/portal-sync/internal/model"
)

func TestGetOrders_QueryScoping(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(OrdersResponse{
			Success:    true,
			Data:       []model.Order{{ID: "o1", OrderNumber: "ORD-100"}},
			Pagination: Pagination{Page: 1, TotalPages: 1},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.GetOrders(context.Background(), ListOrdersOptions{
		StudentID:    "u1",
		StudentEmail: "s@x.edu",
		Limit:        50,
	})
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}

	// Both identity representations are sent; the server ORs them.
	if gotQuery["student_id"] != "u1" {
		t.Errorf("student_id = %q, want u1", gotQuery["student_id"])
	}
	if gotQuery["student_email"] != "s@x.edu" {
		t.Errorf("student_email = %q, want s@x.edu", gotQuery["student_email"])
	}
	if gotQuery["limit"] != "50" {
		t.Errorf("limit = %q, want 50", gotQuery["limit"])
	}

	if len(resp.Data) != 1 || resp.Data[0].ID != "o1" {
		t.Errorf("unexpected data: %+v", resp.Data)
	}
}

func TestGetAllOrders_Paginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		resp := OrdersResponse{Success: true, Pagination: Pagination{Limit: 1, Total: 3, TotalPages: 3}}
		switch page {
		case "1":
			resp.Data = []model.Order{{ID: "o1"}}
			resp.Pagination.Page = 1
		case "2":
			resp.Data = []model.Order{{ID: "o2"}}
			resp.Pagination.Page = 2
		case "3":
			resp.Data = []model.Order{{ID: "o3"}}
			resp.Pagination.Page = 3
		default:
			t.Errorf("unexpected page %q", page)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	orders, err := c.GetAllOrders(context.Background(), ListOrdersOptions{StudentID: "u1", Limit: 1})
	if err != nil {
		t.Fatalf("GetAllOrders failed: %v", err)
	}

	if len(orders) != 3 {
		t.Fatalf("len(orders) = %d, want 3", len(orders))
	}
	if orders[0].ID != "o1" || orders[2].ID != "o3" {
		t.Errorf("unexpected order: %+v", orders)
	}
}

func TestGet_RetriesOn500(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(OrdersResponse{Success: true, Pagination: Pagination{TotalPages: 1, Page: 1}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetries(2, 10*time.Millisecond))
	if _, err := c.GetOrders(context.Background(), ListOrdersOptions{}); err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestGet_NoRetryOn404(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetries(3, 10*time.Millisecond))
	_, err := c.GetOrders(context.Background(), ListOrdersOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestUpdateNotification_SendsPatch(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("tok"))
	if err := c.UpdateNotification(context.Background(), "n1", true); err != nil {
		t.Fatalf("UpdateNotification failed: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotPath != "/notifications/n1" {
		t.Errorf("path = %s, want /notifications/n1", gotPath)
	}
	if !gotBody["is_read"] {
		t.Error("is_read not set in body")
	}
}

func TestConfirmOrder_Path(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/o1/confirm" || r.Method != http.MethodPatch {
			t.Errorf("got %s %s, want PATCH /orders/o1/confirm", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(OrderResponse{
			Success: true,
			Data:    model.Order{ID: "o1", Status: model.StatusConfirmed},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	o, err := c.ConfirmOrder(context.Background(), "o1")
	if err != nil {
		t.Fatalf("ConfirmOrder failed: %v", err)
	}
	if o.Status != model.StatusConfirmed {
		t.Errorf("Status = %s, want confirmed", o.Status)
	}
}
