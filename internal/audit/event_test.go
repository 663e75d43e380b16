package audit

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEventTableRouting(t *testing.T) {
	cases := []struct {
		event  Event
		table  string
		column string
	}{
		{OrderCreated{OrderID: 1}, "order_logs", "order_id"},
		{OrderApproved{OrderID: 1}, "order_logs", "order_id"},
		{OrderReturned{OrderID: 1}, "order_logs", "order_id"},
		{PaymentRecorded{PaymentID: 2}, "payment_logs", "payment_id"},
		{ShopSaved{ShopID: 3}, "shop_logs", "shop_id"},
		{ProductSaved{ProductID: 4}, "product_logs", "product_id"},
		{ProductStockAdjusted{ProductID: 4}, "product_logs", "product_id"},
	}
	for _, tc := range cases {
		table, column, err := logTable(tc.event.Entity())
		if err != nil {
			t.Fatalf("%s: %v", tc.event.Action(), err)
		}
		if table != tc.table || column != tc.column {
			t.Fatalf("%s routed to %s.%s, expected %s.%s", tc.event.Action(), table, column, tc.table, tc.column)
		}
	}
	if _, _, err := logTable(Entity("invoice")); err == nil {
		t.Fatalf("expected error for unknown entity")
	}
}

func TestSavedEventActions(t *testing.T) {
	if got := (ShopSaved{Created: true}).Action(); got != "create" {
		t.Fatalf("expected create, got %s", got)
	}
	if got := (ShopSaved{}).Action(); got != "update" {
		t.Fatalf("expected update, got %s", got)
	}
	if got := (ProductSaved{Created: true}).Action(); got != "create" {
		t.Fatalf("expected create, got %s", got)
	}
}

func TestOrderCreatedDetailsShape(t *testing.T) {
	event := OrderCreated{
		OrderID: 10,
		ShopID:  4,
		Total:   decimal.RequireFromString("1500"),
		Items: []ItemSnapshot{
			{ProductID: 1, ProductName: "Rice 25kg", UnitPrice: decimal.RequireFromString("500"), Quantity: 3, LineTotal: decimal.RequireFromString("1500")},
		},
	}
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"order_id", "shop_id", "total", "items"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("details missing %q: %s", key, raw)
		}
	}
	items, ok := decoded["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one item, got %v", decoded["items"])
	}
	item := items[0].(map[string]any)
	if item["product_name"] != "Rice 25kg" {
		t.Fatalf("expected product_name in item details, got %v", item)
	}
}
