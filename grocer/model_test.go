package grocer

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)


func TestGroupByCategoryKeepsOrder(t *testing.T) {
	item1 := &Grocery{Id: "1", Category: "fruit"}
	item2 := &Grocery{Id: "2", Category: "dairy"}
	item3 := &Grocery{Id: "3", Category: "fruit"}

	grouped := GroupByCategory([]*Grocery{item1, item2, item3})

	assert.Equal(t, []string{"fruit", "dairy"}, grouped.Categories())
	fruit, ok := grouped.Get("fruit")
	assert.Equal(t, true, ok)
	assert.Equal(t, []*Grocery{item1, item3}, fruit)
	dairy, ok := grouped.Get("dairy")
	assert.Equal(t, true, ok)
	assert.Equal(t, []*Grocery{item2}, dairy)
	_, ok = grouped.Get("bakery")
	assert.Equal(t, false, ok)

	empty := GroupByCategory(nil)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, []string{}, empty.Categories())
}

func TestGroupedCatalogJson(t *testing.T) {
	grouped := GroupByCategory([]*Grocery{
		{Id: "1", Category: "fruit"},
		{Id: "2", Category: "dairy"},
		{Id: "3", Category: "fruit"},
	})
	groupedJson, err := json.Marshal(grouped)
	assert.Equal(t, nil, err)

	var groups []*CategoryGroup
	err = json.Unmarshal(groupedJson, &groups)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(groups))
	assert.Equal(t, "fruit", groups[0].Category)
	assert.Equal(t, GroceryId("3"), groups[0].Groceries[1].Id)
	assert.Equal(t, "dairy", groups[1].Category)
}

func TestGroceryIdDecodesStringsAndNumbers(t *testing.T) {
	var items []*CartItem
	err := json.Unmarshal([]byte(`[{"grocery_id": 12, "quantity": 1}, {"grocery_id": "g-7", "quantity": 2}, {"grocery_id": null}]`), &items)
	assert.Equal(t, nil, err)
	assert.Equal(t, GroceryId("12"), items[0].GroceryId)
	assert.Equal(t, GroceryId("g-7"), items[1].GroceryId)
	assert.Equal(t, GroceryId(""), items[2].GroceryId)

	var id GroceryId
	err = json.Unmarshal([]byte(`true`), &id)
	assert.NotEqual(t, nil, err)
}

func TestOrderId(t *testing.T) {
	var order Order
	err := json.Unmarshal([]byte(`{"order_id": 1001, "total": 12.5}`), &order)
	assert.Equal(t, nil, err)
	assert.Equal(t, "1001", order.OrderId())

	assert.Equal(t, "o-1", Order{"order_id": "o-1"}.OrderId())
	assert.Equal(t, "", Order{}.OrderId())
}
