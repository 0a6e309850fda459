package grocer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)


// grocery ids are numeric on some service deployments and strings on others
// the id decodes from either and always encodes as a string
type GroceryId string

func (self *GroceryId) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*self = ""
		return nil
	}
	if 0 < len(data) && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*self = GroceryId(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("grocery id must be a string or number: %w", err)
	}
	*self = GroceryId(n.String())
	return nil
}

func (self GroceryId) String() string {
	return string(self)
}

type Grocery struct {
	Id GroceryId `json:"id"`
	Name string `json:"name,omitempty"`
	Category string `json:"category"`
	Price float64 `json:"price,omitempty"`
	Unit string `json:"unit,omitempty"`
	ImageUrl string `json:"image_url,omitempty"`
	Rating float64 `json:"rating,omitempty"`
}


// a line of the authoritative cart
type CartItem struct {
	GroceryId GroceryId `json:"grocery_id"`
	Name string `json:"name,omitempty"`
	Quantity int `json:"quantity"`
	Amount float64 `json:"amount,omitempty"`
	Price float64 `json:"price,omitempty"`
}


type Customer struct {
	CustomerId string `json:"cust_id,omitempty"`
	Name string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func (self *Customer) IsEmpty() bool {
	return self == nil || *self == Customer{}
}


// order data is owned by the order service and passed through untouched
type Order map[string]any

func (self Order) OrderId() string {
	switch v := self["order_id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}


// the payment service's answer, kept as the json it returned
// the shape belongs to the payment provider and may be any json value
type PaymentResult json.RawMessage

func (self PaymentResult) MarshalJSON() ([]byte, error) {
	if len(self) == 0 {
		return []byte("null"), nil
	}
	return self, nil
}

// the decoded value, or nil when the service returned no body
func (self PaymentResult) Value() (any, error) {
	if len(self) == 0 {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(self, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// the top level fields when the result is a json object
func (self PaymentResult) Fields() (map[string]any, bool) {
	value, err := self.Value()
	if err != nil {
		return nil, false
	}
	fields, ok := value.(map[string]any)
	return fields, ok
}


type CategoryGroup struct {
	Category string `json:"category"`
	Groceries []*Grocery `json:"groceries"`
}

// groceries grouped by category
// categories keep first-seen order, and groceries keep catalog order within a category
type GroupedCatalog struct {
	groups []*CategoryGroup
	index map[string]int
}

func GroupByCategory(groceries []*Grocery) *GroupedCatalog {
	grouped := &GroupedCatalog{
		groups: []*CategoryGroup{},
		index: map[string]int{},
	}
	for _, grocery := range groceries {
		if i, ok := grouped.index[grocery.Category]; ok {
			grouped.groups[i].Groceries = append(grouped.groups[i].Groceries, grocery)
		} else {
			grouped.index[grocery.Category] = len(grouped.groups)
			grouped.groups = append(grouped.groups, &CategoryGroup{
				Category: grocery.Category,
				Groceries: []*Grocery{grocery},
			})
		}
	}
	return grouped
}

func (self *GroupedCatalog) Categories() []string {
	categories := make([]string, 0, len(self.groups))
	for _, group := range self.groups {
		categories = append(categories, group.Category)
	}
	return categories
}

func (self *GroupedCatalog) Get(category string) ([]*Grocery, bool) {
	i, ok := self.index[category]
	if !ok {
		return nil, false
	}
	groceries := make([]*Grocery, len(self.groups[i].Groceries))
	copy(groceries, self.groups[i].Groceries)
	return groceries, true
}

func (self *GroupedCatalog) Len() int {
	return len(self.groups)
}

// encodes as an ordered list of groups since json objects do not keep key order
func (self *GroupedCatalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(self.groups)
}
