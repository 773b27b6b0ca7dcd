package model

import "time"

// Shelf is a storage location inside the pantry.
type Shelf string

const (
	ShelfFridgeTop    Shelf = "Refrigerator - Top"
	ShelfFridgeMiddle Shelf = "Refrigerator - Middle"
	ShelfFridgeBottom Shelf = "Refrigerator - Bottom"
	ShelfFreezerTop   Shelf = "Freezer - Top"
	ShelfFreezerBot   Shelf = "Freezer - Bottom"
	ShelfPantry1      Shelf = "Pantry - Shelf 1"
	ShelfPantry2      Shelf = "Pantry - Shelf 2"
	ShelfPantry3      Shelf = "Pantry - Shelf 3"
	ShelfCounter      Shelf = "Counter"
	ShelfOther        Shelf = "Other"
)

// Shelves lists every valid shelf in display order.
var Shelves = []Shelf{
	ShelfFridgeTop, ShelfFridgeMiddle, ShelfFridgeBottom,
	ShelfFreezerTop, ShelfFreezerBot,
	ShelfPantry1, ShelfPantry2, ShelfPantry3,
	ShelfCounter, ShelfOther,
}

// Valid reports whether s is one of the known shelves.
func (s Shelf) Valid() bool {
	for _, v := range Shelves {
		if s == v {
			return true
		}
	}
	return false
}

// Category classifies an item by food type.
type Category string

const (
	CategoryDairy      Category = "Dairy"
	CategoryBakery     Category = "Bakery"
	CategoryCanned     Category = "Canned Goods"
	CategoryFrozen     Category = "Frozen"
	CategoryProduce    Category = "Produce"
	CategoryMeat       Category = "Meat & Seafood"
	CategorySnacks     Category = "Snacks"
	CategoryBeverages  Category = "Beverages"
	CategoryCondiments Category = "Condiments"
	CategoryGrains     Category = "Grains & Pasta"
	CategoryOther      Category = "Other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryDairy, CategoryBakery, CategoryCanned, CategoryFrozen, CategoryProduce,
	CategoryMeat, CategorySnacks, CategoryBeverages, CategoryCondiments,
	CategoryGrains, CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// MaxItemNameLength is the longest accepted item name.
const MaxItemNameLength = 100

// LowStockQuantity is the quantity at or below which an item counts as low stock.
const LowStockQuantity = 2

// Item is a pantry inventory record.
// ExpirationDate and AddedDate are calendar dates stored at midnight UTC.
type Item struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	Quantity       int       `json:"quantity" bson:"quantity"`
	Shelf          Shelf     `json:"shelf" bson:"shelf"`
	Category       Category  `json:"category" bson:"category"`
	ExpirationDate time.Time `json:"expirationDate" bson:"expiration_date"`
	Barcode        string    `json:"barcode,omitempty" bson:"barcode,omitempty"`
	AddedDate      time.Time `json:"addedDate" bson:"added_date"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updated_at"`
}

// ItemUpdate carries the fields of a partial item update. Nil fields are left untouched.
type ItemUpdate struct {
	Name           *string
	Quantity       *int
	Shelf          *Shelf
	Category       *Category
	ExpirationDate *time.Time
	Barcode        *string
}

// ItemFilter selects items in ItemRepository.Find.
type ItemFilter struct {
	Shelf    Shelf
	Category Category
	Search   string // case-insensitive substring of the name
	Barcode  string
	SortBy   string // one of ItemSortFields; defaults to addedDate
	Desc     bool
}

// ItemSortFields maps the API sort keys to their storage column names.
var ItemSortFields = map[string]string{
	"addedDate":      "added_date",
	"name":           "name",
	"expirationDate": "expiration_date",
	"quantity":       "quantity",
	"shelf":          "shelf",
	"category":       "category",
}

// SortColumn returns the storage column for the filter's sort key.
func (f ItemFilter) SortColumn() string {
	if col, ok := ItemSortFields[f.SortBy]; ok {
		return col
	}
	return "added_date"
}

// ItemView is an Item annotated with its expiry state relative to today.
type ItemView struct {
	Item
	DaysUntilExpiry  int    `json:"daysUntilExpiry"`
	ExpirationStatus string `json:"expirationStatus"`
}
