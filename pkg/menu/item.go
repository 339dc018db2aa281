package menu

// Item is one entry of the tenant's digital menu, as served by the catalog
// fetch API. Aliases cover colloquial names the voice model may emit
// ("biryani" for "Chicken Biryani").
type Item struct {
	ID       string   `json:"id" validate:"required"`
	Name     string   `json:"name" validate:"required"`
	Aliases  []string `json:"aliases,omitempty"`
	Price    float64  `json:"price"`
	Image    string   `json:"image,omitempty"`
	Category string   `json:"categoryId,omitempty"`
}
