package domain

// Delivery status of a recipient as tracked by the backend.
type RecipientStatus string

const (
	RecipientUnassigned RecipientStatus = "Unassigned"
	RecipientAssigned   RecipientStatus = "Assigned"
	RecipientDelivery   RecipientStatus = "Delivery"
	RecipientDone       RecipientStatus = "Done"
	RecipientReturn     RecipientStatus = "Return"
)

// Administrative area (province or city) a recipient belongs to.
type Region struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Represents a delivery destination.
// A Recipient has an address, a package count and a delivery status. The wizard
// only reads recipients; they are owned by the backend.
type Recipient struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Status      RecipientStatus `json:"status"`
	NumPackages int             `json:"num_packages"`
	Location    Location        `json:"location"`
	Province    Region          `json:"province"`
	City        Region          `json:"city"`
}

// Pagination metadata returned with every list endpoint.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

type RecipientPage struct {
	Items      []Recipient `json:"items"`
	Pagination Pagination  `json:"pagination"`
}
