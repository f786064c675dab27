package domain

// A delivery agent that can be bound to one or more routes.
type Courier struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CourierPage struct {
	Items      []Courier  `json:"items"`
	Pagination Pagination `json:"pagination"`
}
