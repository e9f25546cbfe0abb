package trip

// TripInfo holds the practical trip details pasted alongside an itinerary.
// Every field is nullable; a nil field means the source text did not mention it.
type TripInfo struct {
	TripName          *string   `json:"tripName"`
	Operator          *string   `json:"operator"`
	StartDate         *string   `json:"startDate"`
	EndDate           *string   `json:"endDate"`
	Costs             *Costs    `json:"costs"`
	Flights           []Flight  `json:"flights"`
	Visa              *string   `json:"visa"`
	Insurance         *string   `json:"insurance"`
	Currency          *string   `json:"currency"`
	Packing           []string  `json:"packing"`
	EmergencyContacts []Contact `json:"emergencyContacts"`
	Notes             *string   `json:"notes"`
}

type Costs struct {
	Total    *string `json:"total"`
	Deposit  *string `json:"deposit"`
	Included *string `json:"included"`
	Excluded *string `json:"excluded"`
}

type Flight struct {
	Number    *string `json:"number"`
	From      *string `json:"from"`
	To        *string `json:"to"`
	Departure *string `json:"departure"`
	Arrival   *string `json:"arrival"`
}

type Contact struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Role  *string `json:"role"`
}
