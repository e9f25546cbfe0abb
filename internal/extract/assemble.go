package extract

import "github.com/hyperifyio/itinerary/internal/trip"

// AssembleDays builds one Day per chunk, numbered from 1 in chunk order.
// Every extractor runs against the same chunk text; nothing is checked
// across days.
func AssembleDays(chunks []Chunk) []trip.Day {
	return assembleDays(chunks, KnownPlaces)
}

func assembleDays(chunks []Chunk, places []Place) []trip.Day {
	days := make([]trip.Day, 0, len(chunks))
	for i, c := range chunks {
		location := extractLocation(c.Text, places)
		acc := ExtractAccommodation(c.Text)
		if acc.Name != "" {
			acc.Location = location
		}
		days = append(days, trip.Day{
			Day:           i + 1,
			Date:          c.Marker,
			Title:         ExtractTitle(c.Text, location),
			Location:      location,
			Description:   NormalizeDescription(c.Text),
			Highlights:    ExtractHighlights(c.Text),
			Meals:         ExtractMeals(c.Text),
			Accommodation: acc,
		})
	}
	return days
}
