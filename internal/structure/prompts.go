package structure

import (
	"strings"

	"github.com/hyperifyio/itinerary/internal/trip"
)

// structureSystemPrompt is the fixed structuring contract. The stub server in
// cmd/openai-stub keys on its first sentence.
var structureSystemPrompt = `You convert pasted travel itineraries into structured JSON. Respond with strict JSON only, no narration, no Markdown.

Return exactly: {"days": [Day, ...]}

Day schema:
{
  "day": number (1 for the first day, in order),
  "date": string (as written in the text, e.g. "17th May"),
  "title": string (short label, at most 60 characters),
  "location": string (main place of the day, "" if unknown),
  "description": string (the day's text, cleaned up),
  "highlights": string[] (short phrases),
  "meals": string (which meals are included, "" if none mentioned),
  "accommodation": {"name": string, "rating": string, "location": string},
  "segments": Segment[]
}

Segment schema:
{
  "id": string ("day<N>-<time>-<slug>", lowercase, e.g. "day3-morning-terracotta-army"),
  "time": one of "Morning", "Midday", "Afternoon", "Evening", "Night",
  "type": one of ` + quoteList(trip.SegmentTypes) + `,
  "title": string,
  "description": string,
  "duration": string (e.g. "3 hours"),
  "location": string,
  "mode": one of ` + quoteList(trip.TransferModes) + ` (only when type is "transfer"),
  "from": string (only when type is "transfer"),
  "to": string (only when type is "transfer"),
  "walkDetails": {"distance": string, "elevation": string, "difficulty": string} (only for hikes and walks),
  "highlights": string[]
}

Rules:
- One Day per calendar day found in the text, in the order they appear.
- Split each day into segments in chronological order; every check-in, check-out, meal, transfer and activity is its own segment.
- Keep names exactly as written. Do not invent facts that are not in the text.
- Use "" for unknown strings and [] for unknown lists.`

var tripInfoSystemPrompt = `You extract practical trip details from pasted travel documents. Respond with strict JSON only, no narration, no Markdown.

Return exactly: {"tripInfo": TripInfo}

TripInfo schema (use null for anything the text does not state):
{
  "tripName": string|null,
  "operator": string|null,
  "startDate": string|null,
  "endDate": string|null,
  "costs": {"total": string|null, "deposit": string|null, "included": string|null, "excluded": string|null}|null,
  "flights": [{"number": string|null, "from": string|null, "to": string|null, "departure": string|null, "arrival": string|null}],
  "visa": string|null,
  "insurance": string|null,
  "currency": string|null,
  "packing": string[],
  "emergencyContacts": [{"name": string|null, "phone": string|null, "role": string|null}],
  "notes": string|null
}`

func quoteList(items []string) string {
	q := make([]string, len(items))
	for i, s := range items {
		q[i] = `"` + s + `"`
	}
	return strings.Join(q, ", ")
}

func buildUserPrompt(raw string) string {
	var sb strings.Builder
	sb.WriteString("Itinerary text:\n\n")
	sb.WriteString(strings.TrimSpace(raw))
	return sb.String()
}
