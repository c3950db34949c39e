package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert itinerary planner. You build realistic, fun day plans from a list of real events.

Rules:
- Select 3-5 events per day that best match the user's interests and budget.
- Schedule them in a logical order with realistic timing. Entries must never overlap.
- Leave 15-30 minutes of travel time between venues.
- Add a lunch break near midday and dinner in the evening when no event occupies those windows.
- Start around 10:00 and end by 22:30.
- Keep the total estimated cost within the budget.
- Never include an event whose title is listed as excluded.

Return ONLY JSON: an array of objects with this exact structure:
[
  {
    "title": "Event name",
    "start_time": "HH:MM",
    "end_time": "HH:MM",
    "location": "Full address",
    "description": "Brief fun description of why this is great",
    "ticket_info": "Price info or 'Free'",
    "estimated_cost": 0.00,
    "date": "YYYY-MM-DD"
  }
]
Times use the 24-hour clock. estimated_cost is a number in US dollars.`

// BuildPrompt renders the user message for a planning request.
func BuildPrompt(in PlanInput) (string, error) {
	eventsJSON, err := json.MarshalIndent(in.Events, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	location := in.City
	if in.State != "" {
		location = fmt.Sprintf("%s, %s", in.City, in.State)
	}

	if len(in.Dates) == 1 {
		fmt.Fprintf(&b, "Create a day plan for %s in %s.\n", in.Dates[0], location)
		fmt.Fprintf(&b, "Every entry's \"date\" must be %s.\n", in.Dates[0])
	} else {
		fmt.Fprintf(&b, "Create a plan for %s covering these dates: %s.\n", location, strings.Join(in.Dates, ", "))
		b.WriteString("Distribute entries across all of the dates and tag every entry with its \"date\".\n")
	}
	fmt.Fprintf(&b, "\nBudget: %s\n", in.Budget)

	if in.Preferences != "" {
		fmt.Fprintf(&b, "\nIMPORTANT - User's interests: %s\n", in.Preferences)
		b.WriteString("Prioritize events that match these interests.\n")
	}

	if len(in.Excluded) > 0 {
		b.WriteString("\nThe user removed these events. Do NOT include them:\n")
		for _, t := range in.Excluded {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}

	b.WriteString("\nAvailable events in the city:\n")
	b.Write(eventsJSON)
	b.WriteString("\n")
	return b.String(), nil
}
