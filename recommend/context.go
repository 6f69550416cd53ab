// Package recommend implements the semantic retrieval core: the embedding
// index over wardrobe items, the category-balanced retriever, the
// adjustment merge policy, and the recommender facade tying them to the
// conversation session store.
package recommend

import "strings"

// SituationContext is the situational input for one recommendation:
// weather plus optional occasion/style/color preferences. Fields are
// opaque tokens supplied by the weather provider and the request; the
// core does not validate them.
type SituationContext struct {
	Condition    string
	Occasion     string
	Style        string
	ColorTone    string
	TemperatureC float64
}

// temperatureBand maps a temperature to a fixed descriptive token so the
// derived query is deterministic for the same input.
func temperatureBand(tempC float64) string {
	switch {
	case tempC <= 0:
		return "freezing cold winter"
	case tempC < 10:
		return "cold winter"
	case tempC < 18:
		return "cool layered"
	case tempC < 26:
		return "mild warm"
	default:
		return "hot summer"
	}
}

// QueryDescription derives the short retrieval query from the context.
// Construction is deterministic given the same inputs.
func (c SituationContext) QueryDescription() string {
	parts := []string{temperatureBand(c.TemperatureC)}
	if c.Condition != "" {
		parts = append(parts, c.Condition)
	}
	if c.Occasion != "" {
		parts = append(parts, c.Occasion)
	}
	if c.Style != "" {
		parts = append(parts, c.Style+" style")
	}
	if c.ColorTone != "" {
		parts = append(parts, c.ColorTone)
	}
	return strings.Join(parts, " ")
}
