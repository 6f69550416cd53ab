package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryDescription(t *testing.T) {
	testCases := []struct {
		name    string
		context SituationContext
		expect  string
	}{
		{
			"freezing winter",
			SituationContext{TemperatureC: -5, Condition: "snow"},
			"freezing cold winter snow",
		},
		{
			"hot summer with preferences",
			SituationContext{TemperatureC: 28, Condition: "clear", Occasion: "beach", Style: "casual"},
			"hot summer clear beach casual style",
		},
		{
			"mild with color",
			SituationContext{TemperatureC: 20, ColorTone: "earth tones"},
			"mild warm earth tones",
		},
		{
			"band boundary at 18",
			SituationContext{TemperatureC: 18},
			"mild warm",
		},
		{
			"band boundary below 18",
			SituationContext{TemperatureC: 17.9},
			"cool layered",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.context.QueryDescription())
		})
	}
}

func TestQueryDescriptionDeterministic(t *testing.T) {
	ctx := SituationContext{TemperatureC: 12, Condition: "rain", Occasion: "office", Style: "formal", ColorTone: "navy"}
	first := ctx.QueryDescription()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ctx.QueryDescription())
	}
}
