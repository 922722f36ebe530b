package gate

import (
	"testing"
	"time"

	"github.com/irfndi/catalyst-ai-go/internal/models"
	"github.com/stretchr/testify/assert"
)

// trendingBars climbs 2 a day with a 3-point dip every fourth day.
func trendingBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := 100 + 2*float64(i)
		if i%4 == 3 {
			c -= 3
		}
		bars[i] = models.Bar{Time: start.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return bars
}

func TestComputeIndicators(t *testing.T) {
	p := DefaultPolicy()

	ind := p.ComputeIndicators(trendingBars(40))

	assert.True(t, ind.Last.Equal(d(175)))
	assert.True(t, ind.SMA.Equal(d(158.25)), ind.SMA.String())
	assert.True(t, ind.ADV.Equal(d(1000)), ind.ADV.String())
	assert.True(t, ind.ATR.IsPositive())
	assert.Greater(t, ind.RSI, 75.0)
}

func TestComputeIndicators_ShortHistory(t *testing.T) {
	p := DefaultPolicy()

	ind := p.ComputeIndicators(trendingBars(5))
	assert.True(t, ind.Last.Equal(d(108)))
	assert.True(t, ind.SMA.IsZero())
	assert.True(t, ind.ADV.IsZero())
	assert.Zero(t, ind.RSI)

	empty := p.ComputeIndicators(nil)
	assert.True(t, empty.Last.IsZero())
}

func TestIndicatorsView(t *testing.T) {
	ind := Indicators{Last: d(120), ATR: d(3), SMA: d(115), RSI: 60}

	v := ind.View(d(0))
	assert.True(t, v.Price.Equal(d(120)))
	assert.True(t, v.ATR.Equal(d(3)))

	v = ind.View(d(121))
	assert.True(t, v.Price.Equal(d(121)))
}
