package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEMASeedsFromFirstValue(t *testing.T) {
	e := NewEMA(9)
	assert.Equal(t, 100.0, e.Update(100))
	assert.InDelta(t, 101.0, e.Update(110), 5)
}

func TestSMAWindowEviction(t *testing.T) {
	s := NewSMA(3)
	s.Update(1)
	s.Update(2)
	assert.Equal(t, 2.0, s.Update(3))
	assert.Equal(t, 3.0, s.Update(4)) // (2+3+4)/3
}

func TestRSIBounds(t *testing.T) {
	r := NewRSI(14)
	for i := 0; i < 20; i++ {
		r.Update(float64(100 + i))
	}
	assert.Equal(t, 100.0, r.Value) // pure uptrend: no losses
}

func TestVWAPResetsOnDayBoundary(t *testing.T) {
	v := NewVWAP()
	v.Update(101, 99, 100, 1000)
	assert.Greater(t, v.Value, 0.0)
	v.Reset()
	assert.Equal(t, 0.0, v.Value)
}

func TestVolumeHistoryMultiple(t *testing.T) {
	vh := NewVolumeHistory(5)
	for i := 0; i < 5; i++ {
		vh.Update(100)
	}
	assert.InDelta(t, 2.0, vh.Update(200), 0.01)
}
