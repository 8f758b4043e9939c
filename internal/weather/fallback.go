package weather

import (
	"hash/fnv"
	"time"

	"github.com/retailpulse/store-insights/internal/common"
)

// seasonalProfile holds the monthly baseline used to synthesize snapshots
// when every provider is unavailable. Values approximate a humid tropical
// retail footprint; the per-store hash jitter keeps stores distinguishable
// while staying fully deterministic.
type seasonalProfile struct {
	meanTempC  [12]float64
	humidity   [12]float64
	rainChance [12]float64 // 0-1, drives the synthetic condition
}

var defaultProfile = seasonalProfile{
	meanTempC:  [12]float64{25.5, 26.5, 28.0, 29.5, 30.0, 29.0, 28.5, 28.5, 28.0, 27.0, 26.0, 25.5},
	humidity:   [12]float64{72, 70, 68, 70, 74, 78, 80, 80, 79, 80, 78, 75},
	rainChance: [12]float64{0.20, 0.15, 0.20, 0.35, 0.45, 0.55, 0.50, 0.45, 0.50, 0.60, 0.55, 0.35},
}

// daypartTempOffsetC shifts the monthly mean by time of day.
var daypartTempOffsetC = map[common.Daypart]float64{
	common.DaypartMorning:   -2.0,
	common.DaypartAfternoon: 2.5,
	common.DaypartEvening:   0.5,
	common.DaypartNight:     -3.5,
}

// blendForecast folds observed forecast readings into the profile,
// averaging each covered month's baseline 50/50 with the observations.
// Fields a reading does not carry (Open-Meteo's daily endpoint omits
// humidity) keep their baseline.
func (p seasonalProfile) blendForecast(readings []Reading) seasonalProfile {
	type monthAgg struct {
		tempSum float64
		humSum  float64
		humN    int
		rainy   int
		n       int
	}
	agg := make(map[int]*monthAgg)

	for _, r := range readings {
		m := int(r.Timestamp.Month()) - 1
		a := agg[m]
		if a == nil {
			a = &monthAgg{}
			agg[m] = a
		}
		a.n++
		a.tempSum += r.TemperatureC
		if r.HumidityPct > 0 {
			a.humSum += r.HumidityPct
			a.humN++
		}
		switch r.Condition {
		case ConditionRain, ConditionStorm, ConditionSnow:
			a.rainy++
		}
	}

	out := p
	for m, a := range agg {
		out.meanTempC[m] = (p.meanTempC[m] + a.tempSum/float64(a.n)) / 2
		if a.humN > 0 {
			out.humidity[m] = (p.humidity[m] + a.humSum/float64(a.humN)) / 2
		}
		out.rainChance[m] = (p.rainChance[m] + float64(a.rainy)/float64(a.n)) / 2
	}
	return out
}

// fallbackSnapshot synthesizes a deterministic snapshot for the given
// store, date and period from its seasonal profile. The same inputs always
// produce the same output, so repeated aggregation cycles over fallback
// data stay idempotent.
func fallbackSnapshot(profile seasonalProfile, storeID string, date time.Time, period common.Daypart, fetchedAt time.Time) Snapshot {
	month := int(date.Month()) - 1
	jitter := hashFraction(storeID, date.Format(DateLayout), string(period))

	temp := profile.meanTempC[month] + daypartTempOffsetC[period] + (jitter-0.5)*2 // ±1°C
	humidity := profile.humidity[month] + (jitter-0.5)*6
	wind := 2.0 + jitter*4.0

	cond := ConditionClear
	switch {
	case jitter < profile.rainChance[month]:
		cond = ConditionRain
	case jitter < profile.rainChance[month]+0.25:
		cond = ConditionCloudy
	}

	return Snapshot{
		StoreID:      storeID,
		Date:         date.Format(DateLayout),
		Period:       period,
		TemperatureC: temp,
		Condition:    cond,
		Humidity:     humidity,
		WindSpeed:    wind,
		Source:       SourceFallback,
		FetchedAt:    fetchedAt.UTC(),
	}
}

// hashFraction maps the inputs to a stable value in [0, 1).
func hashFraction(parts ...string) float64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return float64(h.Sum64()%10000) / 10000
}
