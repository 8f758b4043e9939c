package weather

import "time"

// aggregateReadings combines multiple provider readings into one averaged
// reading. Numeric fields are averaged; conditions are selected by majority
// (or first if tied).
func aggregateReadings(readings []Reading) Reading {
	if len(readings) == 0 {
		return Reading{Condition: ConditionUnknown, Timestamp: time.Now().UTC()}
	}

	var (
		sumTemp     float64
		sumHumidity float64
		sumWind     float64
	)

	conditionCounts := make(map[Condition]int)
	var newestTS time.Time

	for _, r := range readings {
		sumTemp += r.TemperatureC
		sumHumidity += r.HumidityPct
		sumWind += r.WindSpeedMS

		conditionCounts[r.Condition]++

		if r.Timestamp.After(newestTS) {
			newestTS = r.Timestamp
		}
	}

	n := float64(len(readings))

	bestCond := ConditionUnknown
	bestCount := 0
	for cond, count := range conditionCounts {
		if count > bestCount {
			bestCount = count
			bestCond = cond
		}
	}

	if newestTS.IsZero() {
		newestTS = time.Now().UTC()
	}

	return Reading{
		Timestamp:    newestTS,
		TemperatureC: sumTemp / n,
		HumidityPct:  sumHumidity / n,
		WindSpeedMS:  sumWind / n,
		Condition:    bestCond,
	}
}
