package utils

import (
	"time"
)

// NowUnixMilli retorna el timestamp actual en milisegundos desde Unix epoch.
//
// Example:
//
//	ts := utils.NowUnixMilli()
//	// => 1698345601234
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// UnixMilliToTime convierte un timestamp Unix en milisegundos a time.Time.
func UnixMilliToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// ElapsedMsSince calcula los milisegundos transcurridos desde un time.Time dado.
//
// Example:
//
//	start := time.Now()
//	// ... operación ...
//	elapsed := utils.ElapsedMsSince(start)
func ElapsedMsSince(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// DurationsFromMillis convierte una lista de milisegundos a time.Duration.
//
// Los valores <= 0 se descartan.
func DurationsFromMillis(ms []int64) []time.Duration {
	out := make([]time.Duration, 0, len(ms))
	for _, v := range ms {
		if v > 0 {
			out = append(out, time.Duration(v)*time.Millisecond)
		}
	}
	return out
}
