package domain

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the format of DailySummary.Date.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// DayWindow returns [00:00, next 00:00) for date in loc.
func DayWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return from, from.AddDate(0, 0, 1), nil
}

// Summarize computes the daily rollup for readings. It returns false when
// readings is empty. The dominant condition is the most frequent one; a tie
// goes to whichever tied value appeared first in chronological order.
func Summarize(city, date string, readings []Reading) (DailySummary, bool) {
	if len(readings) == 0 {
		return DailySummary{}, false
	}

	ordered := make([]Reading, len(readings))
	copy(ordered, readings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	s := DailySummary{
		City:        city,
		Date:        date,
		MinTemp:     ordered[0].Temperature,
		MaxTemp:     ordered[0].Temperature,
		SampleCount: len(ordered),
	}

	var sum float64
	counts := make(map[string]int)
	first := make(map[string]int)
	for i, r := range ordered {
		sum += r.Temperature
		if r.Temperature < s.MinTemp {
			s.MinTemp = r.Temperature
		}
		if r.Temperature > s.MaxTemp {
			s.MaxTemp = r.Temperature
		}
		if _, seen := first[r.Condition]; !seen {
			first[r.Condition] = i
		}
		counts[r.Condition]++
	}
	s.AvgTemp = sum / float64(len(ordered))

	best, bestCount := "", 0
	for cond, n := range counts {
		if n > bestCount || (n == bestCount && first[cond] < first[best]) {
			best, bestCount = cond, n
		}
	}
	s.DominantCondition = best

	return s, true
}
