package summary

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
)

// Calendar days are represented as midnight UTC so they compare and step
// without any timezone or DST effects.

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// localDay is the calendar day of instant ts in loc.
func localDay(ts time.Time, loc *time.Location) time.Time {
	return civil(ts.In(loc))
}

func dayKey(d time.Time) string {
	return d.Format(report.DateLayout)
}

func nextDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}

// instantRange converts the inclusive day range into [from, to) instants in loc.
func instantRange(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day()+1, 0, 0, 0, 0, loc)
	return from, to
}

type bucket struct {
	start time.Time
	end   time.Time
}

// bucketStart returns the first day of the bucket containing d. Weeks start
// on Monday.
func bucketStart(d time.Time, g report.Granularity) time.Time {
	switch g {
	case report.GranularityWeek:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case report.GranularityMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	case report.GranularityYear:
		return time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

func bucketNext(start time.Time, g report.Granularity) time.Time {
	switch g {
	case report.GranularityWeek:
		return start.AddDate(0, 0, 7)
	case report.GranularityMonth:
		return start.AddDate(0, 1, 0)
	case report.GranularityYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// buckets splits [start, end] into consecutive calendar buckets. The first
// and last bucket are clipped to the range.
func buckets(start, end time.Time, g report.Granularity) []bucket {
	start, end = civil(start), civil(end)
	var out []bucket
	for b := bucketStart(start, g); !b.After(end); b = bucketNext(b, g) {
		last := bucketNext(b, g).AddDate(0, 0, -1)
		out = append(out, bucket{
			start: maxTime(b, start),
			end:   minTime(last, end),
		})
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// EmptySeries returns the zero-filled bucket rows for [start, end], the shape
// every SummarizeBuckets result has for the same arguments.
func EmptySeries(start, end time.Time, g report.Granularity) []report.BucketStats {
	bs := buckets(start, end, g)
	out := make([]report.BucketStats, 0, len(bs))
	for _, b := range bs {
		out = append(out, report.BucketStats{
			Granularity: g,
			BucketStart: dayKey(b.start),
			BucketEnd:   dayKey(b.end),
			SummaryStats: report.SummaryStats{
				StartDate: dayKey(b.start),
				EndDate:   dayKey(b.end),
			},
		})
	}
	return out
}
