package scheduler

import (
	"regexp"
	"time"

	cronparser "github.com/robfig/cron/v3"
)

// FallbackInterval is the scheduling period applied when an expression
// is not one of the recognized patterns.
const FallbackInterval = 5 * time.Minute

// Evaluator computes the next due instant for a schedule expression.
//
// Only a bounded set of common cron patterns is recognized:
//
//	*/N * * * *   every N minutes
//	0 * * * *     hourly, on the hour
//	0 0 * * *     daily, at midnight
//	0 0 * * 0     weekly, Sunday midnight
//	0 0 1 * *     monthly, first-of-month midnight
//
// Anything else, including malformed input, falls back to a fixed
// five-minute interval. NextRun never fails; the scheduler always gets
// a concrete future instant to make forward progress with.
type Evaluator struct {
	parser cronparser.Parser
}

var minuteIntervalPattern = regexp.MustCompile(`^\*/([1-9][0-9]*) \* \* \* \*$`)

var exactPatterns = map[string]struct{}{
	"0 * * * *": {}, // hourly
	"0 0 * * *": {}, // daily
	"0 0 * * 0": {}, // weekly
	"0 0 1 * *": {}, // monthly
}

// NewEvaluator creates a schedule evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		parser: cronparser.NewParser(
			cronparser.Minute | cronparser.Hour | cronparser.Dom |
				cronparser.Month | cronparser.Dow,
		),
	}
}

// NextRun returns the next due instant strictly after reference.
func (e *Evaluator) NextRun(schedule string, reference time.Time) time.Time {
	if !e.recognized(schedule) {
		return reference.Add(FallbackInterval)
	}

	parsed, err := e.parser.Parse(schedule)
	if err != nil {
		// recognized patterns always parse; keep the guarantee anyway
		return reference.Add(FallbackInterval)
	}
	return parsed.Next(reference)
}

func (e *Evaluator) recognized(schedule string) bool {
	if _, ok := exactPatterns[schedule]; ok {
		return true
	}
	return minuteIntervalPattern.MatchString(schedule)
}
