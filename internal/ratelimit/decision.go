package ratelimit

import "time"

// Decision is the combined verdict of every limiter applied to a request.
type Decision struct {
	Allowed bool
	// Limit is the smallest configured limit among the combined limiters.
	Limit     int64
	Remaining int64
	ResetAt   time.Time
	// RetryAfterSeconds is the longest wait among failing limiters.
	RetryAfterSeconds int64
	Results           []Result
}

// Combine ANDs results. A request passes only if every limiter passed.
func Combine(results ...Result) Decision {
	d := Decision{Allowed: true, Results: results}
	if len(results) == 0 {
		return d
	}

	d.Limit = results[0].Limit
	d.Remaining = results[0].Remaining
	var earliest, latestFailing time.Time
	for i, r := range results {
		if r.Limit < d.Limit {
			d.Limit = r.Limit
		}
		if r.Remaining < d.Remaining {
			d.Remaining = r.Remaining
		}
		if i == 0 || r.ResetAt.Before(earliest) {
			earliest = r.ResetAt
		}
		if r.Success {
			continue
		}
		d.Allowed = false
		if r.ResetAt.After(latestFailing) {
			latestFailing = r.ResetAt
		}
		if r.RetryAfterSeconds > d.RetryAfterSeconds {
			d.RetryAfterSeconds = r.RetryAfterSeconds
		}
	}

	d.ResetAt = earliest
	if !d.Allowed {
		d.Remaining = 0
		d.ResetAt = latestFailing
	}
	return d
}

// ResetSeconds is the whole seconds from now until ResetAt.
func (d Decision) ResetSeconds(now time.Time) int64 {
	return ceilSeconds(d.ResetAt.Sub(now))
}

// FailedRules lists the rules that rejected the request.
func (d Decision) FailedRules() []string {
	var out []string
	for _, r := range d.Results {
		if !r.Success {
			out = append(out, ruleLabel(r.Rule))
		}
	}
	return out
}
