package tiktokads

import (
	"strconv"
	"time"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/connector/core"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/timeutil"
)

// sentinelFields report "-" when the ad has no secondary goal
var sentinelFields = []string{
	"secondary_goal_result",
	"cost_per_secondary_goal_result",
	"secondary_goal_result_rate",
}

// Category selects how raw API records of a stream are normalized.
// The set of categories is closed.
type Category interface {
	// Name returns the category label used in logs
	Name() string
	// Transform normalizes raw records and drops those at or before cutoff.
	// Input records are never modified.
	Transform(records []core.Record, cutoff *time.Time) ([]core.Record, error)

	sealed()
}

// Advertisers converts create_time from Unix seconds and filters by the
// stream-level cutoff
type Advertisers struct{}

// AdManagement covers campaigns, ad groups and ads
type AdManagement struct{}

// Insights covers the report streams. Metrics and dimensions are flattened
// into one record; the cutoff is ignored because windows already bound
// the request.
type Insights struct{}

// Other passes records through unchanged
type Other struct{}

func (Advertisers) sealed()  {}
func (AdManagement) sealed() {}
func (Insights) sealed()     {}
func (Other) sealed()        {}

// Name implements Category
func (Advertisers) Name() string { return "advertisers" }

// Name implements Category
func (AdManagement) Name() string { return "ad_management" }

// Name implements Category
func (Insights) Name() string { return "insights" }

// Name implements Category
func (Other) Name() string { return "other" }

// Transform implements Category
func (Advertisers) Transform(records []core.Record, cutoff *time.Time) ([]core.Record, error) {
	out := make([]core.Record, 0, len(records))
	for _, rec := range records {
		created, err := timeutil.FromUnix(rec[replicationCreateTime])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid advertiser create_time")
		}
		if cutoff != nil && !created.After(*cutoff) {
			continue
		}
		r := cloneRecord(rec)
		r[replicationCreateTime] = timeutil.Format(created)
		out = append(out, r)
	}
	return out, nil
}

// Transform implements Category
func (AdManagement) Transform(records []core.Record, cutoff *time.Time) ([]core.Record, error) {
	out := make([]core.Record, 0, len(records))
	for _, rec := range records {
		r := cloneRecord(rec)
		if _, ok := r[replicationModifyTime]; !ok {
			created, ok := r[replicationCreateTime]
			if !ok {
				return nil, errors.New(errors.ErrorTypeData, "record has neither modify_time nor create_time")
			}
			r[replicationModifyTime] = created
		}
		if v, ok := r["is_comment_disable"]; ok {
			r["is_comment_disable"] = isZero(v)
		}

		if cutoff != nil {
			modified, err := parseCursor(r[replicationModifyTime])
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid modify_time")
			}
			if !modified.After(*cutoff) {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// Transform implements Category
func (Insights) Transform(records []core.Record, _ *time.Time) ([]core.Record, error) {
	out := make([]core.Record, 0, len(records))
	for _, rec := range records {
		metrics, okM := rec["metrics"].(map[string]interface{})
		dimensions, okD := rec["dimensions"].(map[string]interface{})
		if !okM || !okD {
			continue
		}
		r := make(core.Record, len(metrics)+len(dimensions))
		for k, v := range metrics {
			r[k] = v
		}
		for k, v := range dimensions {
			r[k] = v
		}
		out = append(out, nullSentinels(r))
	}
	return out, nil
}

// Transform implements Category
func (Other) Transform(records []core.Record, _ *time.Time) ([]core.Record, error) {
	return records, nil
}

// nullSentinels replaces "-" in the secondary goal fields with nil
func nullSentinels(r core.Record) core.Record {
	for _, f := range sentinelFields {
		if v, ok := r[f].(string); ok && v == "-" {
			r[f] = nil
		}
	}
	return r
}

func cloneRecord(r core.Record) core.Record {
	out := make(core.Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// isZero reports whether v is the number 0
func isZero(v interface{}) bool {
	switch n := v.(type) {
	case int:
		return n == 0
	case int64:
		return n == 0
	case float64:
		return n == 0
	case interface{ String() string }:
		f, err := strconv.ParseFloat(n.String(), 64)
		return err == nil && f == 0
	}
	return false
}

// parseCursor reads a replication key value as a UTC instant
func parseCursor(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return timeutil.Parse(t)
	case time.Time:
		return t.UTC(), nil
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeData, "unsupported cursor value %v (%T)", v, v)
}
