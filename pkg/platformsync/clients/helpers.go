package clients

import "time"

// parseRFC3339 parses an RFC3339 timestamp, returning the zero Time on
// any parse failure rather than erroring — a malformed provider
// timestamp shouldn't fail the whole fetch.
func parseRFC3339(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
