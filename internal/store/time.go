package store

import "time"

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
