// Package snowid parses Discord snowflake ids.
package snowid

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscordEpoch is the first millisecond of 2015 in unix milliseconds.
const DiscordEpoch int64 = 1420070400000

var ErrInvalid = errors.New("invalid snowflake id")

// Parse validates a decimal snowflake string.
func Parse(s string) (snowflake.ID, error) {
	if s == "" {
		return 0, ErrInvalid
	}
	id, err := snowflake.ParseString(s)
	if err != nil || id <= 0 {
		return 0, ErrInvalid
	}
	return id, nil
}

// Valid reports whether s is a usable snowflake.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Time returns the creation time encoded in a Discord snowflake.
func Time(s string) (time.Time, error) {
	id, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	ms := (id.Int64() >> 22) + DiscordEpoch
	return time.UnixMilli(ms).UTC(), nil
}

// Less orders two snowflakes numerically. Invalid ids sort first.
func Less(a, b string) bool {
	ia, errA := Parse(a)
	ib, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return a < b
	case errA != nil:
		return true
	case errB != nil:
		return false
	}
	return ia < ib
}

// Oldest returns the numerically smallest id, or "" for an empty list.
func Oldest(ids []string) string {
	var oldest string
	for _, id := range ids {
		if !Valid(id) {
			continue
		}
		if oldest == "" || Less(id, oldest) {
			oldest = id
		}
	}
	return oldest
}
