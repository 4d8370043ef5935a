package snowid

import (
	"testing"
	"time"
)

func TestTime(t *testing.T) {
	// 175928847299117063 is the example id from Discord's reference docs.
	got, err := Time("175928847299117063")
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	want := time.Date(2016, 4, 30, 11, 18, 25, 796000000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"175928847299117063", true},
		{"1", true},
		{"", false},
		{"abc", false},
		{"-5", false},
		{"12.5", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Valid(tt.in); got != tt.valid {
				t.Fatalf("got=%v want=%v", got, tt.valid)
			}
		})
	}
}

func TestOldest(t *testing.T) {
	// "900" would sort after "1000" lexically; numeric order must win.
	ids := []string{"1000", "900", "1200"}
	if got := Oldest(ids); got != "900" {
		t.Fatalf("got=%q want=900", got)
	}
	if got := Oldest(nil); got != "" {
		t.Fatalf("empty got=%q", got)
	}
	if !Less("900", "1000") {
		t.Fatalf("Less(900,1000) should be true")
	}
}
