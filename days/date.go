package days

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

var location *time.Location = time.UTC

// SetTimezone decides which calendar day "today" is.
func SetTimezone(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", timezone, err)
	}
	location = loc
	return nil
}

func Location() *time.Location {
	return location
}

// Date is a calendar day formatted as YYYY-MM-DD.
type Date string

func Parse(str string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, str, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", str)
	}
	return Date(t.Format(dateLayout)), nil
}

func MustParse(str string) Date {
	d, err := Parse(str)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return string(d)
}

func (d Date) IsZero() bool {
	return d == ""
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) AddDays(n int) Date {
	t := d.Time()
	if t.IsZero() {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format(dateLayout))
}

// DaysUntil returns the number of calendar days from d to other,
// negative when other is before d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) Compare(other Date) int {
	switch {
	case d == other:
		return 0
	case d < other:
		return -1
	default:
		return 1
	}
}

func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

func FromTime(t time.Time) Date {
	if t.IsZero() {
		return ""
	}
	return Date(t.In(location).Format(dateLayout))
}

func Today() Date {
	return FromTime(time.Now())
}

func Yesterday() Date {
	return Today().AddDays(-1)
}
