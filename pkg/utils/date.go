package utils

import (
	"log"
	"time"
)

// DateLayout is the calendar-day format used for sentiment buckets and the
// panel table.
const DateLayout = "2006-01-02"

// GetVNTimeLocation returns the Asia/Ho_Chi_Minh location. Article
// timestamps and trading days are bucketed in Vietnam time.
func GetVNTimeLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}

// TimeNowVN returns the current time in Vietnam.
func TimeNowVN() time.Time {
	return time.Now().In(GetVNTimeLocation())
}

// DateBucket formats a timestamp as the calendar day it falls on in
// Vietnam time.
func DateBucket(t time.Time) string {
	return t.In(GetVNTimeLocation()).Format(DateLayout)
}
