package testfixtures

import (
	"time"

	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

var referenceTime = time.Date(2015, time.August, 25, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures:
// the first day covered by FixtureSchedule.
func ReferenceTime() time.Time {
	return referenceTime
}

// Iso parses a YYYYMMDDTHHMMSS literal and panics when it is malformed.
func Iso(s string) time.Time {
	return schedule.MustFromIsoString(s)
}

// The four intervals making up FixtureSchedule.
var (
	// Every other day, 05:00-10:00, 2015-08-25..27.
	WhiteEveryOtherDay = schedule.MustRepetitiveInterval(Iso("20150825T000000"), Iso("20150827T000000"), 5, 10, 2, schedule.RepeatDay)
	// Daily, 06:00-08:00, 2015-08-25..27.
	WhiteDaily = schedule.MustRepetitiveInterval(Iso("20150825T000000"), Iso("20150827T000000"), 6, 8, 1, schedule.RepeatDay)
	// Once, 07:00-08:00 on 2015-08-27.
	BlackOnce = schedule.MustRepetitiveInterval(Iso("20150827T000000"), Iso("20150827T000000"), 7, 8, 0, schedule.RepeatNone)
	// Once, 04:00-07:00 on 2015-08-25.
	WhiteOnce = schedule.MustRepetitiveInterval(Iso("20150825T000000"), Iso("20150825T000000"), 4, 7, 0, schedule.RepeatNone)
)

// FixtureSchedule returns the reference schedule with three white intervals
// and one black interval.
func FixtureSchedule() *schedule.Schedule {
	return schedule.New().
		AddWhiteInterval(WhiteEveryOtherDay).
		AddWhiteInterval(WhiteDaily).
		AddWhiteInterval(WhiteOnce).
		AddBlackInterval(BlackOnce)
}

// AlwaysSchedule returns a schedule granting access all day on every day of
// 2015.
func AlwaysSchedule() *schedule.Schedule {
	return schedule.New().AddWhiteInterval(
		schedule.MustRepetitiveInterval(Iso("20150101T000000"), Iso("20151231T000000"), 0, 24, 1, schedule.RepeatDay),
	)
}
