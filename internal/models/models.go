package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinPeriod = 1
	MaxPeriod = 6

	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Weekday string

const (
	Mon Weekday = "Mon"
	Tue Weekday = "Tue"
	Wed Weekday = "Wed"
	Thu Weekday = "Thu"
	Fri Weekday = "Fri"
	Sat Weekday = "Sat"
	Sun Weekday = "Sun"
)

var weekdayOrder = map[Weekday]int{Mon: 0, Tue: 1, Wed: 2, Thu: 3, Fri: 4, Sat: 5, Sun: 6}

// Index returns 0 for Monday through 6 for Sunday, -1 for unknown values.
func (w Weekday) Index() int {
	if i, ok := weekdayOrder[w]; ok {
		return i
	}
	return -1
}

func (w Weekday) Valid() bool {
	return w.Index() >= 0
}

// WeekdayOf returns the three-letter weekday of a calendar date.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Mon
	case time.Tuesday:
		return Tue
	case time.Wednesday:
		return Wed
	case time.Thursday:
		return Thu
	case time.Friday:
		return Fri
	case time.Saturday:
		return Sat
	default:
		return Sun
	}
}

// ParseWeekday accepts "mon", "Monday", "1" (Mon=1..Sun=7) and similar spellings.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "", false
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 7 {
			return "", false
		}
		return []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}[n-1], true
	}

	switch s {
	case "mon", "monday":
		return Mon, true
	case "tue", "tues", "tuesday":
		return Tue, true
	case "wed", "wednesday":
		return Wed, true
	case "thu", "thur", "thursday":
		return Thu, true
	case "fri", "friday":
		return Fri, true
	case "sat", "saturday":
		return Sat, true
	case "sun", "sunday":
		return Sun, true
	default:
		return "", false
	}
}

// TruncateToDate drops the clock part and pins the date to UTC so that dates compare by value.
func TruncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return d, nil
}

// WeekStart returns the Monday of the week containing d.
func WeekStart(d time.Time) time.Time {
	d = TruncateToDate(d)
	return d.AddDate(0, 0, -WeekdayOf(d).Index())
}

// ClockTime is a wall-clock time of day without a date.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime accepts "HH:MM" and the "HH:MM:SS" form PostgreSQL reports for TIME columns.
// Seconds are dropped.
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		var errSec error
		if t, errSec = time.Parse(TimeLayout+":05", s); errSec != nil {
			return ClockTime{}, err
		}
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) Before(o ClockTime) bool {
	return c.Hour*60+c.Minute < o.Hour*60+o.Minute
}

type Timeslot struct {
	Weekday     Weekday
	Period      int
	StartTime   ClockTime
	EndTime     ClockTime
	Label       string
	MaxStudents int
}

// SlotKey identifies one slot-instance: a catalog period applied to a concrete date.
type SlotKey struct {
	Date   time.Time
	Period int
}

func NewSlotKey(date time.Time, period int) SlotKey {
	return SlotKey{Date: TruncateToDate(date), Period: period}
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%d", k.Date.Format(DateLayout), k.Period)
}

type BlockedSlot struct {
	ID        int64
	Date      time.Time
	Weekday   Weekday
	Period    int
	Reason    string
	BlockedBy string
	CreatedAt time.Time
}

type OfferType string

const (
	OfferSport   OfferType = "sport"
	OfferGames   OfferType = "games"
	OfferOutdoor OfferType = "outdoor"
	OfferOther   OfferType = "other"
)

func (o OfferType) Valid() bool {
	switch o {
	case OfferSport, OfferGames, OfferOutdoor, OfferOther:
		return true
	}
	return false
}

type Student struct {
	Name   string `json:"name"`
	Klasse string `json:"klasse"`
}

// SameAs compares students the way the school office does: trimmed and case-insensitive.
func (s Student) SameAs(o Student) bool {
	return strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(o.Name)) &&
		strings.EqualFold(strings.TrimSpace(s.Klasse), strings.TrimSpace(o.Klasse))
}

type Booking struct {
	ID           int64
	Date         time.Time
	Weekday      Weekday
	Period       int
	OfferType    OfferType
	OfferLabel   string
	TeacherName  string
	TeacherClass *string
	Students     []Student
	Owner        string
	CreatedAt    time.Time
}

func (b Booking) StudentCount() int {
	return len(b.Students)
}

func (b Booking) Key() SlotKey {
	return NewSlotKey(b.Date, b.Period)
}

// BookingFilter narrows booking listings. Nil fields are not applied.
type BookingFilter struct {
	Owner *string
	From  *time.Time
	To    *time.Time
	Limit int
}

type BlockFilter struct {
	From *time.Time
	To   *time.Time
}

type SlotState string

const (
	SlotOpen            SlotState = "open"
	SlotPartiallyBooked SlotState = "partially_booked"
	SlotFull            SlotState = "full"
	SlotBlocked         SlotState = "blocked"
)

type BookingSummary struct {
	ID           int64
	OfferLabel   string
	OfferType    OfferType
	TeacherName  string
	StudentCount int
}

type SlotInstance struct {
	Date            time.Time
	Weekday         Weekday
	Period          int
	Label           string
	StartTime       ClockTime
	EndTime         ClockTime
	MaxStudents     int
	CurrentStudents int
	AvailableSpots  int
	IsBlocked       bool
	BlockedReason   string
	IsAvailable     bool
	State           SlotState
	Bookings        []BookingSummary
}

type DayOverview struct {
	Date    time.Time
	Weekday Weekday
	Slots   []SlotInstance
}

type WeekOverview struct {
	StartDate time.Time
	Days      []DayOverview
}

type NotificationType string

const (
	NotificationNewBooking     NotificationType = "new_booking"
	NotificationBookingDeleted NotificationType = "booking_deleted"
	NotificationSlotBlocked    NotificationType = "slot_blocked"
	NotificationSlotUnblocked  NotificationType = "slot_unblocked"
)

type Notification struct {
	ID        int64
	Type      NotificationType
	BookingID *int64
	Message   string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
	Metadata  map[string]string
}

// Actor is the authenticated caller as supplied by the school portal.
type Actor struct {
	Username    string
	DisplayName string
	IsAdmin     bool
}
