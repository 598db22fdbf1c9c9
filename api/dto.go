package api

import (
	"strings"
	"time"

	"sportoase-service/internal/models"
)

type Student struct {
	Name   string `json:"name" validate:"required,max=100"`
	Klasse string `json:"klasse" validate:"max=20"`
}

type BookingRequest struct {
	Date         string    `json:"date" validate:"required,datetime=2006-01-02"`
	Weekday      string    `json:"weekday,omitempty"`
	Period       int       `json:"period" validate:"required,min=1,max=6"`
	OfferType    string    `json:"offer_type" validate:"required,oneof=sport games outdoor other"`
	OfferLabel   string    `json:"offer_label" validate:"required,max=100"`
	TeacherName  string    `json:"teacher_name,omitempty" validate:"max=100"`
	TeacherClass *string   `json:"teacher_class,omitempty" validate:"omitempty,max=50"`
	Students     []Student `json:"students" validate:"required,min=1,dive"`
}

type BlockRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Weekday string `json:"weekday,omitempty"`
	Period  int    `json:"period" validate:"required,min=1,max=6"`
	Reason  string `json:"reason,omitempty" validate:"max=200"`
}

type RenameTimeslotRequest struct {
	Label string `json:"label" validate:"required,max=200"`
}

type TimeslotResponse struct {
	Weekday     string `json:"weekday"`
	Period      int    `json:"period"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Label       string `json:"label"`
	MaxStudents int    `json:"max_students"`
}

type BookingResponse struct {
	ID           int64     `json:"id"`
	Date         string    `json:"date"`
	Weekday      string    `json:"weekday"`
	Period       int       `json:"period"`
	OfferType    string    `json:"offer_type"`
	OfferLabel   string    `json:"offer_label"`
	TeacherName  string    `json:"teacher_name"`
	TeacherClass *string   `json:"teacher_class"`
	Students     []Student `json:"students"`
	StudentCount int       `json:"student_count"`
	Owner        string    `json:"owner"`
	CreatedAt    time.Time `json:"created_at"`
}

type BlockedSlotResponse struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Weekday   string    `json:"weekday"`
	Period    int       `json:"period"`
	Reason    string    `json:"reason"`
	BlockedBy string    `json:"blocked_by"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingSummary struct {
	ID           int64  `json:"id"`
	OfferLabel   string `json:"offer_label"`
	OfferType    string `json:"offer_type"`
	TeacherName  string `json:"teacher_name"`
	StudentCount int    `json:"student_count"`
}

type SlotResponse struct {
	Date            string           `json:"date"`
	Weekday         string           `json:"weekday"`
	Period          int              `json:"period"`
	Label           string           `json:"label"`
	StartTime       string           `json:"start_time"`
	EndTime         string           `json:"end_time"`
	MaxStudents     int              `json:"max_students"`
	CurrentStudents int              `json:"current_students"`
	AvailableSpots  int              `json:"available_spots"`
	IsBlocked       bool             `json:"is_blocked"`
	BlockedReason   *string          `json:"blocked_reason"`
	IsAvailable     bool             `json:"is_available"`
	State           string           `json:"state"`
	Bookings        []BookingSummary `json:"bookings"`
}

type DayResponse struct {
	Date    string         `json:"date"`
	Weekday string         `json:"weekday"`
	Slots   []SlotResponse `json:"slots"`
}

type WeekResponse struct {
	StartDate string        `json:"start_date"`
	Days      []DayResponse `json:"days"`
}

type NotificationResponse struct {
	ID        int64             `json:"id"`
	Type      string            `json:"notification_type"`
	BookingID *int64            `json:"booking_id"`
	Message   string            `json:"message"`
	IsRead    bool              `json:"is_read"`
	ReadAt    *time.Time        `json:"read_at"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ParseOptionalDate parses a YYYY-MM-DD query value. An empty value yields nil.
func ParseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func FromTimeslot(ts models.Timeslot) TimeslotResponse {
	return TimeslotResponse{
		Weekday:     string(ts.Weekday),
		Period:      ts.Period,
		StartTime:   ts.StartTime.String(),
		EndTime:     ts.EndTime.String(),
		Label:       ts.Label,
		MaxStudents: ts.MaxStudents,
	}
}

func FromTimeslots(slots []models.Timeslot) []TimeslotResponse {
	out := make([]TimeslotResponse, 0, len(slots))
	for _, ts := range slots {
		out = append(out, FromTimeslot(ts))
	}
	return out
}

func FromBooking(b models.Booking) BookingResponse {
	students := make([]Student, 0, len(b.Students))
	for _, st := range b.Students {
		students = append(students, Student{Name: st.Name, Klasse: st.Klasse})
	}

	return BookingResponse{
		ID:           b.ID,
		Date:         b.Date.Format(models.DateLayout),
		Weekday:      string(b.Weekday),
		Period:       b.Period,
		OfferType:    string(b.OfferType),
		OfferLabel:   b.OfferLabel,
		TeacherName:  b.TeacherName,
		TeacherClass: b.TeacherClass,
		Students:     students,
		StudentCount: b.StudentCount(),
		Owner:        b.Owner,
		CreatedAt:    b.CreatedAt,
	}
}

func FromBookings(bookings []models.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, FromBooking(b))
	}
	return out
}

func FromBlockedSlot(b models.BlockedSlot) BlockedSlotResponse {
	return BlockedSlotResponse{
		ID:        b.ID,
		Date:      b.Date.Format(models.DateLayout),
		Weekday:   string(b.Weekday),
		Period:    b.Period,
		Reason:    b.Reason,
		BlockedBy: b.BlockedBy,
		CreatedAt: b.CreatedAt,
	}
}

func FromBlockedSlots(blocks []models.BlockedSlot) []BlockedSlotResponse {
	out := make([]BlockedSlotResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, FromBlockedSlot(b))
	}
	return out
}

func FromSlotInstance(si models.SlotInstance) SlotResponse {
	resp := SlotResponse{
		Date:            si.Date.Format(models.DateLayout),
		Weekday:         string(si.Weekday),
		Period:          si.Period,
		Label:           si.Label,
		StartTime:       si.StartTime.String(),
		EndTime:         si.EndTime.String(),
		MaxStudents:     si.MaxStudents,
		CurrentStudents: si.CurrentStudents,
		AvailableSpots:  si.AvailableSpots,
		IsBlocked:       si.IsBlocked,
		IsAvailable:     si.IsAvailable,
		State:           string(si.State),
		Bookings:        make([]BookingSummary, 0, len(si.Bookings)),
	}
	if si.IsBlocked {
		reason := si.BlockedReason
		resp.BlockedReason = &reason
	}
	for _, b := range si.Bookings {
		resp.Bookings = append(resp.Bookings, BookingSummary{
			ID:           b.ID,
			OfferLabel:   b.OfferLabel,
			OfferType:    string(b.OfferType),
			TeacherName:  b.TeacherName,
			StudentCount: b.StudentCount,
		})
	}
	return resp
}

func FromDay(d models.DayOverview) DayResponse {
	slots := make([]SlotResponse, 0, len(d.Slots))
	for _, si := range d.Slots {
		slots = append(slots, FromSlotInstance(si))
	}
	return DayResponse{
		Date:    d.Date.Format(models.DateLayout),
		Weekday: string(d.Weekday),
		Slots:   slots,
	}
}

func FromWeek(w models.WeekOverview) WeekResponse {
	days := make([]DayResponse, 0, len(w.Days))
	for _, d := range w.Days {
		days = append(days, FromDay(d))
	}
	return WeekResponse{
		StartDate: w.StartDate.Format(models.DateLayout),
		Days:      days,
	}
}

func FromNotifications(ns []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			BookingID: n.BookingID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
			Metadata:  n.Metadata,
		})
	}
	return out
}
