package store

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	nricPattern = regexp.MustCompile(`^[STFG][0-9]{7}[A-Z]$`)
	hpPattern   = regexp.MustCompile(`^[0-9]{8}$`)
)

// ErrInvalidVisitor is returned when a registration fails field validation.
var ErrInvalidVisitor = errors.New("invalid visitor data")

// ValidateNRIC checks the national id format (uppercased before matching).
func ValidateNRIC(nric string) bool {
	return nricPattern.MatchString(strings.ToUpper(nric))
}

// ValidateHP checks the 8-digit phone number format.
func ValidateHP(hpNo string) bool {
	return hpPattern.MatchString(hpNo)
}

// AddVisitor registers a new visit. NRIC is uppercased, the display name is
// composed from first/last when absent, and the check-in time defaults to
// now. Related cached reads are invalidated before returning.
func (s *Store) AddVisitor(v *Visitor) error {
	if v.NRIC != "" {
		v.NRIC = strings.ToUpper(v.NRIC)
		if !ValidateNRIC(v.NRIC) {
			return fmt.Errorf("%w: bad NRIC format", ErrInvalidVisitor)
		}
	}
	if v.HPNo != "" && !ValidateHP(v.HPNo) {
		return fmt.Errorf("%w: bad HP number format", ErrInvalidVisitor)
	}
	if v.Name == "" {
		v.Name = strings.TrimSpace(v.FirstName + " " + v.LastName)
	}
	if v.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidVisitor)
	}
	if v.CheckInTime.IsZero() {
		v.CheckInTime = s.now()
	}

	if err := s.db.Create(v).Error; err != nil {
		return fmt.Errorf("add visitor: %w", err)
	}

	s.cache.Invalidate("active")
	s.cache.Invalidate("history")
	s.cache.Invalidate("counts")
	s.logger.Info("visitor registered",
		slog.Uint64("id", uint64(v.ID)),
		slog.String("pass_number", v.PassNumber))
	return nil
}

// CheckoutVisitor stamps the checkout time and visit duration in minutes.
func (s *Store) CheckoutVisitor(id uint) error {
	var v Visitor
	if err := s.db.First(&v, id).Error; err != nil {
		return fmt.Errorf("checkout visitor %d: %w", id, err)
	}

	checkout := s.now()
	duration := int(checkout.Sub(v.CheckInTime).Minutes())
	err := s.db.Model(&v).Updates(map[string]any{
		"check_out_time": checkout,
		"duration":       duration,
	}).Error
	if err != nil {
		return fmt.Errorf("checkout visitor %d: %w", id, err)
	}

	s.cache.Invalidate("active")
	s.cache.Invalidate("history")
	s.cache.Invalidate("counts")
	return nil
}

// GeneratePassNumber builds the next visit id: VMS-YYYYMMDD-NNNN from
// today's check-in count, falling back to a timestamp form when the count
// cannot be read.
func (s *Store) GeneratePassNumber() string {
	today := s.now().Format("20060102")
	count, err := s.countCheckinsOn(s.now())
	if err != nil {
		s.logger.Warn("pass number fallback", slog.String("error", err.Error()))
		return fmt.Sprintf("VMS-%s", s.now().Format("20060102-150405"))
	}
	return fmt.Sprintf("VMS-%s-%04d", today, count+1)
}

// ActiveVisitors returns all visits without a checkout time, newest first.
// Cached under active:all; the UI polls this list frequently.
func (s *Store) ActiveVisitors() ([]Visitor, error) {
	if cached, ok := s.cache.Get("active:all"); ok {
		return cached.([]Visitor), nil
	}

	var visitors []Visitor
	err := s.db.Where("check_out_time IS NULL").
		Order("check_in_time DESC").
		Find(&visitors).Error
	if err != nil {
		return nil, fmt.Errorf("active visitors: %w", err)
	}

	s.cache.Set("active:all", visitors)
	return visitors, nil
}

// HasActiveVisit reports whether the given NRIC or HP number has a visit
// still inside. Used to block double registration.
func (s *Store) HasActiveVisit(nric, hpNo string) (bool, error) {
	if nric == "" && hpNo == "" {
		return false, nil
	}

	q := s.db.Model(&Visitor{}).Where("check_out_time IS NULL")
	switch {
	case nric != "" && hpNo != "":
		q = q.Where("nric = ? OR hp_no = ?", strings.ToUpper(nric), hpNo)
	case nric != "":
		q = q.Where("nric = ?", strings.ToUpper(nric))
	default:
		q = q.Where("hp_no = ?", hpNo)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("active visit lookup: %w", err)
	}
	return count > 0, nil
}

// MostRecentVisitForAutofill returns the latest completed visit for the
// given NRIC or HP number, used to pre-fill the registration form for
// returning visitors. Returns (nil, nil) when there is none.
func (s *Store) MostRecentVisitForAutofill(nric, hpNo string) (*Visitor, error) {
	if nric == "" && hpNo == "" {
		return nil, nil
	}

	q := s.db.Where("check_out_time IS NOT NULL")
	switch {
	case nric != "" && hpNo != "":
		q = q.Where("nric = ? OR hp_no = ?", strings.ToUpper(nric), hpNo)
	case nric != "":
		q = q.Where("nric = ?", strings.ToUpper(nric))
	default:
		q = q.Where("hp_no = ?", hpNo)
	}

	var visitors []Visitor
	if err := q.Order("check_in_time DESC").Limit(1).Find(&visitors).Error; err != nil {
		return nil, fmt.Errorf("autofill lookup: %w", err)
	}
	if len(visitors) == 0 {
		return nil, nil
	}
	return &visitors[0], nil
}

// TodaysHistory returns every visit checked in today, newest first. Cached
// under history:today.
func (s *Store) TodaysHistory() ([]Visitor, error) {
	if cached, ok := s.cache.Get("history:today"); ok {
		return cached.([]Visitor), nil
	}

	start, end := dayBounds(s.now())
	var visitors []Visitor
	err := s.db.Where("check_in_time >= ? AND check_in_time < ?", start, end).
		Order("check_in_time DESC").
		Find(&visitors).Error
	if err != nil {
		return nil, fmt.Errorf("todays history: %w", err)
	}

	s.cache.Set("history:today", visitors)
	return visitors, nil
}

// AllRecords returns visits in the inclusive [start, end] date range,
// newest first. Zero bounds return everything.
func (s *Store) AllRecords(start, end time.Time) ([]Visitor, error) {
	q := s.db.Order("check_in_time DESC")
	if !start.IsZero() && !end.IsZero() {
		lo, _ := dayBounds(start)
		_, hi := dayBounds(end)
		q = q.Where("check_in_time >= ? AND check_in_time < ?", lo, hi)
	}

	var visitors []Visitor
	if err := q.Find(&visitors).Error; err != nil {
		return nil, fmt.Errorf("all records: %w", err)
	}
	return visitors, nil
}

// TodaysCheckinCount returns the number of check-ins today, cached under
// counts:today.
func (s *Store) TodaysCheckinCount() (int64, error) {
	if cached, ok := s.cache.Get("counts:today"); ok {
		return cached.(int64), nil
	}

	count, err := s.countCheckinsOn(s.now())
	if err != nil {
		return 0, err
	}
	s.cache.Set("counts:today", count)
	return count, nil
}

// AverageDuration returns the mean completed-visit duration in minutes,
// cached under counts:avg_duration.
func (s *Store) AverageDuration() (float64, error) {
	if cached, ok := s.cache.Get("counts:avg_duration"); ok {
		return cached.(float64), nil
	}

	var avg *float64
	err := s.db.Model(&Visitor{}).
		Where("duration IS NOT NULL").
		Select("AVG(duration)").
		Scan(&avg).Error
	if err != nil {
		return 0, fmt.Errorf("average duration: %w", err)
	}

	result := 0.0
	if avg != nil {
		result = *avg
	}
	s.cache.Set("counts:avg_duration", result)
	return result, nil
}

// DailyCount is one day's check-in total.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// DailyCheckinsCurrentMonth returns per-day check-in totals for the current
// calendar month, in date order. Bucketing happens in Go so the query does
// not depend on how the driver renders timestamps.
func (s *Store) DailyCheckinsCurrentMonth() ([]DailyCount, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)

	var checkins []time.Time
	err := s.db.Model(&Visitor{}).
		Where("check_in_time >= ? AND check_in_time < ?", monthStart, monthEnd).
		Pluck("check_in_time", &checkins).Error
	if err != nil {
		return nil, fmt.Errorf("daily checkins: %w", err)
	}

	buckets := make(map[time.Time]int)
	for _, t := range checkins {
		day, _ := dayBounds(t.In(now.Location()))
		buckets[day]++
	}

	days := make([]DailyCount, 0, len(buckets))
	for day, count := range buckets {
		days = append(days, DailyCount{Date: day, Count: count})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

func (s *Store) countCheckinsOn(day time.Time) (int64, error) {
	start, end := dayBounds(day)
	var count int64
	err := s.db.Model(&Visitor{}).
		Where("check_in_time >= ? AND check_in_time < ?", start, end).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count checkins: %w", err)
	}
	return count, nil
}

// dayBounds returns the local-midnight bounds [start, end) of t's day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}
