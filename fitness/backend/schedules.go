package backend

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core"
	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/core/schema"
)

// calendar colors
const (
	pastDayColor  = "#d3d3d3"
	todayColor    = "#0a7ea4"
	scheduleColor = "#0a7ea4"
)

// maxCalendarDays limits the range of a calendar request
const maxCalendarDays = 366

// DayMark is the marking of a calendar day
type DayMark struct {
	Disabled          bool   `json:"disabled,omitempty"`
	DisableTouchEvent bool   `json:"disableTouchEvent,omitempty"`
	Color             string `json:"color,omitempty"`
	Selected          bool   `json:"selected,omitempty"`
	SelectedColor     string `json:"selectedColor,omitempty"`
	Marked            bool   `json:"marked,omitempty"`
	DotColor          string `json:"dotColor,omitempty"`
	ProgramName       string `json:"programName,omitempty"`
}

type scheduleRequest struct {
	ProgramName string          `json:"program_name"`
	Exercises   json.RawMessage `json:"exercises"`
}

// parseDate accepts YYYY-MM-DD or an RFC3339 timestamp, which is reduced to its
// day in loc
func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(DateFormat, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s', expected YYYY-MM-DD", s)
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

func (b *Backend) today() time.Time {
	t := b.now().In(b.location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, b.location)
}

// dateRange reads from and to from the query. Missing values span the current
// and the next month.
func (b *Backend) dateRange(r *http.Request) (time.Time, time.Time, error) {
	today := b.today()
	from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, b.location)
	to := from.AddDate(0, 2, -1)
	var err error
	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = parseDate(s, b.location); err != nil {
			return from, to, err
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = parseDate(s, b.location); err != nil {
			return from, to, err
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("to must not be before from")
	}
	return from, to, nil
}

func (b *Backend) handleSchedules() {
	logger.Default().Debugln("schedules")
	b.handleUser("/me/schedule/calendar", b.getCalendar, http.MethodGet)
	b.handleUser("/me/schedule", b.getSchedule, http.MethodGet)
	b.handleUser("/me/schedule/{date}", b.putSchedule, http.MethodPut)
	b.handleUser("/me/schedule/{date}", b.deleteSchedule, http.MethodDelete)
}

func (b *Backend) putSchedule(w http.ResponseWriter, r *http.Request, user *User) {
	rlog := logger.FromContext(r.Context())
	date, err := parseDate(mux.Vars(r)["date"], b.location)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if date.Before(b.today()) {
		http.Error(w, "cannot schedule a program for a past day", http.StatusBadRequest)
		return
	}

	var req scheduleRequest
	body, err := readJSON(r, &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err = b.validator.ValidateBytes(body, scheduleSchemaID); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		rlog.WithError(err).Errorln("Error 4740: cannot validate schedule")
		http.Error(w, "Error 4740", http.StatusInternalServerError)
		return
	}

	entry := ScheduleEntry{Date: date.Format(DateFormat), ProgramName: req.ProgramName, Exercises: req.Exercises}
	if err = b.store.PutSchedule(r.Context(), user.UserID, entry); err != nil {
		rlog.WithError(err).Errorln("Error 4741: cannot store schedule")
		http.Error(w, "Error 4741", http.StatusInternalServerError)
		return
	}
	b.notify(r.Context(), "user/schedule", core.OperationUpdate, user.UserID, entry)
	writeJSON(w, http.StatusOK, entry)
}

func (b *Backend) deleteSchedule(w http.ResponseWriter, r *http.Request, user *User) {
	date, err := parseDate(mux.Vars(r)["date"], b.location)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	day := date.Format(DateFormat)
	err = b.store.DeleteSchedule(r.Context(), user.UserID, day)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "nothing scheduled for "+day, http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4742: cannot delete schedule")
		http.Error(w, "Error 4742", http.StatusInternalServerError)
		return
	}
	b.notify(r.Context(), "user/schedule", core.OperationDelete, user.UserID, map[string]string{"date": day})
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) getSchedule(w http.ResponseWriter, r *http.Request, user *User) {
	from, to, err := b.dateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := b.store.Schedule(r.Context(), user.UserID, from.Format(DateFormat), to.Format(DateFormat))
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4743: cannot read schedule")
		http.Error(w, "Error 4743", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []ScheduleEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// Calendar returns the markings of the days between from and to: past days are
// disabled, today is selected and scheduled days are marked.
func Calendar(from, to, today time.Time, entries []ScheduleEntry) map[string]DayMark {
	marks := map[string]DayMark{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Before(today) {
			marks[d.Format(DateFormat)] = DayMark{Disabled: true, DisableTouchEvent: true, Color: pastDayColor}
		}
	}
	if !today.Before(from) && !today.After(to) {
		marks[today.Format(DateFormat)] = DayMark{Selected: true, SelectedColor: todayColor}
	}
	for _, e := range entries {
		mark := marks[e.Date]
		mark.Marked = true
		mark.DotColor = scheduleColor
		mark.ProgramName = e.ProgramName
		marks[e.Date] = mark
	}
	return marks
}

func (b *Backend) getCalendar(w http.ResponseWriter, r *http.Request, user *User) {
	from, to, err := b.dateRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if to.Sub(from) > maxCalendarDays*24*time.Hour {
		http.Error(w, fmt.Sprintf("a calendar spans at most %d days", maxCalendarDays), http.StatusBadRequest)
		return
	}
	entries, err := b.store.Schedule(r.Context(), user.UserID, from.Format(DateFormat), to.Format(DateFormat))
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4743: cannot read schedule")
		http.Error(w, "Error 4743", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, Calendar(from, to, b.today(), entries))
}
