package notification

// Tracker is implemented by metadata types that carry a reminder-day
// progression. Embedding Progression in a metadata struct satisfies it.
//
// When a notification with tracker metadata is dispatched, the writer
// generates the next notification in the series from the advanced
// tracker, so an open-ended reminder series only ever has one pending
// occurrence at a time.
type Tracker interface {
	Tracker() *Progression
}

// Progression walks a finite ordered series of day offsets from an
// anchor date. Create it once with index 0 and persist a notification
// carrying it; the pipeline schedules the rest of the series.
type Progression struct {
	// StartDate anchors the series; reminder days are offsets from it.
	StartDate Date `json:"startDate"`
	// ReminderDays is the ordered series of offsets, e.g. [1, 2, 4, 7].
	ReminderDays []int `json:"reminderDays"`
	// CurrentIndex is the position in ReminderDays this occurrence
	// represents.
	CurrentIndex int `json:"currentIndex"`
}

// Tracker implements the Tracker interface. The accessor must not share
// the struct's name: in an embedding metadata struct the field named
// Progression would shadow a promoted Progression method and break the
// interface satisfaction the embedding is there for.
func (p *Progression) Tracker() *Progression { return p }

// CurrentDay returns the day offset at the current index.
func (p *Progression) CurrentDay() int {
	return p.ReminderDays[p.CurrentIndex]
}

// CurrentDate returns the calendar date of the current occurrence.
func (p *Progression) CurrentDate() Date {
	return p.StartDate.AddDays(p.CurrentDay())
}

// Final reports whether the tracker sits at the last index.
func (p *Progression) Final() bool {
	return p.CurrentIndex >= len(p.ReminderDays)-1
}

// Advance moves to the next index unless already final.
func (p *Progression) Advance() {
	if !p.Final() {
		p.CurrentIndex++
	}
}
