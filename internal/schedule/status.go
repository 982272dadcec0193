package schedule

import "github.com/chatlings/pkg/models"

// transitions lists the allowed forward moves. A window whose announcement
// poll was missed may go straight from scheduled to open.
var transitions = map[models.ScheduleStatus][]models.ScheduleStatus{
	models.StatusScheduled: {models.StatusNotified, models.StatusOpen},
	models.StatusNotified:  {models.StatusOpen},
	models.StatusOpen:      {models.StatusClosed},
	models.StatusClosed:    nil,
}

var rank = map[models.ScheduleStatus]int{
	models.StatusScheduled: 0,
	models.StatusNotified:  1,
	models.StatusOpen:      2,
	models.StatusClosed:    3,
}

// CanTransition reports whether from -> to is a legal single step
func CanTransition(from, to models.ScheduleStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is one of the four lifecycle states
func ValidStatus(s models.ScheduleStatus) bool {
	_, ok := rank[s]
	return ok
}

// reached reports whether current is already at or past target
func reached(current, target models.ScheduleStatus) bool {
	return rank[current] >= rank[target]
}
