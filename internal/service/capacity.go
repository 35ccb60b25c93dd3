package service

import (
	"math"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

// Unlimited is the AvailableSeats result for events without a capacity.
const Unlimited = math.MaxInt

func countByStatus(regs []model.Registration, status model.Status) int {
	n := 0
	for i := range regs {
		if regs[i].Status == status {
			n++
		}
	}
	return n
}

// AvailableSeats returns the free seats left on the event, which is negative
// when an administrator has overbooked it, or Unlimited when capacity is 0.
func AvailableSeats(event *model.Event, regs []model.Registration) int {
	if event.Capacity <= 0 {
		return Unlimited
	}
	return event.Capacity - countByStatus(regs, model.StatusRegistered)
}

// DecidePlacement returns the status a new signup receives.
func DecidePlacement(event *model.Event, regs []model.Registration) model.Status {
	if event.Capacity > 0 && AvailableSeats(event, regs) <= 0 {
		return model.StatusWaitlisted
	}
	return model.StatusRegistered
}

// Summarize reports the event's seat usage.
func Summarize(event *model.Event, regs []model.Registration) model.Availability {
	a := model.Availability{
		Capacity:   event.Capacity,
		Registered: countByStatus(regs, model.StatusRegistered),
		Waitlisted: countByStatus(regs, model.StatusWaitlisted),
		Unlimited:  event.Capacity <= 0,
	}
	if a.Unlimited {
		a.Available = Unlimited
		return a
	}
	a.Available = max(event.Capacity-a.Registered, 0)
	a.Full = a.Available == 0
	return a
}
