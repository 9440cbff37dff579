package handler

import (
	"context"
	"strings"
	"time"

	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/queue"
	"github.com/sysu-ecnc-dev/slot-scheduler/backend/internal/timegrid"
)

func (h *Handler) publishMail(ctx context.Context, msg domain.MailMessage) error {
	return h.publisher.Publish(ctx, queue.EmailQueue, msg)
}

// assignedHours 统计一周排班串中的总工时
func assignedHours(days []string) float64 {
	slots := 0
	for _, bits := range days {
		slots += strings.Count(bits, "1")
	}
	return float64(slots) / timegrid.SlotsPerHour
}

// mailShifts 把一周的排班转换成邮件中逐条列出的班次
func mailShifts(weekStart time.Time, days []string) []domain.MailShift {
	shifts := make([]domain.MailShift, 0)
	for _, event := range timegrid.EventsFromWeek(weekStart, days) {
		end := event.End.Format("15:04")
		sy, sm, sd := event.Start.Date()
		ey, em, ed := event.End.Date()
		if sy != ey || sm != em || sd != ed {
			end = "24:00"
		}
		shifts = append(shifts, domain.MailShift{
			Day:   timegrid.DayName(timegrid.Weekday(event.Start)),
			Date:  event.Start.Format("01-02"),
			Start: event.Start.Format("15:04"),
			End:   end,
		})
	}
	return shifts
}
