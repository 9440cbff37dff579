package domain

const (
	MailTypeCreateUser        = "create_user"
	MailTypeSchedulePublished = "schedule_published"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type MailShift struct {
	Day   string `json:"day"`
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type SchedulePublishedMailData struct {
	FullName     string      `json:"fullName"`
	ScheduleName string      `json:"scheduleName"`
	WeekStart    string      `json:"weekStart"`
	TotalHours   float64     `json:"totalHours"`
	Shifts       []MailShift `json:"shifts"`
}
