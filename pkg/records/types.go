package records

import "time"

// Document is a raw Firestore document as delivered by a snapshot listener.
type Document struct {
	ID   string
	Data map[string]interface{}
}

type WorkLogStatus string

const (
	WorkLogNotStarted WorkLogStatus = "not_started"
	WorkLogCheckedIn  WorkLogStatus = "checked_in"
	WorkLogCheckedOut WorkLogStatus = "checked_out"
	WorkLogCompleted  WorkLogStatus = "completed"
	WorkLogAbsent     WorkLogStatus = "absent"
)

// ParseWorkLogStatus reports whether s is a known WorkLog status.
func ParseWorkLogStatus(s string) (WorkLogStatus, bool) {
	switch st := WorkLogStatus(s); st {
	case WorkLogNotStarted, WorkLogCheckedIn, WorkLogCheckedOut, WorkLogCompleted, WorkLogAbsent:
		return st, true
	}
	return "", false
}

type Staff struct {
	ID           string     `json:"id"`
	StaffID      string     `json:"staffId"`
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Phone        string     `json:"phone,omitempty"`
	Email        string     `json:"email,omitempty"`
	AssignedRole string     `json:"assignedRole,omitempty"`
	AssignedTime string     `json:"assignedTime,omitempty"`
	AssignedDate string     `json:"assignedDate,omitempty"`
	PostingID    string     `json:"postingId,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	Age          *int       `json:"age,omitempty"`
	Experience   string     `json:"experience,omitempty"`
	Nationality  string     `json:"nationality,omitempty"`
	Region       string     `json:"region,omitempty"`
	History      string     `json:"history,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	BankName     string     `json:"bankName,omitempty"`
	BankAccount  string     `json:"bankAccount,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

type StaffInfo struct {
	UserID        string   `json:"userId"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	UserRole      string   `json:"userRole,omitempty"`
	JobRole       []string `json:"jobRole"`
	IsActive      bool     `json:"isActive"`
	BankName      string   `json:"bankName"`
	AccountNumber string   `json:"accountNumber"`
	Gender        string   `json:"gender"`
	Age           *int     `json:"age,omitempty"`
	Experience    string   `json:"experience"`
	Nationality   string   `json:"nationality"`
	Region        string   `json:"region"`
}

type AssignmentInfo struct {
	Role         string `json:"role"`
	AssignedRole string `json:"assignedRole,omitempty"`
	AssignedTime string `json:"assignedTime,omitempty"`
	AssignedDate string `json:"assignedDate,omitempty"`
	PostingID    string `json:"postingId"`
	ManagerID    string `json:"managerId,omitempty"`
	Type         string `json:"type"`
}

type WorkLog struct {
	ID                 string         `json:"id"`
	StaffID            string         `json:"staffId"`
	StaffName          string         `json:"staffName"`
	EventID            string         `json:"eventId"`
	Date               string         `json:"date"`
	StaffInfo          StaffInfo      `json:"staffInfo"`
	AssignmentInfo     AssignmentInfo `json:"assignmentInfo"`
	ScheduledStartTime *time.Time     `json:"scheduledStartTime,omitempty"`
	ScheduledEndTime   *time.Time     `json:"scheduledEndTime,omitempty"`
	ActualStartTime    *time.Time     `json:"actualStartTime,omitempty"`
	ActualEndTime      *time.Time     `json:"actualEndTime,omitempty"`
	Role               string         `json:"role,omitempty"`
	AssignedTime       string         `json:"assignedTime,omitempty"`
	HoursWorked        float64        `json:"hoursWorked"`
	OvertimeHours      float64        `json:"overtimeHours"`
	EarlyLeaveHours    float64        `json:"earlyLeaveHours"`
	Notes              string         `json:"notes,omitempty"`
	Status             WorkLogStatus  `json:"status"`
	CreatedAt          *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time     `json:"updatedAt,omitempty"`
}

type AttendanceRecord struct {
	ID           string        `json:"id"`
	StaffID      string        `json:"staffId"`
	WorkLogID    string        `json:"workLogId,omitempty"`
	EventID      string        `json:"eventId"`
	Date         string        `json:"date"`
	Status       WorkLogStatus `json:"status"`
	CheckInTime  *time.Time    `json:"checkInTime,omitempty"`
	CheckOutTime *time.Time    `json:"checkOutTime,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	CreatedAt    *time.Time    `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time    `json:"updatedAt,omitempty"`
}

type DateRequirement struct {
	Date      string   `json:"date"`
	Roles     []string `json:"roles"`
	TimeSlots []string `json:"timeSlots"`
}

type JobPosting struct {
	ID                       string            `json:"id"`
	Title                    string            `json:"title"`
	Location                 string            `json:"location"`
	Description              string            `json:"description"`
	Requirements             string            `json:"requirements"`
	Roles                    []string          `json:"roles"`
	Status                   string            `json:"status"`
	CreatedBy                string            `json:"createdBy"`
	SalaryType               string            `json:"salaryType,omitempty"`
	SalaryAmount             string            `json:"salaryAmount,omitempty"`
	DateSpecificRequirements []DateRequirement `json:"dateSpecificRequirements"`
	ApplicantsCount          int               `json:"applicantsCount"`
	MaxCapacity              int               `json:"maxCapacity"`
	EventType                string            `json:"eventType"`
	CreatedAt                *time.Time        `json:"createdAt,omitempty"`
	UpdatedAt                *time.Time        `json:"updatedAt,omitempty"`
}

type ApplicationStatus string

const (
	ApplicationApplied   ApplicationStatus = "applied"
	ApplicationConfirmed ApplicationStatus = "confirmed"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationCancelled ApplicationStatus = "cancelled"
)

type PreQuestionAnswer struct {
	QuestionID string `json:"questionId"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Required   bool   `json:"required"`
}

type Application struct {
	ID                 string              `json:"id"`
	ApplicantID        string              `json:"applicantId"`
	ApplicantName      string              `json:"applicantName"`
	ApplicantPhone     string              `json:"applicantPhone"`
	ApplicantEmail     string              `json:"applicantEmail"`
	EventID            string              `json:"eventId"`
	PostID             string              `json:"postId"`
	PostTitle          string              `json:"postTitle"`
	Experience         string              `json:"experience"`
	Status             ApplicationStatus   `json:"status"`
	AppliedAt          *time.Time          `json:"appliedAt,omitempty"`
	ProcessedAt        *time.Time          `json:"processedAt,omitempty"`
	Notes              string              `json:"notes"`
	AssignedDates      []string            `json:"assignedDates"`
	AssignedRoles      []string            `json:"assignedRoles"`
	AssignedTimes      []string            `json:"assignedTimes"`
	PreQuestionAnswers []PreQuestionAnswer `json:"preQuestionAnswers"`
	CreatedAt          *time.Time          `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time          `json:"updatedAt,omitempty"`
}

// Assignment is one positional entry of an application's assigned arrays.
type Assignment struct {
	Date string `json:"date"`
	Role string `json:"role"`
	Time string `json:"time"`
}

// Assignments zips AssignedDates, AssignedRoles and AssignedTimes by index.
// The result is as long as the shortest of the three.
func (a Application) Assignments() []Assignment {
	n := len(a.AssignedDates)
	if len(a.AssignedRoles) < n {
		n = len(a.AssignedRoles)
	}
	if len(a.AssignedTimes) < n {
		n = len(a.AssignedTimes)
	}
	out := make([]Assignment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Assignment{
			Date: a.AssignedDates[i],
			Role: a.AssignedRoles[i],
			Time: a.AssignedTimes[i],
		})
	}
	return out
}

type Tournament struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Date                string     `json:"date"`
	Location            string     `json:"location"`
	Status              string     `json:"status"`
	Description         string     `json:"description"`
	CreatedBy           string     `json:"createdBy"`
	MaxParticipants     int        `json:"maxParticipants"`
	CurrentParticipants int        `json:"currentParticipants"`
	EntryFee            float64    `json:"entryFee"`
	PrizePool           float64    `json:"prizePool"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}
