package records

// StaffFromDocument maps a staff document, keying on the document id when
// staffId or userId are absent.
func StaffFromDocument(doc Document) Staff {
	d := dataOf(doc)
	return Staff{
		ID:           doc.ID,
		StaffID:      strOr(d, "staffId", doc.ID),
		UserID:       strOr(d, "userId", doc.ID),
		Name:         str(d, "name"),
		Role:         str(d, "role"),
		Phone:        str(d, "phone"),
		Email:        str(d, "email"),
		AssignedRole: str(d, "assignedRole"),
		AssignedTime: str(d, "assignedTime"),
		AssignedDate: str(d, "assignedDate"),
		PostingID:    str(d, "postingId"),
		Gender:       str(d, "gender"),
		Age:          optInt(d, "age"),
		Experience:   str(d, "experience"),
		Nationality:  str(d, "nationality"),
		Region:       str(d, "region"),
		History:      str(d, "history"),
		Notes:        str(d, "notes"),
		BankName:     str(d, "bankName"),
		BankAccount:  str(d, "bankAccount"),
		CreatedAt:    timeAt(d, "createdAt"),
		UpdatedAt:    timeAt(d, "updatedAt"),
	}
}

// WorkLogFromDocument maps a workLog document. Contact, bank and profile
// fields are read from staffInfo first, then the staff-prefixed top-level
// field, then the bare top-level field.
func WorkLogFromDocument(doc Document) WorkLog {
	d := dataOf(doc)
	info := nested(d, "staffInfo")
	pick := func(field, prefixed string) string {
		if s := str(info, field); s != "" {
			return s
		}
		return firstStr(d, prefixed, field)
	}

	status, ok := ParseWorkLogStatus(str(d, "status"))
	if !ok {
		status = WorkLogNotStarted
	}
	role := firstStr(d, "role", "workType")
	age := optInt(info, "age")
	if age == nil {
		age = optInt(d, "staffAge", "age")
	}

	return WorkLog{
		ID:        doc.ID,
		StaffID:   str(d, "staffId"),
		StaffName: str(d, "staffName"),
		EventID:   str(d, "eventId"),
		Date:      str(d, "date"),
		StaffInfo: StaffInfo{
			UserID:        firstStr(d, "staffId", "userId"),
			Name:          str(d, "staffName"),
			Email:         pick("email", "staffEmail"),
			Phone:         pick("phone", "staffPhone"),
			UserRole:      str(d, "userRole"),
			JobRole:       strSlice(d, "jobRole"),
			IsActive:      boolOr(d, "isActive", true),
			BankName:      pick("bankName", "staffBankName"),
			AccountNumber: pick("accountNumber", "staffAccountNumber"),
			Gender:        pick("gender", "staffGender"),
			Age:           age,
			Experience:    pick("experience", "staffExperience"),
			Nationality:   pick("nationality", "staffNationality"),
			Region:        pick("region", "staffRegion"),
		},
		AssignmentInfo: AssignmentInfo{
			Role:         firstOr(role, "dealer"),
			AssignedRole: str(d, "assignedRole"),
			AssignedTime: str(d, "assignedTime"),
			AssignedDate: str(d, "assignedDate"),
			PostingID:    firstStr(d, "postingId", "eventId"),
			ManagerID:    str(d, "managerId"),
			Type:         strOr(d, "type", "staff"),
		},
		ScheduledStartTime: timeAt(d, "scheduledStartTime"),
		ScheduledEndTime:   timeAt(d, "scheduledEndTime"),
		ActualStartTime:    timeAt(d, "actualStartTime"),
		ActualEndTime:      timeAt(d, "actualEndTime"),
		Role:               role,
		AssignedTime:       str(d, "assignedTime"),
		HoursWorked:        floatOr(d, 0, "hoursWorked", "totalWorkHours"),
		OvertimeHours:      floatOr(d, 0, "overtimeHours"),
		EarlyLeaveHours:    floatOr(d, 0, "earlyLeaveHours"),
		Notes:              str(d, "notes"),
		Status:             status,
		CreatedAt:          timeAt(d, "createdAt"),
		UpdatedAt:          timeAt(d, "updatedAt"),
	}
}

func AttendanceRecordFromDocument(doc Document) AttendanceRecord {
	d := dataOf(doc)
	status, ok := ParseWorkLogStatus(str(d, "status"))
	if !ok {
		status = WorkLogNotStarted
	}
	return AttendanceRecord{
		ID:           doc.ID,
		StaffID:      str(d, "staffId"),
		WorkLogID:    str(d, "workLogId"),
		EventID:      str(d, "eventId"),
		Date:         str(d, "date"),
		Status:       status,
		CheckInTime:  timeAt(d, "checkInTime"),
		CheckOutTime: timeAt(d, "checkOutTime"),
		Notes:        str(d, "notes"),
		CreatedAt:    timeAt(d, "createdAt", "timestamp"),
		UpdatedAt:    timeAt(d, "updatedAt"),
	}
}

func JobPostingFromDocument(doc Document) JobPosting {
	d := dataOf(doc)
	reqs := []DateRequirement{}
	for _, r := range mapSlice(d, "dateSpecificRequirements") {
		reqs = append(reqs, DateRequirement{
			Date:      str(r, "date"),
			Roles:     strSlice(r, "roles"),
			TimeSlots: strSlice(r, "timeSlots"),
		})
	}
	return JobPosting{
		ID:                       doc.ID,
		Title:                    str(d, "title"),
		Location:                 str(d, "location"),
		Description:              str(d, "description"),
		Requirements:             str(d, "requirements"),
		Roles:                    strSlice(d, "roles"),
		Status:                   strOr(d, "status", "open"),
		CreatedBy:                str(d, "createdBy"),
		SalaryType:               str(d, "salaryType"),
		SalaryAmount:             str(d, "salaryAmount"),
		DateSpecificRequirements: reqs,
		ApplicantsCount:          intOr(d, "applicantsCount", 0),
		MaxCapacity:              intOr(d, "maxCapacity", 50),
		EventType:                strOr(d, "eventType", "tournament"),
		CreatedAt:                timeAt(d, "createdAt"),
		UpdatedAt:                timeAt(d, "updatedAt"),
	}
}

func ApplicationFromDocument(doc Document) Application {
	d := dataOf(doc)
	status := ApplicationStatus(str(d, "status"))
	switch status {
	case ApplicationApplied, ApplicationConfirmed, ApplicationRejected, ApplicationCancelled:
	default:
		status = ApplicationApplied
	}
	answers := []PreQuestionAnswer{}
	for _, a := range mapSlice(d, "preQuestionAnswers") {
		answers = append(answers, PreQuestionAnswer{
			QuestionID: str(a, "questionId"),
			Question:   str(a, "question"),
			Answer:     str(a, "answer"),
			Required:   boolOr(a, "required", false),
		})
	}
	return Application{
		ID:                 doc.ID,
		ApplicantID:        str(d, "applicantId"),
		ApplicantName:      str(d, "applicantName"),
		ApplicantPhone:     str(d, "applicantPhone"),
		ApplicantEmail:     str(d, "applicantEmail"),
		EventID:            str(d, "eventId"),
		PostID:             firstStr(d, "postId", "eventId"),
		PostTitle:          str(d, "postTitle"),
		Experience:         str(d, "experience"),
		Status:             status,
		AppliedAt:          timeAt(d, "appliedAt", "createdAt"),
		ProcessedAt:        timeAt(d, "processedAt"),
		Notes:              str(d, "notes"),
		AssignedDates:      strSlice(d, "assignedDates"),
		AssignedRoles:      strSlice(d, "assignedRoles"),
		AssignedTimes:      strSlice(d, "assignedTimes"),
		PreQuestionAnswers: answers,
		CreatedAt:          timeAt(d, "createdAt"),
		UpdatedAt:          timeAt(d, "updatedAt"),
	}
}

func TournamentFromDocument(doc Document) Tournament {
	d := dataOf(doc)
	return Tournament{
		ID:                  doc.ID,
		Title:               firstStr(d, "title", "name"),
		Date:                str(d, "date"),
		Location:            str(d, "location"),
		Status:              strOr(d, "status", "scheduled"),
		Description:         str(d, "description"),
		CreatedBy:           str(d, "createdBy"),
		MaxParticipants:     intOr(d, "maxParticipants", 100),
		CurrentParticipants: intOr(d, "currentParticipants", 0),
		EntryFee:            floatOr(d, 0, "entryFee"),
		PrizePool:           floatOr(d, 0, "prizePool"),
		CreatedAt:           timeAt(d, "createdAt"),
		UpdatedAt:           timeAt(d, "updatedAt"),
	}
}

func dataOf(doc Document) map[string]interface{} {
	if doc.Data == nil {
		return map[string]interface{}{}
	}
	return doc.Data
}

func firstOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
