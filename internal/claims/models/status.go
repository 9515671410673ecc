package models

// Status is the claim session lifecycle state.
type Status string

const (
	StatusStarted           Status = "STARTED"
	StatusDocumentsUploaded Status = "DOCUMENTS_UPLOADED"
	StatusUnderReview       Status = "UNDER_REVIEW"
	StatusVerified          Status = "VERIFIED"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
)

// transitions is the complete allow-list. Anything absent is illegal.
var transitions = map[Status][]Status{
	StatusStarted:           {StatusDocumentsUploaded},
	StatusDocumentsUploaded: {StatusUnderReview, StatusRejected},
	StatusUnderReview:       {StatusVerified, StatusRejected},
	StatusVerified:          {StatusApproved},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusStarted, StatusDocumentsUploaded, StatusUnderReview,
		StatusVerified, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus accepts only the closed status set.
func ParseStatus(v string) (Status, bool) {
	s := Status(v)
	return s, s.IsValid()
}
