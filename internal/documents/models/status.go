package models

// Status is the document verification state.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusOCRComplete Status = "OCR_COMPLETE"
	StatusVerified    Status = "VERIFIED"
	StatusRejected    Status = "REJECTED"
)

var transitions = map[Status][]Status{
	StatusPending:     {StatusOCRComplete, StatusVerified, StatusRejected},
	StatusOCRComplete: {StatusVerified, StatusRejected},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusOCRComplete, StatusVerified, StatusRejected:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// AwaitingReview reports whether a reviewer still has to decide.
func (s Status) AwaitingReview() bool {
	return s == StatusPending || s == StatusOCRComplete
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
