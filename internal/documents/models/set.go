package models

// MissingRequired lists required catalog types without a non-rejected
// document. Submission is allowed only when it is empty.
func MissingRequired(docs []*Document) []DocType {
	present := make(map[DocType]bool)
	for _, d := range docs {
		if d.Status != StatusRejected {
			present[d.Type] = true
		}
	}
	var missing []DocType
	for _, t := range RequiredTypes() {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// IsComplete reports whether every required type has a VERIFIED document.
func IsComplete(docs []*Document) bool {
	verified := make(map[DocType]bool)
	for _, d := range docs {
		if d.Status == StatusVerified {
			verified[d.Type] = true
		}
	}
	for _, t := range RequiredTypes() {
		if !verified[t] {
			return false
		}
	}
	return true
}

// Resolution is the aggregate review outcome of a session's documents.
type Resolution struct {
	Resolved    bool
	AllVerified bool
	// Failed lists required types left with only rejected documents.
	Failed []DocType
}

// Resolve decides whether the set has a final outcome: complete, or some
// required type can no longer be satisfied without a re-upload.
func Resolve(docs []*Document) Resolution {
	if failed := MissingRequired(docs); len(failed) > 0 {
		return Resolution{Resolved: true, Failed: failed}
	}
	if IsComplete(docs) {
		return Resolution{Resolved: true, AllVerified: true}
	}
	return Resolution{}
}
