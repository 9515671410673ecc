package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "estateclaims/pkg/domain"
	dErrors "estateclaims/pkg/domain-errors"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(id.NewSessionID(), id.NewUserID(), "Ada Lovelace", "", "daughter", true, "", now)
	require.NoError(t, err)
	return s
}

func withStatus(t *testing.T, status Status) *Session {
	s := newSession(t)
	s.Status = status
	return s
}

func TestNewSession(t *testing.T) {
	claimant := id.NewUserID()
	tests := []struct {
		name         string
		deceased     string
		relationship string
		consent      bool
		wantMsg      string
	}{
		{"empty deceased name", "  ", "son", true, "deceased name is required"},
		{"empty relationship", "Ada", "", true, "relationship is required"},
		{"consent missing", "Ada", "son", false, "consent is required to open a claim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(id.NewSessionID(), claimant, tt.deceased, "", tt.relationship, tt.consent, "", now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.wantMsg, dErrors.MessageOf(err))
		})
	}

	t.Run("valid session starts with consent timestamp", func(t *testing.T) {
		s := newSession(t)
		assert.Equal(t, StatusStarted, s.Status)
		assert.True(t, s.ConsentGiven)
		require.NotNil(t, s.ConsentAt)
		assert.Equal(t, now, *s.ConsentAt)
		assert.Equal(t, int64(1), s.Version)
	})
}

func TestTransitionTable(t *testing.T) {
	legal := map[Status][]Status{
		StatusStarted:           {StatusDocumentsUploaded},
		StatusDocumentsUploaded: {StatusUnderReview, StatusRejected},
		StatusUnderReview:       {StatusVerified, StatusRejected},
		StatusVerified:          {StatusApproved},
	}
	all := []Status{StatusStarted, StatusDocumentsUploaded, StatusUnderReview, StatusVerified, StatusApproved, StatusRejected}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusVerified.IsTerminal())
}

func TestConsent(t *testing.T) {
	s := newSession(t)

	changed, err := s.WithdrawConsent(now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, s.ConsentGiven)
	assert.Nil(t, s.ConsentAt)
	assert.True(t, dErrors.HasCode(s.CanAttachDocuments(), dErrors.CodePrecondition))

	changed, err = s.WithdrawConsent(now)
	require.NoError(t, err)
	assert.False(t, changed)

	later := now.Add(2 * time.Minute)
	changed, err = s.GrantConsent(later)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, later, *s.ConsentAt)
	assert.NoError(t, s.CanAttachDocuments())

	s.Status = StatusUnderReview
	_, err = s.WithdrawConsent(later)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestSubmitDocuments(t *testing.T) {
	t.Run("idempotent once submitted", func(t *testing.T) {
		s := newSession(t)
		changed, err := s.SubmitDocuments(now)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.SubmitDocuments(now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, StatusDocumentsUploaded, s.Status)
	})

	t.Run("illegal after review started", func(t *testing.T) {
		s := withStatus(t, StatusUnderReview)
		_, err := s.SubmitDocuments(now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestBeginReview(t *testing.T) {
	reviewer := id.NewUserID()

	s := withStatus(t, StatusDocumentsUploaded)
	require.NoError(t, s.BeginReview(reviewer, now))
	assert.Equal(t, StatusUnderReview, s.Status)
	require.NotNil(t, s.AssignedReviewer)
	assert.Equal(t, reviewer, *s.AssignedReviewer)

	for _, status := range []Status{StatusStarted, StatusUnderReview, StatusVerified, StatusApproved, StatusRejected} {
		s := withStatus(t, status)
		err := s.BeginReview(reviewer, now)
		assert.Truef(t, dErrors.HasCode(err, dErrors.CodeInvalidState), "from %s", status)
	}
}

func TestRecordVerificationOutcome(t *testing.T) {
	t.Run("verified", func(t *testing.T) {
		s := withStatus(t, StatusUnderReview)
		changed, err := s.RecordVerificationOutcome(true, "", now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusVerified, s.Status)
	})

	t.Run("rejection requires notes", func(t *testing.T) {
		s := withStatus(t, StatusUnderReview)
		_, err := s.RecordVerificationOutcome(false, " ", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, StatusUnderReview, s.Status)
	})

	t.Run("identical repeat is a no-op", func(t *testing.T) {
		s := withStatus(t, StatusRejected)
		s.Notes = "death certificate illegible"
		changed, err := s.RecordVerificationOutcome(false, "another note", now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, "death certificate illegible", s.Notes)
	})

	t.Run("conflicting repeat is a state error", func(t *testing.T) {
		s := withStatus(t, StatusVerified)
		_, err := s.RecordVerificationOutcome(false, "changed my mind", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		assert.Equal(t, StatusVerified, s.Status)
	})

	t.Run("not under review", func(t *testing.T) {
		s := withStatus(t, StatusDocumentsUploaded)
		_, err := s.RecordVerificationOutcome(true, "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestApproveAndEligibility(t *testing.T) {
	s := withStatus(t, StatusUnderReview)
	assert.False(t, EligibleForDiscovery(s))
	assert.True(t, dErrors.HasCode(s.Approve(now), dErrors.CodeInvalidState))

	s.Status = StatusVerified
	assert.True(t, EligibleForDiscovery(s))
	require.NoError(t, s.Approve(now))
	assert.Equal(t, StatusApproved, s.Status)
	assert.True(t, EligibleForDiscovery(s))
}

func TestRejectSubmission(t *testing.T) {
	s := withStatus(t, StatusDocumentsUploaded)
	assert.True(t, dErrors.HasCode(s.RejectSubmission("", now), dErrors.CodeValidation))
	require.NoError(t, s.RejectSubmission("duplicate claim", now))
	assert.Equal(t, StatusRejected, s.Status)

	s = withStatus(t, StatusUnderReview)
	assert.True(t, dErrors.HasCode(s.RejectSubmission("x", now), dErrors.CodeInvalidState))
}

func TestClone(t *testing.T) {
	s := newSession(t)
	reviewer := id.NewUserID()
	s.AssignedReviewer = &reviewer

	c := s.Clone()
	*c.ConsentAt = now.Add(time.Hour)
	*c.AssignedReviewer = id.NewUserID()
	assert.Equal(t, now, *s.ConsentAt)
	assert.Equal(t, reviewer, *s.AssignedReviewer)
}
