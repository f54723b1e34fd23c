package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTransitionMatrix(t *testing.T) {
	legal := map[EnrollmentStatus]map[EnrollmentStatus]bool{
		EnrollmentStatusPending: {
			EnrollmentStatusApproved: true,
			EnrollmentStatusDenied:   true,
		},
		EnrollmentStatusDenied: {
			EnrollmentStatusApproved: true,
		},
	}

	for _, from := range EnrollmentStatuses {
		for _, to := range EnrollmentStatuses {
			want := legal[from][to]
			assert.Equal(t, want, from.ValidTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestValidTransitionNeverReflexive(t *testing.T) {
	for _, status := range EnrollmentStatuses {
		assert.False(t, status.ValidTransition(status), "%s -> %s", status, status)
	}
}

func TestCommitted(t *testing.T) {
	committed := map[EnrollmentStatus]bool{
		EnrollmentStatusApproved: true,
		EnrollmentStatusActive:   true,
	}
	for _, status := range EnrollmentStatuses {
		assert.Equal(t, committed[status], status.Committed(), "%s", status)
	}
}
