package accounts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{
			name: "sqlite unique",
			err:  errors.New("UNIQUE constraint failed: users.username"),
			want: true,
		},
		{
			name: "postgres unique",
			err:  errors.New(`duplicate key value violates unique constraint "users_email_key"`),
			want: true,
		},
		{
			name: "sqlite not null is not a conflict",
			err:  errors.New("NOT NULL constraint failed: users.status"),
			want: false,
		},
		{
			name: "sqlite check is not a conflict",
			err:  errors.New("CHECK constraint failed: users"),
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("database is locked"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestInvalidatedByLogout(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 6, 1, 12, 0, 0, 500000000, time.UTC)

	tests := []struct {
		name        string
		iat         time.Time
		loggedOutAt *time.Time
		want        bool
	}{
		{name: "never logged out", iat: at, loggedOutAt: nil, want: false},
		{name: "issued after logout", iat: at.Add(time.Microsecond), loggedOutAt: &at, want: false},
		{name: "issued before logout", iat: at, loggedOutAt: ptrTime(at.Add(time.Microsecond)), want: true},
		{name: "issued exactly at logout", iat: at, loggedOutAt: &at, want: true},
		{name: "no issue instant to compare", iat: time.Time{}, loggedOutAt: &at, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, invalidatedByLogout(tt.iat, tt.loggedOutAt))
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
