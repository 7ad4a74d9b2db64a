package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenIssuedBeforePasswordChange(t *testing.T) {
	changed := time.Date(2024, 5, 1, 12, 0, 0, 500*int(time.Millisecond), time.UTC)

	tests := []struct {
		name    string
		changed *time.Time
		issued  time.Time
		want    bool
	}{
		{name: "password never changed", issued: changed.Add(-time.Hour), want: false},
		{name: "earlier in the same second", changed: &changed, issued: changed.Add(-200 * time.Millisecond), want: true},
		{name: "same millisecond", changed: &changed, issued: changed, want: false},
		{name: "one millisecond earlier after decoding", changed: &changed, issued: changed.Add(-time.Millisecond), want: false},
		{name: "two milliseconds earlier", changed: &changed, issued: changed.Add(-2 * time.Millisecond), want: true},
		{name: "after change", changed: &changed, issued: changed.Add(time.Millisecond), want: false},
		{name: "change stored with microseconds", changed: ptrTime(changed.Add(700 * time.Microsecond)), issued: changed, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{PasswordChangedAt: tt.changed}
			assert.Equal(t, tt.want, u.TokenIssuedBeforePasswordChange(tt.issued))
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
