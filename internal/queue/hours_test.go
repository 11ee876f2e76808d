package queue

import (
	"context"
	"testing"
	"time"

	"hospital-queue/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestIsOpen(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2026, 1, 5, hour, minute, 0, 0, time.UTC)
	}
	tests := []struct {
		name          string
		opens, closes string
		now           time.Time
		want          bool
	}{
		{"no hours", "", "", at(3, 0), true},
		{"inside day window", "07:00", "15:00", at(9, 30), true},
		{"at opening", "07:00:00", "15:00:00", at(7, 0), true},
		{"at closing", "07:00", "15:00", at(15, 0), false},
		{"before opening", "07:00", "15:00", at(6, 59), false},
		{"night clinic late evening", "22:00", "02:00", at(23, 0), true},
		{"night clinic after midnight", "22:00", "02:00", at(1, 30), true},
		{"night clinic afternoon", "22:00", "02:00", at(14, 0), false},
		{"garbage", "seven", "15:00", at(9, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsOpen(tt.opens, tt.closes, tt.now))
		})
	}
}

func TestStore_Join_OutsideOpeningHours(t *testing.T) {
	log := zerolog.Nop()
	lab := models.Service{ID: 3, Name: "Laboratory", BaselineMinutes: 15, IsActive: true, OpensAt: "07:00", ClosesAt: "12:00"}
	evening := func() time.Time { return time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC) }
	store := NewStore(log, NewMemoryCatalog(lab), &SequenceNumbers{}, NewEstimator(log, nil, 0), WithClock(evening))

	_, err := store.Join(context.Background(), JoinRequest{ServiceID: 3})

	require.ErrorIs(t, err, ErrServiceClosed)
}
