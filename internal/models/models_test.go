package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomPrimaryImage(t *testing.T) {
	t.Run("NoImages", func(t *testing.T) {
		r := &Room{}
		assert.Nil(t, r.PrimaryImage())
	})

	t.Run("FlaggedWins", func(t *testing.T) {
		r := &Room{Images: []RoomImage{{URL: "a"}, {URL: "b", IsPrimary: true}}}
		require.NotNil(t, r.PrimaryImage())
		assert.Equal(t, "b", r.PrimaryImage().URL)
	})

	t.Run("FirstAsFallback", func(t *testing.T) {
		r := &Room{Images: []RoomImage{{URL: "a"}, {URL: "b"}}}
		assert.Equal(t, "a", r.PrimaryImage().URL)
	})
}

func TestUserSettingsPatch(t *testing.T) {
	s := UserSettings{
		Notifications: NotificationSettings{Email: true, SMS: true},
		Privacy:       PrivacySettings{ProfileVisibility: "private", ShowPhone: true},
		Security:      SecuritySettings{LoginAlerts: true},
		Currency:      "EUR",
		Theme:         "dark",
		Language:      "de",
		Timezone:      "Europe/Berlin",
	}

	p := s.Patch()
	require.NotNil(t, p.Notifications)
	require.NotNil(t, p.Privacy)
	require.NotNil(t, p.Security)
	assert.True(t, *p.Notifications.SMS)
	assert.False(t, *p.Notifications.Push)
	assert.Equal(t, "private", *p.Privacy.ProfileVisibility)
	assert.True(t, *p.Security.LoginAlerts)
	assert.Equal(t, "EUR", *p.Currency)
	assert.Equal(t, "Europe/Berlin", *p.Timezone)
}

func TestBookingIsCancelled(t *testing.T) {
	assert.True(t, (&Booking{Status: BookingStatusCancelled}).IsCancelled())
	assert.False(t, (&Booking{Status: BookingStatusPaid}).IsCancelled())
}
