// Package settings resolves a user's preferences to a complete record.
package settings

import "staybook/internal/models"

// Defaults is the record every user starts with.
func Defaults() models.UserSettings {
	return models.UserSettings{
		Notifications: models.NotificationSettings{
			Email:          true,
			Push:           true,
			SMS:            false,
			Marketing:      false,
			BookingUpdates: true,
		},
		Privacy: models.PrivacySettings{
			ProfileVisibility: "public",
			ShowEmail:         false,
			ShowPhone:         false,
		},
		Security: models.SecuritySettings{
			TwoFactorEnabled: false,
			LoginAlerts:      true,
		},
		Currency: "USD",
		Theme:    "light",
		Language: "en",
		Timezone: "UTC",
	}
}

// Reconcile overlays the set fields of stored onto base. Nil sub-objects and
// nil leaves keep the base value, so the result is always complete.
func Reconcile(base models.UserSettings, stored *models.SettingsPatch) models.UserSettings {
	out := base
	if stored == nil {
		return out
	}

	if n := stored.Notifications; n != nil {
		setBool(&out.Notifications.Email, n.Email)
		setBool(&out.Notifications.Push, n.Push)
		setBool(&out.Notifications.SMS, n.SMS)
		setBool(&out.Notifications.Marketing, n.Marketing)
		setBool(&out.Notifications.BookingUpdates, n.BookingUpdates)
	}
	if p := stored.Privacy; p != nil {
		setString(&out.Privacy.ProfileVisibility, p.ProfileVisibility)
		setBool(&out.Privacy.ShowEmail, p.ShowEmail)
		setBool(&out.Privacy.ShowPhone, p.ShowPhone)
	}
	if s := stored.Security; s != nil {
		setBool(&out.Security.TwoFactorEnabled, s.TwoFactorEnabled)
		setBool(&out.Security.LoginAlerts, s.LoginAlerts)
	}
	setString(&out.Currency, stored.Currency)
	setString(&out.Theme, stored.Theme)
	setString(&out.Language, stored.Language)
	setString(&out.Timezone, stored.Timezone)
	return out
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// setString ignores empty strings so a blank column never erases a default.
func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}
