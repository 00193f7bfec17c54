package models

// UserSettings is the complete, canonical preferences record returned to callers.
type UserSettings struct {
	Notifications NotificationSettings `json:"notifications"`
	Privacy       PrivacySettings      `json:"privacy"`
	Security      SecuritySettings     `json:"security"`
	Currency      string               `json:"currency"`
	Theme         string               `json:"theme"`
	Language      string               `json:"language"`
	Timezone      string               `json:"timezone"`
}

type NotificationSettings struct {
	Email          bool `json:"email"`
	Push           bool `json:"push"`
	SMS            bool `json:"sms"`
	Marketing      bool `json:"marketing"`
	BookingUpdates bool `json:"booking_updates"`
}

type PrivacySettings struct {
	ProfileVisibility string `json:"profile_visibility"`
	ShowEmail         bool   `json:"show_email"`
	ShowPhone         bool   `json:"show_phone"`
}

type SecuritySettings struct {
	TwoFactorEnabled bool `json:"two_factor_enabled"`
	LoginAlerts      bool `json:"login_alerts"`
}

// SettingsPatch is the possibly-partial shape of a stored row or an update request.
// A nil field means "not set".
type SettingsPatch struct {
	Notifications *NotificationsPatch `json:"notifications,omitempty"`
	Privacy       *PrivacyPatch       `json:"privacy,omitempty" validate:"omitempty"`
	Security      *SecurityPatch      `json:"security,omitempty"`
	Currency      *string             `json:"currency,omitempty" validate:"omitempty,len=3"`
	Theme         *string             `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	Language      *string             `json:"language,omitempty" validate:"omitempty,min=2,max=10"`
	Timezone      *string             `json:"timezone,omitempty" validate:"omitempty,max=64"`
}

type NotificationsPatch struct {
	Email          *bool `json:"email,omitempty"`
	Push           *bool `json:"push,omitempty"`
	SMS            *bool `json:"sms,omitempty"`
	Marketing      *bool `json:"marketing,omitempty"`
	BookingUpdates *bool `json:"booking_updates,omitempty"`
}

type PrivacyPatch struct {
	ProfileVisibility *string `json:"profile_visibility,omitempty" validate:"omitempty,oneof=public private friends"`
	ShowEmail         *bool   `json:"show_email,omitempty"`
	ShowPhone         *bool   `json:"show_phone,omitempty"`
}

type SecurityPatch struct {
	TwoFactorEnabled *bool `json:"two_factor_enabled,omitempty"`
	LoginAlerts      *bool `json:"login_alerts,omitempty"`
}

// Patch returns a fully populated patch equal to s.
func (s UserSettings) Patch() SettingsPatch {
	n, p, sec := s.Notifications, s.Privacy, s.Security
	return SettingsPatch{
		Notifications: &NotificationsPatch{
			Email:          &n.Email,
			Push:           &n.Push,
			SMS:            &n.SMS,
			Marketing:      &n.Marketing,
			BookingUpdates: &n.BookingUpdates,
		},
		Privacy: &PrivacyPatch{
			ProfileVisibility: &p.ProfileVisibility,
			ShowEmail:         &p.ShowEmail,
			ShowPhone:         &p.ShowPhone,
		},
		Security: &SecurityPatch{
			TwoFactorEnabled: &sec.TwoFactorEnabled,
			LoginAlerts:      &sec.LoginAlerts,
		},
		Currency: &s.Currency,
		Theme:    &s.Theme,
		Language: &s.Language,
		Timezone: &s.Timezone,
	}
}
