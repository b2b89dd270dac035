package models

// Tenant represents a studio (organization) as returned by the API.
// All tenant scoped data is partitioned by its ID.
type Tenant struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	City         *string `json:"city,omitempty"`
	Country      *string `json:"country,omitempty"`
	SidebarTheme *string `json:"sidebar_theme,omitempty"`

	// CreatedAt is kept as sent, the API omits the zone offset.
	CreatedAt string `json:"created_at,omitempty"`

	AdminIsSuperuser *bool `json:"admin_is_superuser,omitempty"`
}
