package models

// Profile is the cached description of the logged in user.
// It may lag behind what the API knows about the user.
type Profile struct {
	ID          *int64  `json:"id,omitempty"`
	Email       string  `json:"email"`
	FullName    *string `json:"full_name,omitempty"`
	IsSuperuser bool    `json:"is_superuser"`

	// TenantID is the tenant a regular user is bound to. Superusers usually
	// have none and roam across tenants.
	TenantID *int64 `json:"tenant_id,omitempty"`
}

// Clone returns a deep copy of the profile, nil stays nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}

	clone := *p
	clone.ID = clonePtr(p.ID)
	clone.FullName = clonePtr(p.FullName)
	clone.TenantID = clonePtr(p.TenantID)

	return &clone
}

// BoundTenant returns the tenant a non superuser must operate in.
// Superusers and users without a tenant return false.
func (p *Profile) BoundTenant() (int64, bool) {
	if p == nil || p.IsSuperuser || p.TenantID == nil {
		return 0, false
	}
	return *p.TenantID, true
}

// ProfileHint carries the optional profile fields returned alongside a token.
// Every field is optional so absent values can be told apart from zero values.
type ProfileHint struct {
	ID          *int64  `json:"id,omitempty"`
	Email       *string `json:"email,omitempty"`
	FullName    *string `json:"full_name,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
	TenantID    *int64  `json:"tenant_id,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Equal reports whether two optional values are both absent or both set to the same value.
func Equal[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
