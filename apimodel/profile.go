package apimodel

// ProfileDetails are the optional fields kept next to the user record.
type ProfileDetails struct {
	Bio     *string `json:"bio,omitempty"`
	Company *string `json:"company,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

// Profile is returned by GET profile/.
type Profile struct {
	ID         int64           `json:"id"`
	Username   string          `json:"username"`
	Email      string          `json:"email"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	DateJoined string          `json:"date_joined,omitempty"`
	Profile    *ProfileDetails `json:"profile,omitempty"`

	UploadCount  int     `json:"upload_count"`
	TotalStorage int64   `json:"total_storage"` // bytes
	StorageMB    float64 `json:"storage_mb"`
}

// ProfileUpdate is a partial update for PUT profile/. Nil fields are left
// unchanged by the service.
type ProfileUpdate struct {
	Email     *string         `json:"email,omitempty"`
	FirstName *string         `json:"first_name,omitempty"`
	LastName  *string         `json:"last_name,omitempty"`
	Profile   *ProfileDetails `json:"profile,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Email == nil && u.FirstName == nil && u.LastName == nil && u.Profile == nil
}

// ChangePasswordRequest is the body of POST profile/password/.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}
