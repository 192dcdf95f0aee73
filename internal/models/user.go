package models

// User represents a registered community member.
//
// VerificationCode is a one-time code delivered at registration; it is
// cleared the moment the account is verified.
type User struct {
	BaseModel
	FullName         string `json:"full_name"`
	Username         string `gorm:"uniqueIndex" json:"username"`
	Email            string `json:"email"`
	Phone            string `gorm:"index" json:"phone"`
	Hcode            string `json:"hcode"`
	ProfilePicURL    string `json:"profile_pic_url,omitempty"`
	PasswordHash     string `json:"-"`
	IsVerified       bool   `json:"is_verified"`
	VerificationCode string `json:"-"`
}
