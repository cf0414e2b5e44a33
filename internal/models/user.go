package models

type User struct {
	BaseModel

	Hashkey       string  `gorm:"size:8;uniqueIndex;not null" json:"hashkey"`
	Username      string  `gorm:"uniqueIndex;not null" json:"username"`
	Email         string  `gorm:"uniqueIndex;not null" json:"email"`
	GoogleID      *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	Name          string  `json:"name"`
	Picture       string  `json:"picture"`
	VerifiedEmail bool    `gorm:"not null;default:false" json:"verified_email"`

	// Relationships
	Surveys []Survey `gorm:"foreignKey:CreatorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
