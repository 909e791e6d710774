package models

import "time"

// User holds the account fields this service consumes. ReferredBy is a weak
// reference by code value, not a foreign key; a dangling code is tolerated
// and simply yields no referral benefit.
type User struct {
	ID           string  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Email        string  `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	FullName     string  `gorm:"column:full_name;type:varchar(255)" json:"full_name"`
	ReferralCode string  `gorm:"column:referral_code;type:varchar(32);not null;uniqueIndex" json:"referral_code"`
	ReferredBy   *string `gorm:"column:referred_by;type:varchar(32)" json:"referred_by"`
	// IsUnlimited and PackageExpiry form the temporary unlimited-access
	// window granted by the referral benefit engine.
	IsUnlimited   bool       `gorm:"column:is_unlimited;not null;default:false" json:"is_unlimited"`
	PackageExpiry *time.Time `gorm:"column:package_expiry" json:"package_expiry"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "app_user" }
