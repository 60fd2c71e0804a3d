package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus gates what an account can do. Accounts are never deleted,
// only moved through statuses.
type UserStatus = string

const (
	// UserStatusPending is a registered account awaiting OTP verification
	UserStatusPending UserStatus = "pending"
	// UserStatusActive is a verified account that can log in
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended is an account blocked by an administrator
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusDisabled is a terminal account state
	UserStatusDisabled UserStatus = "disabled"
)

// statusTransitions is the allowed lifecycle graph. Disabled is terminal.
var statusTransitions = map[UserStatus]map[UserStatus]struct{}{
	UserStatusPending: {
		UserStatusActive:   {},
		UserStatusDisabled: {},
	},
	UserStatusActive: {
		UserStatusSuspended: {},
		UserStatusDisabled:  {},
	},
	UserStatusSuspended: {
		UserStatusActive:   {},
		UserStatusDisabled: {},
	},
}

// CanTransition reports whether a status change is allowed.
func CanTransition(from, to UserStatus) bool {
	allowed, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// User is the account model. The role is immutable after creation; update
// paths never touch the user_role column.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name           string     `bun:"name,notnull" json:"name,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string     `bun:"phone_number,notnull,unique" json:"phone_number,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Status         UserStatus `bun:"status,notnull" json:"status,omitempty"`
	EmailVerified  bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	PhoneVerified  bool       `bun:"is_phone_verified" json:"is_phone_verified,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	SuspendedAt    *time.Time `bun:"suspended_at,nullzero" json:"suspended_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`

	FarmerProfile *FarmerProfile `bun:"rel:has-one,join:id=user_id" json:"farmer_profile,omitempty"`
	VetProfile    *VetProfile    `bun:"rel:has-one,join:id=user_id" json:"vet_profile,omitempty"`
}

// EnsureStatus defaults the zero value to pending, the state every new
// account starts in.
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusPending
	}
}

// IsVerified reports whether both contact channels were confirmed.
func (u *User) IsVerified() bool {
	return u.EmailVerified && u.PhoneVerified
}

// CanLogin reports whether the account may authenticate.
func (u *User) CanLogin() bool {
	return u.Status == UserStatusActive && u.IsVerified()
}

// FarmerProfile holds farmer-specific attributes. Role data lives beside the
// account rather than in a subclassed user table.
type FarmerProfile struct {
	bun.BaseModel `bun:"table:farmer_profiles,alias:fpr"`

	UserID             uuid.UUID  `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	FarmName           string     `bun:"farm_name" json:"farm_name,omitempty"`
	FarmType           string     `bun:"farm_type" json:"farm_type,omitempty"`
	RegistrationNumber string     `bun:"registration_number,unique,nullzero" json:"registration_number,omitempty"`
	District           string     `bun:"district" json:"district,omitempty"`
	State              string     `bun:"state" json:"state,omitempty"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// VetProfile holds veterinarian-specific attributes.
type VetProfile struct {
	bun.BaseModel `bun:"table:vet_profiles,alias:vpr"`

	UserID          uuid.UUID  `bun:"user_id,pk,type:uuid" json:"user_id,omitempty"`
	LicenseNo       string     `bun:"license_no,notnull,unique" json:"license_no,omitempty"`
	Specialization  string     `bun:"specialization" json:"specialization,omitempty"`
	Qualification   string     `bun:"qualification" json:"qualification,omitempty"`
	ExperienceYears int        `bun:"experience_years" json:"experience_years,omitempty"`
	ClinicName      string     `bun:"clinic_name" json:"clinic_name,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
