package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CounterDateLayout is the UTC calendar day stored in last_*_date columns.
const CounterDateLayout = "2006-01-02"

// User carries the account plus the per-variant counters the recording and payment
// flows update as side effects.
type User struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	DisplayName  string       `json:"display_name" gorm:"type:varchar(191);not null"`
	Email        string       `json:"email" gorm:"type:varchar(191);not null;uniqueIndex:ux_users_email"`
	PasswordHash string       `json:"-" gorm:"type:text"`
	Role         Role         `json:"role" gorm:"type:varchar(32);not null;default:user"`
	Suspended    bool         `json:"suspended" gorm:"not null;default:false"`

	TotalScripted       int64  `json:"total_scripted" gorm:"not null;default:0"`
	TotalFreeform       int64  `json:"total_freeform" gorm:"not null;default:0"`
	DailyScripted       int64  `json:"daily_scripted" gorm:"not null;default:0"`
	DailyFreeform       int64  `json:"daily_freeform" gorm:"not null;default:0"`
	DeletedScripted     int64  `json:"deleted_scripted" gorm:"not null;default:0"`
	DeletedFreeform     int64  `json:"deleted_freeform" gorm:"not null;default:0"`
	LastScriptedDate    string `json:"last_scripted_date" gorm:"type:varchar(10);not null;default:''"`
	LastFreeformDate    string `json:"last_freeform_date" gorm:"type:varchar(10);not null;default:''"`
	TotalPaidAmount     int64  `json:"total_paid_amount" gorm:"not null;default:0"`
	TotalPaidRecordings int64  `json:"total_paid_recordings" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
