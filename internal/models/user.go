package models

import "time"

// CrudAction tags the kind of mutation behind a notification.
type CrudAction string

const (
	ActionCreate CrudAction = "CREATE"
	ActionUpdate CrudAction = "UPDATE"
	ActionDelete CrudAction = "DELETE"
)

// User represents a directory entry managed through the user screen.
// The remote store assigns the ID and creation timestamp when it is
// reachable; in local-only mode both come from the process.
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"type:varchar(100)" validate:"required,person_name"`
	Email       string    `json:"email" gorm:"type:varchar(255)" validate:"required,simple_email"`
	Age         string    `json:"age" gorm:"type:varchar(8)" validate:"required,age_range"`
	DeviceToken string    `json:"device_token,omitempty" gorm:"type:varchar(512)"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserForm is the request payload for add and update operations. Age stays
// string-encoded the way the form field delivers it.
type UserForm struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Age         string `json:"age"`
	DeviceToken string `json:"device_token,omitempty"`
}
