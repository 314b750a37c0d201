package user

import (
	"time"

	validatorlib "github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// User is an administrator account. Participants are not users; they only
// ever authenticate with their phone number.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash []byte    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastLogin    time.Time `db:"last_login" json:"last_login"`
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password))
}

type NewUser struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}

func (nu NewUser) Validate(validate *validatorlib.Validate) error {
	return validate.Struct(nu)
}
