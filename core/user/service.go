package user

import (
	"context"
	"time"

	validatorlib "github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (User, error)
		SetUserPassword(ctx context.Context, id int, hash []byte, exec ...core.DBExecutor) error
		SetLastLogin(ctx context.Context, id int, t time.Time, exec ...core.DBExecutor) error
	}

	Service struct {
		repo     Repository
		validate *validatorlib.Validate
	}
)

func NewService(repo Repository, validate *validatorlib.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.repo.CheckUsernameUniqueness(ctx, core.CleanString(nu.Username, true)); err != nil {
		if errors.Cause(err) == ErrUsernameExists {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return User{}, errors.Wrap(err, "checking username uniqueness")
	}

	usr := User{
		Username:  core.CleanString(nu.Username, true),
		CreatedAt: time.Now().UTC(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

// Authenticate checks the credentials and records the login time.
// It fails with ErrNotFound for an unknown username or a wrong password,
// without telling the two apart.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	usr, err := svc.repo.GetUserByUsername(ctx, core.CleanString(username, true))
	if err != nil {
		return User{}, err
	}
	if err = usr.CheckPassword(password); err != nil {
		return User{}, ErrNotFound
	}
	usr.LastLogin = time.Now().UTC()
	if err = svc.repo.SetLastLogin(ctx, usr.ID, usr.LastLogin); err != nil {
		return User{}, errors.Wrap(err, "recording last login")
	}
	return usr, nil
}

func (svc *Service) GetByUsername(ctx context.Context, username string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(username, true))
}

func (svc *Service) ResetPassword(ctx context.Context, username, password string) error {
	usr, err := svc.repo.GetUserByUsername(ctx, core.CleanString(username, true))
	if err != nil {
		return err
	}
	if err = usr.SetPassword(password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return errors.Wrap(svc.repo.SetUserPassword(ctx, usr.ID, usr.PasswordHash), "updating password")
}
