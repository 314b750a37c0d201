package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/rkabuya/evaldesk/core/evaluation"
)

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	// MyResultsRequest is how a participant asks for their own results:
	// just the phone number they were registered with.
	MyResultsRequest struct {
		Phone string `json:"phone" validate:"required,phone"`
	}

	MyResultsResponse struct {
		evaluation.Summary
		HelpText string `json:"help_text"`
	}

	SettingRequest struct {
		Value string `json:"value"`
	}

	SettingResponse struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
)

func (lr LoginRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(lr)
}

func (mr MyResultsRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(mr)
}
