package gateway

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"

	authgate "github.com/clinvia/go-authgate"
)

// defaultPhoneRegion backs phone normalization; the platform operates in
// Brazil and numbers arrive in local formats.
const defaultPhoneRegion = "BR"

// SignInRequest payload
type SignInRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// CreateUserRequest payload
type CreateUserRequest struct {
	Email    string   `json:"email" form:"email"`
	Password string   `json:"password" form:"password"`
	FullName string   `json:"full_name" form:"full_name"`
	Phone    string   `json:"phone" form:"phone"`
	Role     string   `json:"role" form:"role"`
	Roles    []string `json:"roles" form:"roles"`
}

// Validate will run validation rules
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.FullName,
			validation.Required,
			validation.Length(1, 200),
		),
	)
}

// Params normalizes the request into the shape forwarded upstream. The phone
// number is put into E.164 when it parses; otherwise it passes through
// untouched, the remote store accepts free-form phones.
func (r CreateUserRequest) Params() authgate.CreateUserParams {
	return authgate.CreateUserParams{
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Phone:    normalizePhone(r.Phone),
		Role:     r.Role,
		Roles:    r.Roles,
	}
}

// AssignRoleRequest payload
type AssignRoleRequest struct {
	UserID string `json:"user_id" form:"user_id"`
	Role   string `json:"role" form:"role"`
}

// Validate will run validation rules
func (r AssignRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.UserID,
			validation.Required,
			is.UUID,
		),
		validation.Field(
			&r.Role,
			validation.Required,
		),
	)
}

func normalizePhone(raw string) string {
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for the response body.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if fieldErrors, ok := err.(validation.Errors); ok {
		for field, fieldErr := range fieldErrors {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}
