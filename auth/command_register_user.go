package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used when a phone number omits its country prefix.
const DefaultPhoneRegion = "IN"

type RegisterUserMessage struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	UseHashid bool

	// farmer profile
	FarmName           string `json:"farm_name"`
	FarmType           string `json:"farm_type"`
	RegistrationNumber string `json:"registration_number"`
	District           string `json:"district"`
	State              string `json:"state"`

	// veterinarian profile
	LicenseNo       string `json:"license_no"`
	Specialization  string `json:"specialization"`
	Qualification   string `json:"qualification"`
	ExperienceYears int    `json:"experience_years"`
	ClinicName      string `json:"clinic_name"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates the account and its role profile in one
// transaction. Accounts start pending until the verification code is
// consumed.
type RegisterUserHandler struct {
	repo RepositoryManager
}

func NewRegisterUserHandler(repo RepositoryManager) *RegisterUserHandler {
	return &RegisterUserHandler{repo: repo}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	role := event.Role
	if role == "" {
		role = RoleFarmer
	}

	if !IsValidRole(role) {
		return nil, goerrors.New("unknown role", goerrors.CategoryValidation).
			WithTextCode("INVALID_ROLE").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"role": event.Role})
	}

	user := &User{
		Name:  strings.TrimSpace(event.Name),
		Email: strings.ToLower(strings.TrimSpace(event.Email)),
		Role:  role,
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		user.PasswordHash = hash

		if event.Phone != "" {
			phone, err := normalizePhone(event.Phone)
			if err != nil {
				return err
			}
			user.Phone = phone
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(user.Email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		switch role {
		case RoleFarmer:
			profile := &FarmerProfile{
				UserID:             user.ID,
				FarmName:           event.FarmName,
				FarmType:           event.FarmType,
				RegistrationNumber: event.RegistrationNumber,
				District:           event.District,
				State:              event.State,
			}
			if _, err := h.repo.FarmerProfiles().CreateTx(ctx, tx, profile); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create farmer profile")
			}
		case RoleVeterinarian:
			if event.LicenseNo == "" {
				return goerrors.New("license number is required", goerrors.CategoryValidation).
					WithTextCode("LICENSE_REQUIRED").
					WithCode(goerrors.CodeBadRequest)
			}
			profile := &VetProfile{
				UserID:          user.ID,
				LicenseNo:       event.LicenseNo,
				Specialization:  event.Specialization,
				Qualification:   event.Qualification,
				ExperienceYears: event.ExperienceYears,
				ClinicName:      event.ClinicName,
			}
			if _, err := h.repo.VetProfiles().CreateTx(ctx, tx, profile); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create vet profile")
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}

func normalizePhone(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithTextCode("INVALID_PHONE").
			WithCode(goerrors.CodeBadRequest)
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE").
			WithCode(goerrors.CodeBadRequest)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
