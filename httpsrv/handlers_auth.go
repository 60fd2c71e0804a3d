package httpsrv

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"

	"github.com/farmkeep/farmkeep/auth"
)

// AuthController exposes the authentication endpoints.
type AuthController struct {
	auther *auth.Auther
	repo   auth.RepositoryManager
	logger auth.Logger
}

func NewAuthController(auther *auth.Auther, repo auth.RepositoryManager, logger auth.Logger) *AuthController {
	return &AuthController{
		auther: auther,
		repo:   repo,
		logger: logger,
	}
}

// Register mounts the auth routes on the given router.
func (a *AuthController) Register(app fiber.Router, requireAuth fiber.Handler) {
	app.Post("/auth/login", a.Login)
	app.Post("/auth/refresh", a.Refresh)
	app.Post("/auth/logout", a.Logout)
	app.Post("/auth/register/farmer", a.RegisterFarmer)
	app.Post("/auth/register/veterinarian", a.RegisterVeterinarian)
	app.Post("/auth/verify", a.Verify)
	app.Post("/auth/resend-verification", a.ResendVerification)
	app.Post("/auth/password/forgot", a.ForgotPassword)
	app.Post("/auth/password/reset", a.ResetPassword)

	app.Post("/auth/password", requireAuth, a.ChangePassword)
	app.Get("/auth/profile", requireAuth, a.Profile)
}

// LoginPayload is the login request body.
type LoginPayload struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Identifier, validation.Required, validation.Length(3, 200)),
		validation.Field(&p.Password, validation.Required, validation.Length(1, 200)),
	)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	pair, err := a.auther.Login(c.UserContext(), payload.Identifier, payload.Password)
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(pair)
}

// RefreshPayload carries the opaque refresh token.
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

func (p RefreshPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RefreshToken, validation.Required),
	)
}

func (a *AuthController) Refresh(c *fiber.Ctx) error {
	payload := new(RefreshPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	pair, err := a.auther.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(pair)
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	payload := new(RefreshPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	if err := a.auther.Logout(c.UserContext(), payload.RefreshToken); err != nil {
		return respondError(c, a.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterFarmerPayload is the farmer sign-up body.
type RegisterFarmerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone_number"`
	Password string `json:"password"`

	FarmName           string `json:"farm_name"`
	FarmType           string `json:"farm_type"`
	RegistrationNumber string `json:"registration_number"`
	District           string `json:"district"`
	State              string `json:"state"`
}

func (p RegisterFarmerPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Phone, validation.Required, validation.Length(10, 16)),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&p.FarmName, validation.Required, validation.Length(1, 200)),
	)
}

func (a *AuthController) RegisterFarmer(c *fiber.Ctx) error {
	payload := new(RegisterFarmerPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	user, err := a.auther.Register(c.UserContext(), auth.RegisterUserMessage{
		Name:               payload.Name,
		Email:              payload.Email,
		Phone:              payload.Phone,
		Password:           payload.Password,
		Role:               auth.RoleFarmer,
		FarmName:           payload.FarmName,
		FarmType:           payload.FarmType,
		RegistrationNumber: payload.RegistrationNumber,
		District:           payload.District,
		State:              payload.State,
	})
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// RegisterVetPayload is the veterinarian sign-up body.
type RegisterVetPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone_number"`
	Password string `json:"password"`

	LicenseNo       string `json:"license_no"`
	Specialization  string `json:"specialization"`
	Qualification   string `json:"qualification"`
	ExperienceYears int    `json:"experience_years"`
	ClinicName      string `json:"clinic_name"`
}

func (p RegisterVetPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&p.Phone, validation.Required, validation.Length(10, 16)),
		validation.Field(&p.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&p.LicenseNo, validation.Required, validation.Length(1, 100)),
	)
}

func (a *AuthController) RegisterVeterinarian(c *fiber.Ctx) error {
	payload := new(RegisterVetPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	user, err := a.auther.Register(c.UserContext(), auth.RegisterUserMessage{
		Name:            payload.Name,
		Email:           payload.Email,
		Phone:           payload.Phone,
		Password:        payload.Password,
		Role:            auth.RoleVeterinarian,
		LicenseNo:       payload.LicenseNo,
		Specialization:  payload.Specialization,
		Qualification:   payload.Qualification,
		ExperienceYears: payload.ExperienceYears,
		ClinicName:      payload.ClinicName,
	})
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// VerifyPayload carries the one-time activation code.
type VerifyPayload struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

func (p VerifyPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Identifier, validation.Required),
		validation.Field(&p.Code, validation.Required, validation.Length(4, 10), is.Digit),
	)
}

func (a *AuthController) Verify(c *fiber.Ctx) error {
	payload := new(VerifyPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	if err := a.auther.VerifyAccount(c.UserContext(), payload.Identifier, payload.Code); err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(fiber.Map{"verified": true})
}

// IdentifierPayload carries a lone account identifier.
type IdentifierPayload struct {
	Identifier string `json:"identifier"`
}

func (p IdentifierPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Identifier, validation.Required),
	)
}

func (a *AuthController) ResendVerification(c *fiber.Ctx) error {
	payload := new(IdentifierPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	if err := a.auther.ResendVerification(c.UserContext(), payload.Identifier); err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(fiber.Map{"sent": true})
}

func (a *AuthController) ForgotPassword(c *fiber.Ctx) error {
	payload := new(IdentifierPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	if err := a.auther.RequestPasswordReset(c.UserContext(), payload.Identifier); err != nil {
		return respondError(c, a.logger, err)
	}

	// always accepted: the endpoint must not leak which accounts exist
	return c.JSON(fiber.Map{"sent": true})
}

// ResetPasswordPayload finalizes a reset with the emailed code.
type ResetPasswordPayload struct {
	Identifier  string `json:"identifier"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (p ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Identifier, validation.Required),
		validation.Field(&p.Code, validation.Required, validation.Length(4, 10), is.Digit),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	payload := new(ResetPasswordPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	if err := a.auther.ResetPasswordWithCode(c.UserContext(), payload.Identifier, payload.Code, payload.NewPassword); err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(fiber.Map{"reset": true})
}

// ChangePasswordPayload rotates the password of the authenticated account.
type ChangePasswordPayload struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (p ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.CurrentPassword, validation.Required),
		validation.Field(&p.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

func (a *AuthController) ChangePassword(c *fiber.Ctx) error {
	claims, ok := ClaimsFromCtx(c)
	if !ok {
		return respondError(c, a.logger, auth.ErrTokenMalformed)
	}

	payload := new(ChangePasswordPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, a.logger, err)
	}

	if err := a.auther.ChangePassword(c.UserContext(), claims.UserID(), payload.CurrentPassword, payload.NewPassword); err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(fiber.Map{"changed": true})
}

func (a *AuthController) Profile(c *fiber.Ctx) error {
	claims, ok := ClaimsFromCtx(c)
	if !ok {
		return respondError(c, a.logger, auth.ErrTokenMalformed)
	}

	user, err := a.repo.Users().GetByIdentifier(c.UserContext(), claims.UserID())
	if err != nil {
		return respondError(c, a.logger, err)
	}

	return c.JSON(user)
}

// parse binds and validates a JSON payload in one step.
func parse(c *fiber.Ctx, payload interface {
	Validate() error
}) error {
	if err := c.BodyParser(payload); err != nil {
		return errMissingBody
	}
	return payload.Validate()
}
