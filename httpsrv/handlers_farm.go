package httpsrv

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/farmkeep/farmkeep/auth"
	"github.com/farmkeep/farmkeep/farm"
)

// FarmController exposes the animal and health-record endpoints.
type FarmController struct {
	svc    *farm.Service
	logger auth.Logger
}

func NewFarmController(svc *farm.Service, logger auth.Logger) *FarmController {
	return &FarmController{svc: svc, logger: logger}
}

// Register mounts the farm routes. Every route requires authentication;
// per-record access is decided by the service policy checks.
func (f *FarmController) Register(app fiber.Router, requireAuth fiber.Handler) {
	animals := app.Group("/animals", requireAuth)
	animals.Post("/", f.CreateAnimal)
	animals.Get("/", f.ListAnimals)
	animals.Get("/:id", f.GetAnimal)
	animals.Patch("/:id", f.UpdateAnimal)
	animals.Delete("/:id", f.DeactivateAnimal)
	animals.Post("/:id/vet", f.AssignVet)
	animals.Get("/:id/health-records", f.ListHealthRecords)
	animals.Post("/:id/health-records", f.AddHealthRecord)

	app.Get("/veterinarians", requireAuth, f.ListVeterinarians)
	app.Get("/dashboard", requireAuth, f.Dashboard)
}

var errBadAnimalID = goerrors.New("animal id must be a valid uuid", goerrors.CategoryBadInput).
	WithTextCode("INVALID_ID")

func animalIDFromPath(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, errBadAnimalID
	}
	return id, nil
}

func (f *FarmController) claims(c *fiber.Ctx) (auth.AuthClaims, error) {
	claims, ok := ClaimsFromCtx(c)
	if !ok {
		return nil, auth.ErrTokenMalformed
	}
	return claims, nil
}

// CreateAnimalPayload is the animal registration body.
type CreateAnimalPayload struct {
	TagNumber        string     `json:"tag_number"`
	Species          string     `json:"species"`
	Breed            string     `json:"breed"`
	Gender           string     `json:"gender"`
	DateOfBirth      *time.Time `json:"date_of_birth"`
	WeightKG         float64    `json:"weight_kg"`
	HealthStatus     string     `json:"health_status"`
	ProductionStatus string     `json:"production_status"`

	// FarmerID lets admins create a record on behalf of a farmer.
	FarmerID string `json:"farmer_id"`
}

func (p CreateAnimalPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.TagNumber, validation.Required, validation.Length(1, 50)),
		validation.Field(&p.Species, validation.Required, validation.Length(1, 50)),
		validation.Field(&p.Gender, validation.In("male", "female")),
		validation.Field(&p.WeightKG, validation.Min(0.0)),
		validation.Field(&p.FarmerID, is.UUID.Error("must be a valid uuid")),
	)
}

func (f *FarmController) CreateAnimal(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	payload := new(CreateAnimalPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, f.logger, err)
	}

	ownerID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return respondError(c, f.logger, auth.ErrTokenMalformed)
	}
	if payload.FarmerID != "" {
		if ownerID, err = uuid.Parse(payload.FarmerID); err != nil {
			return respondError(c, f.logger, errBadAnimalID)
		}
	}

	animal, err := f.svc.CreateAnimal(c.UserContext(), claims, ownerID, farm.CreateAnimalInput{
		TagNumber:        payload.TagNumber,
		Species:          payload.Species,
		Breed:            payload.Breed,
		Gender:           payload.Gender,
		DateOfBirth:      payload.DateOfBirth,
		WeightKG:         payload.WeightKG,
		HealthStatus:     payload.HealthStatus,
		ProductionStatus: payload.ProductionStatus,
	})
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(animal)
}

func (f *FarmController) ListAnimals(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	filter := farm.AnimalFilter{
		Species:      c.Query("species"),
		HealthStatus: c.Query("health_status"),
		Search:       c.Query("search"),
	}

	animals, err := f.svc.ListAnimals(c.UserContext(), claims, filter)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.JSON(fiber.Map{"animals": animals, "count": len(animals)})
}

// ListVeterinarians exposes the directory farmers browse to pick a vet for
// assignment.
func (f *FarmController) ListVeterinarians(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	vets, err := f.svc.ListVeterinarians(c.UserContext(), claims)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.JSON(fiber.Map{"veterinarians": vets, "count": len(vets)})
}

func (f *FarmController) GetAnimal(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	id, err := animalIDFromPath(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	animal, err := f.svc.GetAnimal(c.UserContext(), claims, id)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.JSON(animal)
}

// UpdateAnimalPayload carries partial animal updates. Absent fields are
// left untouched.
type UpdateAnimalPayload struct {
	Breed            *string  `json:"breed"`
	Gender           *string  `json:"gender"`
	WeightKG         *float64 `json:"weight_kg"`
	HealthStatus     *string  `json:"health_status"`
	ProductionStatus *string  `json:"production_status"`
}

func (p UpdateAnimalPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Gender, validation.In("male", "female")),
	)
}

func (f *FarmController) UpdateAnimal(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	id, err := animalIDFromPath(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	payload := new(UpdateAnimalPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, f.logger, err)
	}

	animal, err := f.svc.UpdateAnimal(c.UserContext(), claims, id, farm.UpdateAnimalInput{
		Breed:            payload.Breed,
		Gender:           payload.Gender,
		WeightKG:         payload.WeightKG,
		HealthStatus:     payload.HealthStatus,
		ProductionStatus: payload.ProductionStatus,
	})
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.JSON(animal)
}

func (f *FarmController) DeactivateAnimal(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	id, err := animalIDFromPath(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	if err := f.svc.DeactivateAnimal(c.UserContext(), claims, id); err != nil {
		return respondError(c, f.logger, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// AssignVetPayload names the veterinarian to attach to an animal.
type AssignVetPayload struct {
	VetID string `json:"vet_id"`
}

func (p AssignVetPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.VetID, validation.Required, is.UUID.Error("must be a valid uuid")),
	)
}

func (f *FarmController) AssignVet(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	id, err := animalIDFromPath(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	payload := new(AssignVetPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, f.logger, err)
	}

	vetID, err := uuid.Parse(payload.VetID)
	if err != nil {
		return respondError(c, f.logger, errBadAnimalID)
	}

	animal, err := f.svc.AssignVet(c.UserContext(), claims, id, vetID)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.JSON(animal)
}

// HealthRecordPayload is one checkup entry.
type HealthRecordPayload struct {
	CheckupDate     time.Time  `json:"checkup_date"`
	TemperatureC    float64    `json:"temperature_c"`
	HeartRateBPM    int        `json:"heart_rate_bpm"`
	Diagnosis       string     `json:"diagnosis"`
	Treatment       string     `json:"treatment"`
	Medication      string     `json:"medication"`
	Notes           string     `json:"notes"`
	NextCheckupDate *time.Time `json:"next_checkup_date"`
}

func (p HealthRecordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Diagnosis, validation.Required, validation.Length(1, 500)),
		validation.Field(&p.TemperatureC, validation.Min(0.0), validation.Max(50.0)),
		validation.Field(&p.HeartRateBPM, validation.Min(0), validation.Max(400)),
	)
}

func (f *FarmController) AddHealthRecord(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	id, err := animalIDFromPath(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	payload := new(HealthRecordPayload)
	if err := parse(c, payload); err != nil {
		return respondError(c, f.logger, err)
	}

	record, err := f.svc.AddHealthRecord(c.UserContext(), claims, id, farm.HealthRecordInput{
		CheckupDate:     payload.CheckupDate,
		TemperatureC:    payload.TemperatureC,
		HeartRateBPM:    payload.HeartRateBPM,
		Diagnosis:       payload.Diagnosis,
		Treatment:       payload.Treatment,
		Medication:      payload.Medication,
		Notes:           payload.Notes,
		NextCheckupDate: payload.NextCheckupDate,
	})
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(record)
}

func (f *FarmController) ListHealthRecords(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	id, err := animalIDFromPath(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	records, err := f.svc.ListHealthRecords(c.UserContext(), claims, id)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	return c.JSON(fiber.Map{"records": records, "count": len(records)})
}

// Dashboard scopes the aggregate view by the caller's role.
func (f *FarmController) Dashboard(c *fiber.Ctx) error {
	claims, err := f.claims(c)
	if err != nil {
		return respondError(c, f.logger, err)
	}

	callerID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return respondError(c, f.logger, auth.ErrTokenMalformed)
	}

	switch auth.UserRole(claims.Role()) {
	case auth.RoleFarmer:
		dash, err := f.svc.DashboardForFarmer(c.UserContext(), claims, callerID)
		if err != nil {
			return respondError(c, f.logger, err)
		}
		return c.JSON(dash)
	case auth.RoleVeterinarian:
		dash, err := f.svc.DashboardForVet(c.UserContext(), claims, callerID)
		if err != nil {
			return respondError(c, f.logger, err)
		}
		return c.JSON(dash)
	case auth.RoleAdmin:
		// admins may inspect a specific farmer or vet by query param
		if farmer := c.Query("farmer_id"); farmer != "" {
			id, err := uuid.Parse(farmer)
			if err != nil {
				return respondError(c, f.logger, errBadAnimalID)
			}
			dash, err := f.svc.DashboardForFarmer(c.UserContext(), claims, id)
			if err != nil {
				return respondError(c, f.logger, err)
			}
			return c.JSON(dash)
		}
		if vet := c.Query("vet_id"); vet != "" {
			id, err := uuid.Parse(vet)
			if err != nil {
				return respondError(c, f.logger, errBadAnimalID)
			}
			dash, err := f.svc.DashboardForVet(c.UserContext(), claims, id)
			if err != nil {
				return respondError(c, f.logger, err)
			}
			return c.JSON(dash)
		}
		dash, err := f.svc.AdminDashboard(c.UserContext(), claims)
		if err != nil {
			return respondError(c, f.logger, err)
		}
		return c.JSON(dash)
	}

	return respondError(c, f.logger, auth.ErrPermissionDenied)
}
