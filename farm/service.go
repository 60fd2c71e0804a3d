package farm

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"

	"github.com/farmkeep/farmkeep/auth"
)

// Service owns animal and health-record operations. Every method receives the
// caller's claims, resolves ownership facts against the stores, and asks the
// access policy before touching anything.
type Service struct {
	repo   RepositoryManager
	users  auth.Users
	logger auth.Logger
	now    func() time.Time
}

// ServiceOption customizes the farm service.
type ServiceOption func(*Service)

// WithLogger overrides the logger.
func WithLogger(logger auth.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the farm service. The users store is consulted when
// assigning veterinarians.
func NewService(repo RepositoryManager, users auth.Users, opts ...ServiceOption) *Service {
	s := &Service{
		repo:  repo,
		users: users,
		now:   time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// FactsFor resolves the relationship between the caller and an animal for the
// access policy.
func FactsFor(claims auth.AuthClaims, animal *Animal) auth.OwnershipFacts {
	if claims == nil || animal == nil {
		return auth.OwnershipFacts{}
	}

	callerID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return auth.OwnershipFacts{}
	}

	return auth.OwnershipFacts{
		Owns:     animal.OwnedBy(callerID),
		Assigned: animal.AssignedTo(callerID),
	}
}

// CreateAnimalInput carries the writable animal fields.
type CreateAnimalInput struct {
	TagNumber        string
	Species          string
	Breed            string
	Gender           string
	DateOfBirth      *time.Time
	WeightKG         float64
	HealthStatus     string
	ProductionStatus string
}

// CreateAnimal registers a new animal under the calling farmer. Admins may
// create on behalf of a farmer by passing the owner explicitly.
func (s *Service) CreateAnimal(ctx context.Context, claims auth.AuthClaims, ownerID uuid.UUID, input CreateAnimalInput) (*Animal, error) {
	if claims == nil {
		return nil, auth.ErrPermissionDenied
	}

	if !claims.Can(auth.ResourceAnimal, auth.ActionCreate, auth.OwnershipFacts{}) {
		return nil, auth.ErrPermissionDenied
	}

	callerID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "claims carry a malformed user id")
	}

	// farmers only create under their own account
	if !claims.HasRole(auth.RoleAdmin) {
		ownerID = callerID
	}
	if ownerID == uuid.Nil {
		ownerID = callerID
	}

	if input.HealthStatus != "" && !IsValidHealthStatus(input.HealthStatus) {
		return nil, goerrors.New("unknown health status", goerrors.CategoryValidation).
			WithTextCode("INVALID_HEALTH_STATUS").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"health_status": input.HealthStatus})
	}

	animal := &Animal{
		TagNumber:        input.TagNumber,
		Species:          input.Species,
		Breed:            input.Breed,
		Gender:           input.Gender,
		DateOfBirth:      input.DateOfBirth,
		WeightKG:         input.WeightKG,
		HealthStatus:     input.HealthStatus,
		ProductionStatus: input.ProductionStatus,
		IsActive:         true,
		FarmerID:         ownerID,
	}

	created, err := s.repo.Animals().Create(ctx, animal)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create animal")
	}

	return created, nil
}

// GetAnimal fetches one animal, enforcing read access.
func (s *Service) GetAnimal(ctx context.Context, claims auth.AuthClaims, id uuid.UUID) (*Animal, error) {
	animal, err := s.repo.Animals().GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if !claims.Can(auth.ResourceAnimal, auth.ActionRead, FactsFor(claims, animal)) {
		return nil, auth.ErrPermissionDenied
	}

	return animal, nil
}

/// ListAnimals returns the animals visible to the caller: owned for farmers,
// assigned for vets, all for admins. The filter narrows by species, health
// status, or a text search across tag/species/breed.
func (s *Service) ListAnimals(ctx context.Context, claims auth.AuthClaims, filter AnimalFilter) ([]*Animal, error) {
	if claims == nil {
		return nil, auth.ErrPermissionDenied
	}

	callerID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "claims carry a malformed user id")
	}

	if filter.HealthStatus != "" && !IsValidHealthStatus(filter.HealthStatus) {
		return nil, goerrors.New("unknown health status", goerrors.CategoryBadInput).
			WithTextCode("INVALID_HEALTH_STATUS").
			WithMetadata(map[string]any{"health_status": filter.HealthStatus})
	}

	switch claims.Role() {
	case auth.RoleFarmer:
		return s.repo.Animals().ListByFarmer(ctx, callerID, filter)
	case auth.RoleVeterinarian:
		return s.repo.Animals().ListByVet(ctx, callerID, filter)
	case auth.RoleAdmin:
		return s.repo.Animals().ListAll(ctx, filter)
	default:
		return nil, auth.ErrPermissionDenied
	}
}

// UpdateAnimalInput carries the mutable animal fields. Nil fields are left
// untouched.
type UpdateAnimalInput struct {
	Breed            *string
	Gender           *string
	WeightKG         *float64
	HealthStatus     *string
	ProductionStatus *string
}

// UpdateAnimal mutates an animal record. Farmers update their own animals;
// vets update (health status of) animals assigned to them.
func (s *Service) UpdateAnimal(ctx context.Context, claims auth.AuthClaims, id uuid.UUID, input UpdateAnimalInput) (*Animal, error) {
	animal, err := s.repo.Animals().GetByID(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if !claims.Can(auth.ResourceAnimal, auth.ActionUpdate, FactsFor(claims, animal)) {
		return nil, auth.ErrPermissionDenied
	}

	if input.HealthStatus != nil && !IsValidHealthStatus(*input.HealthStatus) {
		return nil, goerrors.New("unknown health status", goerrors.CategoryValidation).
			WithTextCode("INVALID_HEALTH_STATUS").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"health_status": *input.HealthStatus})
	}

	if input.Breed != nil {
		animal.Breed = *input.Breed
	}
	if input.Gender != nil {
		animal.Gender = *input.Gender
	}
	if input.WeightKG != nil {
		animal.WeightKG = *input.WeightKG
	}
	if input.HealthStatus != nil {
		animal.HealthStatus = *input.HealthStatus
	}
	if input.ProductionStatus != nil {
		animal.ProductionStatus = *input.ProductionStatus
	}

	now := s.now()
	animal.UpdatedAt = &now

	return s.repo.Animals().Update(ctx, animal, repository.UpdateByID(animal.ID.String()))
}

// DeactivateAnimal retires an animal record. The row and its health history
// survive; the record just stops being active.
func (s *Service) DeactivateAnimal(ctx context.Context, claims auth.AuthClaims, id uuid.UUID) error {
	animal, err := s.repo.Animals().GetByID(ctx, id.String())
	if err != nil {
		return err
	}

	if !claims.Can(auth.ResourceAnimal, auth.ActionDelete, FactsFor(claims, animal)) {
		return auth.ErrPermissionDenied
	}

	return s.repo.Animals().Deactivate(ctx, animal.ID)
}

// AssignVet links a veterinarian to an animal. Only the owning farmer or an
// admin may assign; the target account must be an active veterinarian.
func (s *Service) AssignVet(ctx context.Context, claims auth.AuthClaims, animalID, vetID uuid.UUID) (*Animal, error) {
	animal, err := s.repo.Animals().GetByID(ctx, animalID.String())
	if err != nil {
		return nil, err
	}

	if !claims.Can(auth.ResourceAnimal, auth.ActionUpdate, FactsFor(claims, animal)) {
		return nil, auth.ErrPermissionDenied
	}

	// vets never assign themselves
	if claims.HasRole(auth.RoleVeterinarian) {
		return nil, auth.ErrPermissionDenied
	}

	vet, err := s.users.GetByIdentifier(ctx, vetID.String())
	if err != nil {
		return nil, err
	}

	if vet.Role != auth.RoleVeterinarian {
		return nil, goerrors.New("assignee is not a veterinarian", goerrors.CategoryValidation).
			WithTextCode("NOT_A_VETERINARIAN").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"user_id": vetID.String()})
	}

	if vet.Status != auth.UserStatusActive {
		return nil, goerrors.New("veterinarian account is not active", goerrors.CategoryValidation).
			WithTextCode("VET_NOT_ACTIVE").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"user_id": vetID.String()})
	}

	animal.VetID = &vet.ID
	now := s.now()
	animal.UpdatedAt = &now

	return s.repo.Animals().Update(ctx, animal, repository.UpdateByID(animal.ID.String()))
}

// VetDirectoryEntry is one listing in the veterinarian directory, with the
// caseload counts a farmer weighs when picking a vet.
type VetDirectoryEntry struct {
	Vet             *auth.User `json:"vet"`
	AssignedAnimals int        `json:"assigned_animals"`
	UnderTreatment  int        `json:"under_treatment"`
}

// ListVeterinarians returns the active vets farmers can assign. Farmers and
// admins may browse; vets may not.
func (s *Service) ListVeterinarians(ctx context.Context, claims auth.AuthClaims) ([]*VetDirectoryEntry, error) {
	if claims == nil || !claims.Can(auth.ResourceVetDirectory, auth.ActionRead, auth.OwnershipFacts{}) {
		return nil, auth.ErrPermissionDenied
	}

	vets, err := s.users.ListActiveVeterinarians(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]*VetDirectoryEntry, 0, len(vets))
	for _, vet := range vets {
		assigned, err := s.repo.Animals().ListByVet(ctx, vet.ID, AnimalFilter{})
		if err != nil {
			return nil, err
		}

		entry := &VetDirectoryEntry{Vet: vet}
		for _, animal := range assigned {
			if !animal.IsActive {
				continue
			}
			entry.AssignedAnimals++
			if animal.HealthStatus == HealthStatusUnderTreatment {
				entry.UnderTreatment++
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// HealthRecordInput carries one checkup entry.
type HealthRecordInput struct {
	CheckupDate     time.Time
	TemperatureC    float64
	HeartRateBPM    int
	Diagnosis       string
	Treatment       string
	Medication      string
	Notes           string
	NextCheckupDate *time.Time
}

// AddHealthRecord writes a checkup entry for an animal. Only the assigned
// veterinarian (or an admin) may write.
func (s *Service) AddHealthRecord(ctx context.Context, claims auth.AuthClaims, animalID uuid.UUID, input HealthRecordInput) (*HealthRecord, error) {
	animal, err := s.repo.Animals().GetByID(ctx, animalID.String())
	if err != nil {
		return nil, err
	}

	if !claims.Can(auth.ResourceHealthRecord, auth.ActionCreate, FactsFor(claims, animal)) {
		return nil, auth.ErrPermissionDenied
	}

	recordedBy, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "claims carry a malformed user id")
	}

	record := &HealthRecord{
		AnimalID:        animal.ID,
		RecordedBy:      recordedBy,
		CheckupDate:     input.CheckupDate,
		TemperatureC:    input.TemperatureC,
		HeartRateBPM:    input.HeartRateBPM,
		Diagnosis:       input.Diagnosis,
		Treatment:       input.Treatment,
		Medication:      input.Medication,
		Notes:           input.Notes,
		NextCheckupDate: input.NextCheckupDate,
	}

	created, err := s.repo.HealthRecords().Create(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not store health record")
	}

	if input.Treatment != "" && animal.HealthStatus == HealthStatusSick {
		animal.HealthStatus = HealthStatusUnderTreatment
		if _, err := s.repo.Animals().Update(ctx, animal, repository.UpdateByID(animal.ID.String())); err != nil {
			s.log().Warn("failed to move animal under treatment", "animal_id", animal.ID.String(), "error", err)
		}
	}

	return created, nil
}

// ListHealthRecords returns an animal's checkup history, enforcing read
// access on the parent animal.
func (s *Service) ListHealthRecords(ctx context.Context, claims auth.AuthClaims, animalID uuid.UUID) ([]*HealthRecord, error) {
	animal, err := s.repo.Animals().GetByID(ctx, animalID.String())
	if err != nil {
		return nil, err
	}

	if !claims.Can(auth.ResourceHealthRecord, auth.ActionRead, FactsFor(claims, animal)) {
		return nil, auth.ErrPermissionDenied
	}

	return s.repo.HealthRecords().ListByAnimal(ctx, animalID)
}

// FarmerDashboard summarizes a farmer's herd.
type FarmerDashboard struct {
	TotalAnimals   int            `json:"total_animals"`
	ActiveAnimals  int            `json:"active_animals"`
	ByHealthStatus map[string]int `json:"by_health_status"`
	AssignedVets   int            `json:"assigned_vets"`
}

// VetDashboard summarizes a veterinarian's caseload.
type VetDashboard struct {
	AssignedAnimals  int             `json:"assigned_animals"`
	UnderTreatment   int             `json:"under_treatment"`
	UpcomingCheckups []*HealthRecord `json:"upcoming_checkups"`
}

// upcomingCheckupWindow bounds the vet dashboard lookahead.
const upcomingCheckupWindow = 7 * 24 * time.Hour

// DashboardForFarmer aggregates the caller's herd. Admins may request any
// farmer's dashboard.
func (s *Service) DashboardForFarmer(ctx context.Context, claims auth.AuthClaims, farmerID uuid.UUID) (*FarmerDashboard, error) {
	callerID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "claims carry a malformed user id")
	}

	owns := callerID == farmerID
	if !claims.Can(auth.ResourceDashboard, auth.ActionRead, auth.OwnershipFacts{Owns: owns}) {
		return nil, auth.ErrPermissionDenied
	}

	records, err := s.repo.Animals().ListByFarmer(ctx, farmerID, AnimalFilter{})
	if err != nil {
		return nil, err
	}

	dash := &FarmerDashboard{
		ByHealthStatus: map[string]int{},
	}

	vets := map[uuid.UUID]struct{}{}
	for _, animal := range records {
		dash.TotalAnimals++
		if animal.IsActive {
			dash.ActiveAnimals++
		}
		dash.ByHealthStatus[animal.HealthStatus]++
		if animal.VetID != nil {
			vets[*animal.VetID] = struct{}{}
		}
	}
	dash.AssignedVets = len(vets)

	return dash, nil
}

// DashboardForVet aggregates the caller's assigned animals and upcoming
// checkups.
func (s *Service) DashboardForVet(ctx context.Context, claims auth.AuthClaims, vetID uuid.UUID) (*VetDashboard, error) {
	callerID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "claims carry a malformed user id")
	}

	assigned := callerID == vetID
	if !claims.Can(auth.ResourceDashboard, auth.ActionRead, auth.OwnershipFacts{Assigned: assigned}) {
		return nil, auth.ErrPermissionDenied
	}

	records, err := s.repo.Animals().ListByVet(ctx, vetID, AnimalFilter{})
	if err != nil {
		return nil, err
	}

	dash := &VetDashboard{}
	for _, animal := range records {
		dash.AssignedAnimals++
		if animal.HealthStatus == HealthStatusUnderTreatment {
			dash.UnderTreatment++
		}
	}

	upcoming, err := s.repo.HealthRecords().ListUpcomingCheckups(ctx, vetID, s.now().Add(upcomingCheckupWindow))
	if err != nil {
		return nil, err
	}
	dash.UpcomingCheckups = upcoming

	return dash, nil
}

// AdminDashboard summarizes the whole registry.
type AdminDashboard struct {
	TotalAnimals   int            `json:"total_animals"`
	ActiveAnimals  int            `json:"active_animals"`
	ByHealthStatus map[string]int `json:"by_health_status"`
	BySpecies      map[string]int `json:"by_species"`
}

// AdminDashboard aggregates across every farm. Admin only.
func (s *Service) AdminDashboard(ctx context.Context, claims auth.AuthClaims) (*AdminDashboard, error) {
	if !claims.HasRole(string(auth.RoleAdmin)) {
		return nil, auth.ErrPermissionDenied
	}

	records, err := s.repo.Animals().ListAll(ctx, AnimalFilter{})
	if err != nil {
		return nil, err
	}

	dash := &AdminDashboard{
		ByHealthStatus: map[string]int{},
		BySpecies:      map[string]int{},
	}
	for _, animal := range records {
		dash.TotalAnimals++
		if animal.IsActive {
			dash.ActiveAnimals++
		}
		dash.ByHealthStatus[animal.HealthStatus]++
		dash.BySpecies[animal.Species]++
	}

	return dash, nil
}

func (s *Service) log() auth.Logger {
	if s.logger != nil {
		return s.logger
	}
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
