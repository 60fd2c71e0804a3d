package farm

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AnimalHealthStatus tracks the animal's current condition.
type AnimalHealthStatus = string

const (
	HealthStatusHealthy        AnimalHealthStatus = "healthy"
	HealthStatusSick           AnimalHealthStatus = "sick"
	HealthStatusUnderTreatment AnimalHealthStatus = "under_treatment"
	HealthStatusQuarantined    AnimalHealthStatus = "quarantined"
)

// IsValidHealthStatus checks the status against the known set.
func IsValidHealthStatus(s AnimalHealthStatus) bool {
	switch s {
	case HealthStatusHealthy, HealthStatusSick, HealthStatusUnderTreatment, HealthStatusQuarantined:
		return true
	default:
		return false
	}
}

// Animal is a livestock record owned by a farmer. Records are deactivated,
// never hard-deleted, so health history stays attached.
type Animal struct {
	bun.BaseModel `bun:"table:animals,alias:anm"`

	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	TagNumber        string     `bun:"tag_number,notnull,unique" json:"tag_number,omitempty"`
	Species          string     `bun:"species,notnull" json:"species,omitempty"`
	Breed            string     `bun:"breed" json:"breed,omitempty"`
	Gender           string     `bun:"gender" json:"gender,omitempty"`
	DateOfBirth      *time.Time `bun:"date_of_birth,nullzero" json:"date_of_birth,omitempty"`
	WeightKG         float64    `bun:"weight_kg" json:"weight_kg,omitempty"`
	HealthStatus     string     `bun:"health_status,notnull" json:"health_status,omitempty"`
	ProductionStatus string     `bun:"production_status" json:"production_status,omitempty"`
	IsActive         bool       `bun:"is_active" json:"is_active"`

	FarmerID uuid.UUID  `bun:"farmer_id,notnull,type:uuid" json:"farmer_id,omitempty"`
	VetID    *uuid.UUID `bun:"vet_id,nullzero,type:uuid" json:"vet_id,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`

	HealthRecords []*HealthRecord `bun:"rel:has-many,join:id=animal_id" json:"health_records,omitempty"`
}

// OwnedBy reports whether the farmer owns this animal.
func (a *Animal) OwnedBy(farmerID uuid.UUID) bool {
	return a.FarmerID == farmerID
}

// AssignedTo reports whether the veterinarian is assigned to this animal.
func (a *Animal) AssignedTo(vetID uuid.UUID) bool {
	return a.VetID != nil && *a.VetID == vetID
}

// HealthRecord is one checkup entry written by the assigned veterinarian.
type HealthRecord struct {
	bun.BaseModel `bun:"table:health_records,alias:hrc"`

	ID          uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AnimalID    uuid.UUID `bun:"animal_id,notnull,type:uuid" json:"animal_id,omitempty"`
	RecordedBy  uuid.UUID `bun:"recorded_by,notnull,type:uuid" json:"recorded_by,omitempty"`
	CheckupDate time.Time `bun:"checkup_date,notnull" json:"checkup_date,omitempty"`

	TemperatureC float64 `bun:"temperature_c" json:"temperature_c,omitempty"`
	HeartRateBPM int     `bun:"heart_rate_bpm" json:"heart_rate_bpm,omitempty"`
	Diagnosis    string  `bun:"diagnosis" json:"diagnosis,omitempty"`
	Treatment    string  `bun:"treatment" json:"treatment,omitempty"`
	Medication   string  `bun:"medication" json:"medication,omitempty"`
	Notes        string  `bun:"notes" json:"notes,omitempty"`

	NextCheckupDate *time.Time `bun:"next_checkup_date,nullzero" json:"next_checkup_date,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
