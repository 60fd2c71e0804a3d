package farm

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AnimalFilter narrows a listing. Zero values mean no constraint; Search
// matches tag number, species, and breed.
type AnimalFilter struct {
	Species      string
	HealthStatus string
	Search       string
}

// Animals is the livestock store.
type Animals interface {
	repository.Repository[*Animal]

	ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter AnimalFilter) ([]*Animal, error)
	ListByVet(ctx context.Context, vetID uuid.UUID, filter AnimalFilter) ([]*Animal, error)
	ListAll(ctx context.Context, filter AnimalFilter) ([]*Animal, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// HealthRecords is the checkup store.
type HealthRecords interface {
	repository.Repository[*HealthRecord]

	ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]*HealthRecord, error)
	ListUpcomingCheckups(ctx context.Context, vetID uuid.UUID, until time.Time) ([]*HealthRecord, error)
}

// RepositoryManager bundles the farm stores behind one transaction boundary.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager

	Animals() Animals
	HealthRecords() HealthRecords
}

type animals struct {
	repository.Repository[*Animal]
	db *bun.DB
}

func NewAnimalsRepository(db *bun.DB) Animals {
	repo := repository.NewRepository[*Animal](db, repository.ModelHandlers[*Animal]{
		NewRecord: func() *Animal { return &Animal{} },
		GetID: func(a *Animal) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Animal, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "tag_number"
		},
	})

	return &animals{
		Repository: repo,
		db:         db,
	}
}

func (a *animals) Create(ctx context.Context, record *Animal, criteria ...repository.InsertCriteria) (*Animal, error) {
	prepareAnimalDefaults(record)
	return a.Repository.Create(ctx, record, criteria...)
}

func (a *animals) CreateTx(ctx context.Context, tx bun.IDB, record *Animal, criteria ...repository.InsertCriteria) (*Animal, error) {
	prepareAnimalDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *animals) ListByFarmer(ctx context.Context, farmerID uuid.UUID, filter AnimalFilter) ([]*Animal, error) {
	return a.list(ctx, filter, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.farmer_id = ?", farmerID)
	})
}

func (a *animals) ListByVet(ctx context.Context, vetID uuid.UUID, filter AnimalFilter) ([]*Animal, error) {
	return a.list(ctx, filter, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.vet_id = ?", vetID)
	})
}

func (a *animals) ListAll(ctx context.Context, filter AnimalFilter) ([]*Animal, error) {
	return a.list(ctx, filter, nil)
}

// Deactivate clears the active flag directly; generic updates omit zero
// values so a bool flip needs its own statement.
func (a *animals) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewUpdate().
		Model((*Animal)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *animals) list(ctx context.Context, filter AnimalFilter, scope func(*bun.SelectQuery) *bun.SelectQuery) ([]*Animal, error) {
	records := []*Animal{}
	q := a.db.NewSelect().
		Model(&records).
		Order("created_at DESC")

	if scope != nil {
		q = scope(q)
	}

	if filter.Species != "" {
		q = q.Where("?TableAlias.species = ?", filter.Species)
	}
	if filter.HealthStatus != "" {
		q = q.Where("?TableAlias.health_status = ?", filter.HealthStatus)
	}
	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("?TableAlias.tag_number LIKE ?", term).
				WhereOr("?TableAlias.species LIKE ?", term).
				WhereOr("?TableAlias.breed LIKE ?", term)
		})
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

func prepareAnimalDefaults(record *Animal) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.HealthStatus == "" {
		record.HealthStatus = HealthStatusHealthy
	}
}

type healthRecords struct {
	repository.Repository[*HealthRecord]
	db *bun.DB
}

func NewHealthRecordsRepository(db *bun.DB) HealthRecords {
	repo := repository.NewRepository[*HealthRecord](db, repository.ModelHandlers[*HealthRecord]{
		NewRecord: func() *HealthRecord { return &HealthRecord{} },
		GetID: func(r *HealthRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *HealthRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &healthRecords{
		Repository: repo,
		db:         db,
	}
}

func (h *healthRecords) Create(ctx context.Context, record *HealthRecord, criteria ...repository.InsertCriteria) (*HealthRecord, error) {
	prepareHealthRecordDefaults(record)
	return h.Repository.Create(ctx, record, criteria...)
}

func (h *healthRecords) CreateTx(ctx context.Context, tx bun.IDB, record *HealthRecord, criteria ...repository.InsertCriteria) (*HealthRecord, error) {
	prepareHealthRecordDefaults(record)
	return h.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (h *healthRecords) ListByAnimal(ctx context.Context, animalID uuid.UUID) ([]*HealthRecord, error) {
	records := []*HealthRecord{}
	err := h.db.NewSelect().
		Model(&records).
		Where("?TableAlias.animal_id = ?", animalID).
		Order("checkup_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (h *healthRecords) ListUpcomingCheckups(ctx context.Context, vetID uuid.UUID, until time.Time) ([]*HealthRecord, error) {
	records := []*HealthRecord{}
	err := h.db.NewSelect().
		Model(&records).
		Where("?TableAlias.recorded_by = ?", vetID).
		Where("?TableAlias.next_checkup_date IS NOT NULL").
		Where("?TableAlias.next_checkup_date <= ?", until).
		Order("next_checkup_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func prepareHealthRecordDefaults(record *HealthRecord) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CheckupDate.IsZero() {
		record.CheckupDate = time.Now()
	}
}

type mngr struct {
	db            *bun.DB
	animals       Animals
	healthRecords HealthRecords
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		animals:       NewAnimalsRepository(db),
		healthRecords: NewHealthRecordsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.animals == nil {
		return errors.New("repository animals should be initialized")
	}

	if m.healthRecords == nil {
		return errors.New("repository healthRecords should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Animals() Animals {
	return m.animals
}

func (m mngr) HealthRecords() HealthRecords {
	return m.healthRecords
}

// FarmModels lists every model this package persists, in creation order.
func FarmModels() []any {
	return []any{
		(*Animal)(nil),
		(*HealthRecord)(nil),
	}
}

// CreateSchema creates the farm tables if they do not exist.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range FarmModels() {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
