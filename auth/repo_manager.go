package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all auth repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	FarmerProfiles() repository.Repository[*FarmerProfile]
	VetProfiles() repository.Repository[*VetProfile]
}

func NewFarmerProfilesRepository(db *bun.DB) repository.Repository[*FarmerProfile] {
	handlers := repository.ModelHandlers[*FarmerProfile]{
		NewRecord: func() *FarmerProfile {
			return &FarmerProfile{}
		},
		GetID: func(record *FarmerProfile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.UserID
		},
		SetID: func(record *FarmerProfile, id uuid.UUID) {
			record.UserID = id
		},
		GetIdentifier: func() string {
			return "user_id"
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewVetProfilesRepository(db *bun.DB) repository.Repository[*VetProfile] {
	handlers := repository.ModelHandlers[*VetProfile]{
		NewRecord: func() *VetProfile {
			return &VetProfile{}
		},
		GetID: func(record *VetProfile) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.UserID
		},
		SetID: func(record *VetProfile, id uuid.UUID) {
			record.UserID = id
		},
		GetIdentifier: func() string {
			return "license_no"
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db             *bun.DB
	users          Users
	farmerProfiles repository.Repository[*FarmerProfile]
	vetProfiles    repository.Repository[*VetProfile]
}

func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	return &mngr{
		db:             db,
		users:          NewUsersRepository(db, opts...),
		farmerProfiles: NewFarmerProfilesRepository(db),
		vetProfiles:    NewVetProfilesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.farmerProfiles == nil {
		return errors.New("repository farmerProfiles should be initialized")
	}

	if m.vetProfiles == nil {
		return errors.New("repository vetProfiles should be initialized")
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

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) FarmerProfiles() repository.Repository[*FarmerProfile] {
	return m.farmerProfiles
}

func (m mngr) VetProfiles() repository.Repository[*VetProfile] {
	return m.vetProfiles
}

// AuthModels lists every model this package persists, in creation order.
func AuthModels() []any {
	return []any{
		(*User)(nil),
		(*FarmerProfile)(nil),
		(*VetProfile)(nil),
		(*OTPChallenge)(nil),
		(*RefreshToken)(nil),
	}
}

// CreateSchema creates the auth tables if they do not exist. SQLite-friendly
// bootstrap used by cmd and tests; production deployments run migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range AuthModels() {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
