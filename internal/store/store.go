package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/store/model"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	// LockProject serializes pass commits on a project; ctx must carry a transaction.
	LockProject(ctx context.Context, projectID uuid.UUID) error
	Project() Project
	RiskConfig() RiskConfig
	Tenant() Tenant
	VM() VM
	Dependency() Dependency
	NetworkMapping() NetworkMapping
	Cohort() Cohort
	Wave() Wave
	Gap() Gap
	Destination() Destination
	Pass() Pass
	// PurgeProject deletes every child row of the project, keeping the project row.
	PurgeProject(ctx context.Context, projectID uuid.UUID) error
	Statistics(ctx context.Context) (model.PlannerStats, error)
	Close() error
}

type DataStore struct {
	db             *gorm.DB
	log            logrus.FieldLogger
	lock           *ProjectLock
	project        Project
	riskConfig     RiskConfig
	tenant         Tenant
	vm             VM
	dependency     Dependency
	networkMapping NetworkMapping
	cohort         Cohort
	wave           Wave
	gap            Gap
	destination    Destination
	pass           Pass
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:             db,
		log:            logrus.New().WithField("component", "store"),
		lock:           NewProjectLock(db),
		project:        NewProjectStore(db),
		riskConfig:     NewRiskConfigStore(db),
		tenant:         NewTenantStore(db),
		vm:             NewVMStore(db),
		dependency:     NewDependencyStore(db),
		networkMapping: NewNetworkMappingStore(db),
		cohort:         NewCohortStore(db),
		wave:           NewWaveStore(db),
		gap:            NewGapStore(db),
		destination:    NewDestinationStore(db),
		pass:           NewPassStore(db),
	}
}

// InitialMigration creates or updates the schema from the models. Deployments
// with a migration folder use goose instead.
func InitialMigration(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Project{},
		&model.RiskConfig{},
		&model.Tenant{},
		&model.VM{},
		&model.VMDependency{},
		&model.NetworkMapping{},
		&model.Cohort{},
		&model.Wave{},
		&model.TargetGap{},
		&model.DestinationSnapshot{},
		&model.Pass{},
	)
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db, s.log)
}

func (s *DataStore) LockProject(ctx context.Context, projectID uuid.UUID) error {
	return s.lock.Acquire(ctx, projectID)
}

func (s *DataStore) Project() Project {
	return s.project
}

func (s *DataStore) RiskConfig() RiskConfig {
	return s.riskConfig
}

func (s *DataStore) Tenant() Tenant {
	return s.tenant
}

func (s *DataStore) VM() VM {
	return s.vm
}

func (s *DataStore) Dependency() Dependency {
	return s.dependency
}

func (s *DataStore) NetworkMapping() NetworkMapping {
	return s.networkMapping
}

func (s *DataStore) Cohort() Cohort {
	return s.cohort
}

func (s *DataStore) Wave() Wave {
	return s.wave
}

func (s *DataStore) Gap() Gap {
	return s.gap
}

func (s *DataStore) Destination() Destination {
	return s.destination
}

func (s *DataStore) Pass() Pass {
	return s.pass
}

func (s *DataStore) PurgeProject(ctx context.Context, projectID uuid.UUID) error {
	for _, purge := range []func(context.Context, uuid.UUID) error{
		s.vm.DeleteByProject,
		s.dependency.DeleteByProject,
		s.networkMapping.DeleteByProject,
		s.tenant.DeleteByProject,
		s.gap.DeleteByProject,
		s.destination.DeleteByProject,
		s.pass.DeleteByProject,
		s.cohort.DeleteByProject,
		func(ctx context.Context, id uuid.UUID) error {
			return s.wave.Delete(ctx, NewWaveQueryFilter().ByProject(id))
		},
	} {
		if err := purge(ctx, projectID); err != nil {
			return err
		}
	}
	return nil
}

func (s *DataStore) Statistics(ctx context.Context) (model.PlannerStats, error) {
	db := FromContext(ctx)
	if db == nil {
		db = s.db
	}

	count := func(m interface{}, column string, where ...interface{}) (map[string]int, error) {
		var rows []model.GroupCount
		tx := db.Model(m).Select(column + " AS label, COUNT(*) AS total").Group(column)
		if len(where) > 0 {
			tx = tx.Where(where[0], where[1:]...)
		}
		if err := tx.Scan(&rows).Error; err != nil {
			return nil, err
		}
		return model.CountsToMap(rows), nil
	}

	var (
		stats model.PlannerStats
		err   error
	)
	if stats.ProjectsByStatus, err = count(&model.Project{}, "status"); err != nil {
		return stats, err
	}
	if stats.VMsByCategory, err = count(&model.VM{}, "risk_category", "exclude_from_migration = ?", false); err != nil {
		return stats, err
	}
	if stats.WavesByStatus, err = count(&model.Wave{}, "status"); err != nil {
		return stats, err
	}
	if stats.OpenGapsBySeverity, err = count(&model.TargetGap{}, "severity", "status = ?", "open"); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
