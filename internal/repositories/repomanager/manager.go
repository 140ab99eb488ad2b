// Package repomanager builds every entity repository over one store and
// repairs their indexes.
package repomanager

import (
	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/internal/repositories/attendance"
	"github.com/celerix-dev/celerix-hr/internal/repositories/biometrics"
	"github.com/celerix-dev/celerix-hr/internal/repositories/employees"
	"github.com/celerix-dev/celerix-hr/internal/repositories/users"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

// Options tune the shared index.Env. Zero values keep the defaults.
type Options struct {
	Keys         index.Keyspace
	Locks        index.Locker
	Log          logging.Logger
	MaxGroupSize int
	// Cipher seals biometric data when set.
	Cipher biometrics.Cipher
}

// Manager vends the repositories sharing one index.Env.
type Manager struct {
	env *index.Env

	users      *users.KVRepository
	employees  *employees.KVRepository
	attendance *attendance.KVRepository
	biometrics *biometrics.KVRepository
}

// New constructs a Manager over store.
func New(store engine.Store, opts Options) *Manager {
	env := index.NewEnv(store)
	if opts.Keys != nil {
		env.Keys = opts.Keys
	}
	if opts.Locks != nil {
		env.Locks = opts.Locks
	}
	if opts.Log != nil {
		env.Log = opts.Log
	}
	if opts.MaxGroupSize > 0 {
		env.MaxGroupSize = opts.MaxGroupSize
	}
	return NewWithEnv(env, opts.Cipher)
}

// NewWithEnv constructs a Manager over a prepared Env.
func NewWithEnv(env *index.Env, c biometrics.Cipher) *Manager {
	return &Manager{
		env:        env,
		users:      users.NewKVRepository(env),
		employees:  employees.NewKVRepository(env),
		attendance: attendance.NewKVRepository(env),
		biometrics: biometrics.NewKVRepository(env, c),
	}
}

// Env returns the shared environment.
func (m *Manager) Env() *index.Env { return m.env }

// Users returns the users.Repository.
func (m *Manager) Users() users.Repository { return m.users }

// Employees returns the employees.Repository.
func (m *Manager) Employees() employees.Repository { return m.employees }

// Attendance returns the attendance.Repository.
func (m *Manager) Attendance() attendance.Repository { return m.attendance }

// Biometrics returns the biometrics.Repository.
func (m *Manager) Biometrics() biometrics.Repository { return m.biometrics }
