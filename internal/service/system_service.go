package service

import (
	"database/sql"

	"github.com/portfoliovalue/backend/internal/database"
	"github.com/portfoliovalue/backend/internal/version"
)

// SystemService answers operational questions about the running process:
// whether its database is reachable and which build is deployed.
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService over the given database handle.
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{db: db}
}

// CheckHealth reports whether the database connection is alive.
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion returns the running application version.
func (s *SystemService) CheckVersion() string {
	return version.Version
}
