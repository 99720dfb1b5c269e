package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/frahmantamala/meter-fleet/internal/assignment"
	"github.com/frahmantamala/meter-fleet/internal/auth"
	authPostgres "github.com/frahmantamala/meter-fleet/internal/auth/postgres"
	assignmentDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/assignment"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	userDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/user"
	"github.com/frahmantamala/meter-fleet/internal/database"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	seedUsername string
	seedEmail    string
	seedPassword string
	seedDemo     bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial superuser",
	Long:  `Create the initial ADMIN superuser. With --demo a manager, an engineer and a meter assigned to both are added too.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		conn, err := database.Open(cfg.Database, logger.LoggerWrapper())
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer conn.Close()

		ctx := context.Background()
		repo := authPostgres.NewRepository(conn.Gorm)

		admin, err := ensureUser(ctx, repo, seedUsername, seedEmail, seedPassword, auth.RoleAdmin, cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to seed superuser: %v", err)
		}
		fmt.Println("Superuser ready:", admin.Username)

		if !seedDemo {
			return
		}
		if err := seedDemoFleet(ctx, conn.Gorm, repo, cfg.Security.BCryptCost); err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
	},
}

func ensureUser(ctx context.Context, repo *authPostgres.Repository, username, email, password string, role auth.Role, cost int) (*auth.Account, error) {
	existing, err := repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", username, err)
	}
	if existing != nil {
		fmt.Println(username, "already exists; skipping")
		return auth.ToAccount(existing), nil
	}

	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}

	u := &userDatamodel.User{
		Username:     username,
		Email:        email,
		Role:         string(role),
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      role == auth.RoleAdmin,
		IsSuperuser:  role == auth.RoleAdmin,
	}
	if err := repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("insert %s: %w", username, err)
	}
	return auth.ToAccount(u), nil
}

func seedDemoFleet(ctx context.Context, db *gorm.DB, repo *authPostgres.Repository, cost int) error {
	manager, err := ensureUser(ctx, repo, "manager", "manager@example.com", seedPassword, auth.RoleManager, cost)
	if err != nil {
		return err
	}
	engineer, err := ensureUser(ctx, repo, "engineer", "engineer@example.com", seedPassword, auth.RoleEngineer, cost)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := meterDatamodel.Meter{DeviceID: "GEN-DEMO-001", Location: "Demo site"}
		if err := tx.Where("device_id = ?", m.DeviceID).FirstOrCreate(&m).Error; err != nil {
			return fmt.Errorf("insert meter: %w", err)
		}

		team := assignmentDatamodel.UserAssignment{ManagerID: manager.ID, EngineerID: engineer.ID}
		if err := tx.Where("manager_id = ? AND engineer_id = ?", manager.ID, engineer.ID).FirstOrCreate(&team).Error; err != nil {
			return fmt.Errorf("insert user assignment: %w", err)
		}

		engineerID := engineer.ID
		held := assignmentDatamodel.MeterAssignment{MeterID: m.ID, ManagerID: manager.ID, Status: string(assignment.StatusActive), EngineerID: &engineerID}
		if err := tx.Where("meter_id = ? AND manager_id = ? AND status = ?", m.ID, manager.ID, held.Status).FirstOrCreate(&held).Error; err != nil {
			return fmt.Errorf("insert meter assignment: %w", err)
		}

		fmt.Println("Seeded demo fleet:", m.DeviceID, "held by", manager.Username, "and", engineer.Username)
		return nil
	})
}

func init() {
	seedCmd.Flags().StringVar(&seedUsername, "username", "admin", "superuser username")
	seedCmd.Flags().StringVar(&seedEmail, "email", "admin@example.com", "superuser email")
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "password for every seeded user")
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "also seed a manager, an engineer and a meter")
}
