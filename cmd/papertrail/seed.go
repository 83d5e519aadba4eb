package main

import (
	"fmt"
	"log/slog"
	"os"
	"papertrail/docstore/schema"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type seedTag struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type seedScenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type seedConfig struct {
	Organizations []string       `yaml:"organizations"`
	Statuses      []string       `yaml:"statuses"`
	Scenarios     []seedScenario `yaml:"scenarios"`
	Tags          []seedTag      `yaml:"tags"`
}

// seedDb creates any organizations, statuses, scenarios, and tags from the
// seed file that don't already exist. Safe to run on every startup.
func seedDb(db *gorm.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading seed file %v: %w", path, err)
	}

	var config seedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("error parsing seed file %v: %w", path, err)
	}

	return db.Transaction(func(txn *gorm.DB) error {
		for _, name := range config.Organizations {
			var existing schema.Organization
			result := txn.Limit(1).Find(&existing, "name = ?", name)
			if result.Error != nil {
				return fmt.Errorf("error checking for organization %v: %w", name, result.Error)
			}
			if result.RowsAffected != 0 {
				continue
			}

			if err := txn.Create(&schema.Organization{Id: uuid.New(), Name: name}).Error; err != nil {
				return fmt.Errorf("error creating organization %v: %w", name, err)
			}
			slog.Info("seeded organization", "name", name)
		}

		for _, name := range config.Statuses {
			var existing schema.Status
			result := txn.Limit(1).Find(&existing, "name = ?", name)
			if result.Error != nil {
				return fmt.Errorf("error checking for status %v: %w", name, result.Error)
			}
			if result.RowsAffected != 0 {
				continue
			}

			if err := txn.Create(&schema.Status{Id: uuid.New(), Name: name}).Error; err != nil {
				return fmt.Errorf("error creating status %v: %w", name, err)
			}
			slog.Info("seeded status", "name", name)
		}

		for _, scenario := range config.Scenarios {
			var existing schema.Scenario
			result := txn.Limit(1).Find(&existing, "name = ?", scenario.Name)
			if result.Error != nil {
				return fmt.Errorf("error checking for scenario %v: %w", scenario.Name, result.Error)
			}
			if result.RowsAffected != 0 {
				continue
			}

			newScenario := schema.Scenario{Id: uuid.New(), Name: scenario.Name, Description: scenario.Description}
			if err := txn.Create(&newScenario).Error; err != nil {
				return fmt.Errorf("error creating scenario %v: %w", scenario.Name, err)
			}
			slog.Info("seeded scenario", "name", scenario.Name)
		}

		for _, tag := range config.Tags {
			var existing schema.Tag
			result := txn.Limit(1).Find(&existing, "name = ?", tag.Name)
			if result.Error != nil {
				return fmt.Errorf("error checking for tag %v: %w", tag.Name, result.Error)
			}
			if result.RowsAffected != 0 {
				continue
			}

			if err := txn.Create(&schema.Tag{Id: uuid.New(), Name: tag.Name, Color: tag.Color}).Error; err != nil {
				return fmt.Errorf("error creating tag %v: %w", tag.Name, err)
			}
			slog.Info("seeded tag", "name", tag.Name)
		}

		return nil
	})
}
