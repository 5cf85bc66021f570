package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

// Seed inserts a demo branch with a handful of tables and an admin account.
// It does nothing when any branch already exists.
func Seed(db *gorm.DB, log *logrus.Logger, adminEmail, adminPassword string) error {
	var n int64
	if err := db.Model(&models.Branch{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		log.Info("seed skipped, branches already exist")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		branch := models.Branch{
			Name:         "Sukhumvit",
			Address:      "Sukhumvit Soi 11, Bangkok",
			Phone:        "02-000-0000",
			OpeningHours: "17:00-02:00",
			IsActive:     true,
		}
		if err := tx.Create(&branch).Error; err != nil {
			return err
		}

		tables := []models.Table{
			{TableNumber: "A1", Zone: "Indoor", TableType: "Standard", Capacity: 4, MinimumSpend: decimal.NewFromInt(1000)},
			{TableNumber: "A2", Zone: "Indoor", TableType: "Standard", Capacity: 2, MinimumSpend: decimal.NewFromInt(600)},
			{TableNumber: "O1", Zone: "Outdoor", TableType: "Standard", Capacity: 6, MinimumSpend: decimal.NewFromInt(2000)},
			{TableNumber: "V1", Zone: "VIP", TableType: "Sofa", Capacity: 8, MinimumSpend: decimal.NewFromInt(5000), BasePrice: decimal.NewFromInt(500)},
			{TableNumber: "P1", Zone: "Private", TableType: "Room", Capacity: 12, MinimumSpend: decimal.NewFromInt(10000), BasePrice: decimal.NewFromInt(1500)},
		}
		for i := range tables {
			tables[i].BranchID = branch.ID
			tables[i].IsActive = true
		}
		if err := tx.Create(&tables).Error; err != nil {
			return err
		}

		if adminEmail != "" && adminPassword != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			admin := models.User{Name: "Administrator", Email: adminEmail, Password: string(hash), Role: models.RoleAdmin}
			if err := tx.Create(&admin).Error; err != nil {
				return err
			}
		}
		log.WithField("branch_id", branch.ID).Info("seed data created")
		return nil
	})
}
