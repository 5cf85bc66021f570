package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

// Models lists every entity in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Branch{},
		&models.Table{},
		&models.PromoCode{},
		&models.Booking{},
		&models.Payment{},
		&models.Notification{},
	}
}

// Migrate creates or updates the schema, including the composite
// (table_id, booking_date) index the conflict check relies on.
func Migrate(db *gorm.DB, log *logrus.Logger) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if !db.Migrator().HasIndex(&models.Booking{}, "idx_bookings_table_date") {
		if err := db.Migrator().CreateIndex(&models.Booking{}, "idx_bookings_table_date"); err != nil {
			return fmt.Errorf("create booking index: %w", err)
		}
	}
	log.Info("AutoMigrate completed.")
	return nil
}
