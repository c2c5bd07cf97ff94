package main

import (
	"encoding/json"
	"log"
	"os"
	"strings"

	"stationcodes/models"
	"stationcodes/pkg/index"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true). Any permission errors will be logged and ignored.
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	// Ensure the roles master table exists first and seed it so users FK can be applied safely.
	if shouldMigrate {
		if err := db.AutoMigrate(&models.Role{}); err != nil {
			log.Printf("migration warning (roles): %v", err)
		}
	}
	seedRoles()

	// Now migrate the rest (users will get FK to roles)
	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			log.Printf("migration warning (users): %v", err)
		}
		if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
			log.Printf("migration warning (refresh_tokens): %v", err)
		}
		if err := db.AutoMigrate(&models.Location{}); err != nil {
			log.Printf("migration warning (locations): %v", err)
		}
	}
	seedDB()
}

func seedRoles() {
	roles := []models.Role{{Name: "administrator", Description: "full access"}, {Name: "user", Description: "regular user"}}
	for _, r := range roles {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}
}

func seedDB() {
	seedRoles()

	// Check if admin user exists
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		// find administrator role id
		var role models.Role
		if err := db.Where("name = ?", "administrator").First(&role).Error; err != nil {
			log.Printf("failed to find administrator role: %v", err)
		}
		// Seed admin user
		rid := role.ID
		admin := models.User{
			Username: "admin",
			RoleID:   &rid,
		}
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin.HashedPassword = hashedPassword
		db.Create(&admin)
		log.Println("Seeded admin user: username=admin, password=admin123")
	}

	seedLocations()
}

// datasetRow mirrors the exported JSON shape of the location dataset.
type datasetRow struct {
	Location    string `json:"LOCATION"`
	ReferenceID string `json:"REFERENCEID"`
	Type        string `json:"TYPE"`
}

// seedLocations imports the location dataset from DATASET_PATH when the
// locations table is empty. Imports run in batches to keep memory flat.
func seedLocations() {
	var count int64
	db.Model(&models.Location{}).Count(&count)
	if count > 0 {
		return
	}
	path := os.Getenv("DATASET_PATH")
	if path == "" {
		log.Println("DATASET_PATH not set; locations table left empty")
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("failed to read dataset %s: %v", path, err)
		return
	}
	var rows []datasetRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		log.Printf("failed to parse dataset %s: %v", path, err)
		return
	}
	batch := make([]models.Location, 0, 500)
	inserted := 0
	for _, r := range rows {
		loc := strings.TrimSpace(r.Location)
		if loc == "" {
			continue
		}
		batch = append(batch, models.Location{
			Location:    loc,
			ReferenceID: strings.TrimSpace(r.ReferenceID),
			Type:        strings.TrimSpace(r.Type),
		})
		if len(batch) == cap(batch) {
			if err := db.Create(&batch).Error; err != nil {
				log.Printf("dataset batch insert failed: %v", err)
			}
			inserted += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := db.Create(&batch).Error; err != nil {
			log.Printf("dataset batch insert failed: %v", err)
		}
		inserted += len(batch)
	}
	log.Printf("seeded %d locations from %s", inserted, path)
}

// loadIndex builds the in-memory lookup index from the locations table.
func loadIndex() (*index.Index, error) {
	var rows []models.Location
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	recs := make([]index.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, index.Record{
			Location:    r.Location,
			ReferenceID: r.ReferenceID,
			Type:        r.Type,
		})
	}
	return index.Build(recs), nil
}
