package bootstrap

import (
	"strings"

	"anoa.com/anomologita/internal/entity"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.University{},
		&entity.User{},
		&entity.Post{},
		&entity.Comment{},
	)
}

var defaultUniversities = []entity.University{
	{Name: "National and Kapodistrian University of Athens", ShortName: "NKUA", Location: "Athens", Website: "https://www.uoa.gr"},
	{Name: "Aristotle University of Thessaloniki", ShortName: "AUTH", Location: "Thessaloniki", Website: "https://www.auth.gr"},
	{Name: "National Technical University of Athens", ShortName: "NTUA", Location: "Athens", Website: "https://www.ntua.gr"},
	{Name: "University of Patras", ShortName: "UPATRAS", Location: "Patras", Website: "https://www.upatras.gr"},
	{Name: "University of Crete", ShortName: "UOC", Location: "Rethymno", Website: "https://www.uoc.gr"},
	{Name: "University of Ioannina", ShortName: "UOI", Location: "Ioannina", Website: "https://www.uoi.gr"},
	{Name: "Athens University of Economics and Business", ShortName: "AUEB", Location: "Athens", Website: "https://www.aueb.gr"},
	{Name: "University of Piraeus", ShortName: "UNIPI", Location: "Piraeus", Website: "https://www.unipi.gr"},
	{Name: "University of Macedonia", ShortName: "UOM", Location: "Thessaloniki", Website: "https://www.uom.gr"},
	{Name: "University of Thessaly", ShortName: "UTH", Location: "Volos", Website: "https://www.uth.gr"},
	{Name: "Democritus University of Thrace", ShortName: "DUTH", Location: "Komotini", Website: "https://www.duth.gr"},
	{Name: "University of the Aegean", ShortName: "AEGEAN", Location: "Mytilene", Website: "https://www.aegean.gr"},
	{Name: "Technical University of Crete", ShortName: "TUC", Location: "Chania", Website: "https://www.tuc.gr"},
	{Name: "Panteion University", ShortName: "PANTEION", Location: "Athens", Website: "https://www.panteion.gr"},
	{Name: "University of West Attica", ShortName: "UNIWA", Location: "Athens", Website: "https://www.uniwa.gr"},
	{Name: "International Hellenic University", ShortName: "IHU", Location: "Thessaloniki", Website: "https://www.ihu.gr"},
}

// SeedUniversities fills the reference table on an empty database.
func SeedUniversities(db *gorm.DB) error {
	var count int64
	if err := db.Model(&entity.University{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	unis := make([]entity.University, len(defaultUniversities))
	copy(unis, defaultUniversities)
	if err := db.Create(&unis).Error; err != nil {
		return err
	}

	log.Info().Int("count", len(unis)).Msg("universities seeded")
	return nil
}

type seedUser struct {
	username  string
	email     string
	password  string
	isAdmin   bool
	isStudent bool
}

var devUsers = []seedUser{
	{username: "admin", email: "admin@anomologita.com", password: "Admin123!", isAdmin: true},
	{username: "student", email: "student@anomologita.com", password: "Student123!", isStudent: true},
}

// SeedDevUsers creates an admin and a student account when no users
// exist. Only called in development.
func SeedDevUsers(db *gorm.DB) error {
	var count int64
	if err := db.Model(&entity.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Debug().Msg("users already exist, skipping seed")
		return nil
	}

	for _, su := range devUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u := entity.User{
			Username:     su.username,
			Email:        strings.ToLower(su.email),
			PasswordHash: string(hash),
			IsAdmin:      su.isAdmin,
			IsStudent:    su.isStudent,
		}
		if err := db.Create(&u).Error; err != nil {
			return err
		}
		log.Info().Str("username", su.username).Msg("dev user seeded")
	}

	return nil
}
