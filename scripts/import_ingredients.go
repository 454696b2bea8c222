package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/franciscosanchezn/gin-recipes-api/internal/config"
	"github.com/franciscosanchezn/gin-recipes-api/internal/database"
	"github.com/franciscosanchezn/gin-recipes-api/internal/services"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Loads the ingredient catalog from a CSV file and optionally creates an
// administrator, using the same database settings as the server.
//
//	go run ./scripts -file data/ingredients.csv
//	go run ./scripts -admin admin@example.com -username admin -password s3cret-pass
func main() {
	file := flag.String("file", "", "CSV file with name,measurement_unit rows")
	keep := flag.Bool("keep", false, "Keep existing ingredients instead of replacing them")
	adminEmail := flag.String("admin", "", "Create an administrator with this email")
	adminUsername := flag.String("username", "admin", "Administrator username")
	adminPassword := flag.String("password", "", "Administrator password")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
	log.SetFormatter(&log.JSONFormatter{})

	if *file == "" && *adminEmail == "" {
		flag.Usage()
		os.Exit(2)
	}

	conf, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	db, err := database.InitDatabase(conf.Database())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	ctx := context.Background()

	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.WithError(err).Fatal("Failed to open CSV file")
		}
		defer f.Close()

		rows, err := services.ReadIngredientsCSV(f)
		if err != nil {
			log.WithError(err).Fatal("Failed to parse CSV file")
		}
		n, err := services.NewCatalogService(db).ImportIngredients(ctx, rows, !*keep)
		if err != nil {
			log.WithError(err).Fatal("Failed to import ingredients")
		}
		fmt.Printf("✓ Imported %d ingredients from %s\n", n, *file)
	}

	if *adminEmail != "" {
		users := services.NewUserService(db, services.NewComposer(db, nil))
		admin, err := users.CreateAdmin(ctx, services.RegisterInput{
			Email:     *adminEmail,
			Username:  *adminUsername,
			FirstName: "Admin",
			LastName:  "Admin",
			Password:  *adminPassword,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to create administrator")
		}
		fmt.Printf("✓ Administrator created: %s (ID: %d)\n", admin.Email, admin.ID)
		fmt.Println("\nLog in with:")
		fmt.Printf("curl -X POST http://%s/api/auth/token/login \\\n", conf.Addr())
		fmt.Printf("  -H 'Content-Type: application/json' \\\n")
		fmt.Printf("  -d '{\"email\": \"%s\", \"password\": \"...\"}'\n", admin.Email)
	}
}
