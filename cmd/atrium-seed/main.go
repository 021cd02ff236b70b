// Command atrium-seed prepares a database for local development: it runs
// migrations, loads the platform app catalog, and can provision a demo
// tenant from an industry template.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/atriumhq/atrium/pkg/audit"
	"github.com/atriumhq/atrium/pkg/entities"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/roles"
	"github.com/atriumhq/atrium/pkg/storage"
	"github.com/atriumhq/atrium/pkg/templates"
	"github.com/atriumhq/atrium/pkg/tenants"
	"github.com/atriumhq/atrium/pkg/workflows"
)

var (
	dbURL        = flag.String("db-url", getEnv("ATRIUM_POSTGRES_URL", "postgres://localhost/atrium?sslmode=disable"), "PostgreSQL connection URL")
	templatesDir = flag.String("templates-dir", getEnv("ATRIUM_TEMPLATES_DIR", "templates"), "Directory holding template blueprints")
	demo         = flag.Bool("demo", false, "Create a demo tenant and instantiate a template into it")
	demoName     = flag.String("demo-name", "Acme Demo", "Name for the demo tenant")
	demoTemplate = flag.String("demo-template", "law-firm", "Template to instantiate into the demo tenant")
	demoOwner    = flag.String("demo-owner", "", "Owner user UUID for the demo tenant (random if empty)")
)

// catalog is the platform app catalog. Core apps are provisioned
// enabled for every new tenant; the rest wait for an explicit enable.
var catalog = []tenants.App{
	{Code: "crm", Name: "CRM", Description: "Records and entity modules", IsCore: true},
	{Code: "automation", Name: "Automation", Description: "Workflows triggered by record events", IsCore: true},
	{Code: "dashboards", Name: "Dashboards", Description: "Role-scoped dashboards", IsCore: true},
	{Code: "billing", Name: "Billing", Description: "Invoicing and payments"},
	{Code: "reports", Name: "Reports", Description: "Exports and scheduled reports"},
}

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	db, err := storage.Open(storage.Config{URL: *dbURL})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer db.Close()

	ctx := context.Background()

	if err := migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	log.Info("migrations applied")

	svc := tenants.NewPostgresService(db)
	for i := range catalog {
		app := catalog[i]
		if err := svc.CreateApp(ctx, &app); err != nil {
			log.WithError(err).WithField("app", app.Code).Fatal("failed to seed app")
		}
		log.WithField("app", app.Code).Info("app seeded")
	}

	if !*demo {
		return
	}

	owner := uuid.New()
	if *demoOwner != "" {
		owner, err = uuid.Parse(*demoOwner)
		if err != nil {
			log.WithError(err).Fatal("invalid demo owner UUID")
		}
	}

	tenant, err := svc.CreateTenant(ctx, &tenants.CreateTenantRequest{
		Name:        *demoName,
		OwnerUserID: owner,
	})
	if errors.Is(err, tenants.ErrDuplicateSlug) {
		tenant, err = svc.GetTenantBySlug(ctx, entities.Slugify(*demoName))
		if err == nil {
			log.WithField("tenant", tenant.Slug).Info("demo tenant already exists")
		}
	}
	if err != nil {
		log.WithError(err).Fatal("failed to create demo tenant")
	}

	roleStore := roles.NewStore(db)
	if err := roles.SeedSystemRoles(ctx, roleStore, tenant.ID); err != nil {
		log.WithError(err).Fatal("failed to seed system roles")
	}

	registry, err := templates.NewRegistry(*templatesDir, 16,
		observability.NewLogger(observability.WarnLevel, os.Stderr), nil)
	if err != nil {
		log.WithError(err).Fatal("failed to load templates")
	}
	provisioner := templates.NewProvisioner(db, registry,
		observability.NewLogger(observability.WarnLevel, os.Stderr), nil, audit.NopLogger{})

	summary, err := provisioner.Instantiate(ctx, tenant.ID, *demoTemplate, owner)
	if err != nil {
		log.WithError(err).WithField("template", *demoTemplate).Fatal("failed to instantiate template")
	}

	log.WithFields(logrus.Fields{
		"tenant":     tenant.Slug,
		"owner":      owner.String(),
		"modules":    len(summary.Modules),
		"workflows":  len(summary.Workflows),
		"dashboards": len(summary.Dashboards),
	}).Info("demo tenant ready")
}

func migrate(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		table      string
		migrations []storage.Migration
	}{
		{tenants.MigrationsTable, tenants.GetMigrations()},
		{roles.MigrationsTable, roles.GetMigrations()},
		{entities.MigrationsTable, entities.GetMigrations()},
		{workflows.MigrationsTable, workflows.GetMigrations()},
		{audit.MigrationsTable, audit.GetMigrations()},
	}
	for _, step := range steps {
		if err := storage.RunMigrations(ctx, db, step.table, step.migrations); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
