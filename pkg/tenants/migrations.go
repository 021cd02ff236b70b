package tenants

import (
	"github.com/atriumhq/atrium/pkg/storage"
)

// MigrationsTable tracks applied tenant store migrations.
const MigrationsTable = "tenants_migrations"

// GetMigrations returns all tenant membership store migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					plan VARCHAR(50) NOT NULL DEFAULT 'free',
					owner_user_id UUID NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_tenants_slug ON tenants(slug);
				CREATE INDEX idx_tenants_owner_user_id ON tenants(owner_user_id);
			`,
		},
		{
			Version:     2,
			Description: "Create memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS memberships (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					user_id UUID NOT NULL,
					role VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					invited_by UUID,
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, user_id)
				);

				CREATE INDEX idx_memberships_tenant_id ON memberships(tenant_id);
				CREATE INDEX idx_memberships_user_id ON memberships(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create apps table",
			SQL: `
				CREATE TABLE IF NOT EXISTS apps (
					id UUID PRIMARY KEY,
					code VARCHAR(100) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					is_core BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_apps_code ON apps(code);
			`,
		},
		{
			Version:     4,
			Description: "Create tenant_apps table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenant_apps (
					id UUID PRIMARY KEY,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					app_id UUID NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, app_id)
				);

				CREATE INDEX idx_tenant_apps_tenant_id ON tenant_apps(tenant_id);
				CREATE INDEX idx_tenant_apps_app_id ON tenant_apps(app_id);
			`,
		},
		{
			Version:     5,
			Description: "Create user_app_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_app_permissions (
					id UUID PRIMARY KEY,
					membership_id UUID NOT NULL REFERENCES memberships(id) ON DELETE CASCADE,
					app_id UUID NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
					permissions JSONB NOT NULL DEFAULT '{}',
					granted_by UUID,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(membership_id, app_id)
				);

				CREATE INDEX idx_user_app_permissions_membership_id ON user_app_permissions(membership_id);
				CREATE INDEX idx_user_app_permissions_app_id ON user_app_permissions(app_id);
			`,
		},
	}
}
