package db

import (
	"context"
	"fmt"
)

// Schema is the authoritative DDL for the registry. EnsureSchema runs it at
// startup; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
	digest           CHAR(64) PRIMARY KEY,
	size_bytes       BIGINT NOT NULL CHECK (size_bytes >= 0),
	content_type     TEXT NOT NULL DEFAULT 'application/octet-stream',
	content_encoding TEXT NOT NULL DEFAULT '',
	is_deleted       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS uploads (
	upload_id    UUID PRIMARY KEY,
	owner        TEXT NOT NULL,
	filename     TEXT NOT NULL,
	object_key   TEXT NOT NULL,
	size_bytes   BIGINT NOT NULL,
	multipart_id TEXT,
	status       TEXT NOT NULL,
	expiry       TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS uploads_expiry_idx ON uploads (expiry) WHERE status IN ('initial', 'upload_created');

CREATE TABLE IF NOT EXISTS teams (
	team_id    UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS teams_name_ci_idx ON teams (lower(name));

CREATE TABLE IF NOT EXISTS team_members (
	team_id  UUID NOT NULL REFERENCES teams (team_id),
	username TEXT NOT NULL,
	role     TEXT NOT NULL DEFAULT 'member',
	PRIMARY KEY (team_id, username)
);

CREATE TABLE IF NOT EXISTS namespaces (
	namespace_id UUID PRIMARY KEY,
	name         TEXT NOT NULL,
	team_id      UUID NOT NULL REFERENCES teams (team_id),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS namespaces_name_ci_idx ON namespaces (lower(name));

CREATE TABLE IF NOT EXISTS communities (
	community_id             UUID PRIMARY KEY,
	identifier               TEXT NOT NULL UNIQUE,
	name                     TEXT NOT NULL,
	require_package_approval BOOLEAN NOT NULL DEFAULT FALSE,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS community_moderators (
	community_id UUID NOT NULL REFERENCES communities (community_id),
	username     TEXT NOT NULL,
	PRIMARY KEY (community_id, username)
);

CREATE TABLE IF NOT EXISTS package_categories (
	category_id  UUID PRIMARY KEY,
	community_id UUID NOT NULL REFERENCES communities (community_id),
	slug         TEXT NOT NULL,
	name         TEXT NOT NULL,
	UNIQUE (community_id, slug)
);

CREATE TABLE IF NOT EXISTS packages (
	package_id        UUID PRIMARY KEY,
	namespace_id      UUID NOT NULL REFERENCES namespaces (namespace_id),
	owner_team_id     UUID NOT NULL REFERENCES teams (team_id),
	name              TEXT NOT NULL,
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	is_deprecated     BOOLEAN NOT NULL DEFAULT FALSE,
	is_pinned         BOOLEAN NOT NULL DEFAULT FALSE,
	latest_version_id UUID,
	date_created      TIMESTAMPTZ NOT NULL DEFAULT now(),
	date_updated      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS packages_namespace_name_ci_idx
	ON packages (namespace_id, lower(name));

CREATE TABLE IF NOT EXISTS package_versions (
	version_id     UUID PRIMARY KEY,
	package_id     UUID NOT NULL REFERENCES packages (package_id),
	name           TEXT NOT NULL,
	version_number TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	website_url    TEXT NOT NULL DEFAULT '',
	readme         TEXT NOT NULL DEFAULT '',
	changelog      TEXT,
	icon_digest    CHAR(64) NOT NULL REFERENCES blobs (digest),
	file_digest    CHAR(64) NOT NULL REFERENCES blobs (digest),
	file_size      BIGINT NOT NULL,
	downloads      BIGINT NOT NULL DEFAULT 0,
	format_spec    TEXT NOT NULL,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	date_created   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (package_id, version_number)
);

ALTER TABLE packages DROP CONSTRAINT IF EXISTS packages_latest_version_fk;
ALTER TABLE packages ADD CONSTRAINT packages_latest_version_fk
	FOREIGN KEY (latest_version_id) REFERENCES package_versions (version_id);

CREATE TABLE IF NOT EXISTS version_dependencies (
	version_id    UUID NOT NULL REFERENCES package_versions (version_id),
	dependency_id UUID NOT NULL REFERENCES package_versions (version_id),
	ordinal       INT NOT NULL,
	PRIMARY KEY (version_id, dependency_id)
);

CREATE TABLE IF NOT EXISTS version_installers (
	version_id UUID NOT NULL REFERENCES package_versions (version_id),
	identifier TEXT NOT NULL,
	PRIMARY KEY (version_id, identifier)
);

CREATE TABLE IF NOT EXISTS file_tree_entries (
	version_id  UUID NOT NULL REFERENCES package_versions (version_id),
	path        TEXT NOT NULL,
	blob_digest CHAR(64) NOT NULL REFERENCES blobs (digest),
	size_bytes  BIGINT NOT NULL,
	PRIMARY KEY (version_id, path)
);

CREATE TABLE IF NOT EXISTS package_listings (
	listing_id       UUID PRIMARY KEY,
	package_id       UUID NOT NULL REFERENCES packages (package_id),
	community_id     UUID NOT NULL REFERENCES communities (community_id),
	has_nsfw_content BOOLEAN NOT NULL DEFAULT FALSE,
	review_status    TEXT NOT NULL DEFAULT 'unreviewed',
	rejection_reason TEXT,
	public_list      BOOLEAN NOT NULL DEFAULT FALSE,
	public_detail    BOOLEAN NOT NULL DEFAULT FALSE,
	owner_list       BOOLEAN NOT NULL DEFAULT TRUE,
	owner_detail     BOOLEAN NOT NULL DEFAULT TRUE,
	moderator_list   BOOLEAN NOT NULL DEFAULT TRUE,
	moderator_detail BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (package_id, community_id)
);

CREATE TABLE IF NOT EXISTS listing_categories (
	listing_id  UUID NOT NULL REFERENCES package_listings (listing_id),
	category_id UUID NOT NULL REFERENCES package_categories (category_id),
	PRIMARY KEY (listing_id, category_id)
);

CREATE TABLE IF NOT EXISTS cache_blobs (
	cache_id      UUID PRIMARY KEY,
	community     TEXT NOT NULL DEFAULT '',
	kind          TEXT NOT NULL,
	blob_digest   CHAR(64) NOT NULL REFERENCES blobs (digest),
	last_modified TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS cache_blobs_key_idx ON cache_blobs (community, kind, last_modified DESC);

CREATE TABLE IF NOT EXISTS submissions (
	submission_id      UUID PRIMARY KEY,
	owner              TEXT NOT NULL,
	upload_id          UUID NOT NULL REFERENCES uploads (upload_id),
	status             TEXT NOT NULL DEFAULT 'pending',
	form_data          JSONB NOT NULL,
	form_errors        JSONB,
	task_error         TEXT,
	retry_count        INT NOT NULL DEFAULT 0,
	created_version_id UUID REFERENCES package_versions (version_id),
	datetime_scheduled TIMESTAMPTZ,
	datetime_polled    TIMESTAMPTZ NOT NULL DEFAULT now(),
	datetime_finished  TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the embedded schema. Safe to run on every startup.
func EnsureSchema(ctx context.Context, db *DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
