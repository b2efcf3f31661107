package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE libraries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				name TEXT NOT NULL,
				rel_path TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_libraries_rel_path ON libraries (rel_path)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE comics (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				library_id INTEGER REFERENCES libraries (id) ON DELETE CASCADE NOT NULL,
				ebook_path TEXT NOT NULL,
				ebook_name TEXT NOT NULL,
				cover_path TEXT,
				cover_type TEXT NOT NULL DEFAULT 'portrait',
				page_count INTEGER NOT NULL DEFAULT 0,
				webp_formatted BOOLEAN NOT NULL DEFAULT FALSE,
				title TEXT NOT NULL DEFAULT '',
				series TEXT NOT NULL DEFAULT '',
				volume INTEGER NOT NULL DEFAULT 0,
				writer TEXT NOT NULL DEFAULT '',
				penciller TEXT NOT NULL DEFAULT '',
				colorist TEXT NOT NULL DEFAULT '',
				editor TEXT NOT NULL DEFAULT '',
				language_iso TEXT NOT NULL DEFAULT '',
				isbn TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL DEFAULT '',
				price REAL NOT NULL DEFAULT 0,
				published TIMESTAMPTZ,
				category TEXT NOT NULL DEFAULT '',
				review REAL NOT NULL DEFAULT 0
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_comics_library_id ON comics (library_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_comics_webp_formatted ON comics (webp_formatted)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS comics`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DROP TABLE IF EXISTS libraries`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
