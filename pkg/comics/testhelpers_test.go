package comics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/config"
	"github.com/slucky31/mycomicsmanager-api/pkg/libraries"
	"github.com/slucky31/mycomicsmanager-api/pkg/migrations"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type fakeRecognizer struct {
	text  string
	err   error
	calls int
	sizes []int
}

func (f *fakeRecognizer) RecognizeImage(imageData []byte) (string, error) {
	f.calls++
	f.sizes = append(f.sizes, len(imageData))
	return f.text, f.err
}

type testContext struct {
	t              *testing.T
	ctx            context.Context
	cfg            *config.Config
	db             *bun.DB
	resolver       *libraries.Resolver
	libraryService *libraries.Service
	comicService   *Service
	recognizer     *fakeRecognizer
	manager        *Manager
	library        *models.Library
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	cfg := config.NewForTest()
	t.Cleanup(func() {
		os.RemoveAll(filepath.Dir(cfg.LibrariesDirRootPath))
	})

	resolver := libraries.NewResolver(cfg)
	require.NoError(t, resolver.EnsureDirs())

	libraryService := libraries.NewService(db, resolver)
	comicService := NewService(db)
	recognizer := &fakeRecognizer{}

	tc := &testContext{
		t:              t,
		ctx:            logger.New().WithContext(context.Background()),
		cfg:            cfg,
		db:             db,
		resolver:       resolver,
		libraryService: libraryService,
		comicService:   comicService,
		recognizer:     recognizer,
		manager:        NewManager(cfg, comicService, libraryService, resolver, recognizer),
	}

	tc.library = &models.Library{Name: "BD", RelPath: "bd"}
	require.NoError(t, libraryService.CreateLibrary(tc.ctx, tc.library))
	return tc
}

// upload places a file in the upload directory.
func (tc *testContext) upload(path string) string {
	tc.t.Helper()
	dst := filepath.Join(tc.resolver.UploadDir(), filepath.Base(path))
	require.NoError(tc.t, os.Rename(path, dst))
	return dst
}

func (tc *testContext) libraryFile(rel string) string {
	return filepath.Join(tc.resolver.LibraryPath(tc.library), rel)
}
