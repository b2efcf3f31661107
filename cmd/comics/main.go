package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/segmentio/encoding/json"
	"github.com/slucky31/mycomicsmanager-api/pkg/archive"
	"github.com/slucky31/mycomicsmanager-api/pkg/cbz"
	"github.com/slucky31/mycomicsmanager-api/pkg/cbzpages"
	"github.com/slucky31/mycomicsmanager-api/pkg/comics"
	"github.com/slucky31/mycomicsmanager-api/pkg/config"
	"github.com/slucky31/mycomicsmanager-api/pkg/convert"
	"github.com/slucky31/mycomicsmanager-api/pkg/database"
	"github.com/slucky31/mycomicsmanager-api/pkg/fileutils"
	"github.com/slucky31/mycomicsmanager-api/pkg/libraries"
	"github.com/slucky31/mycomicsmanager-api/pkg/migrations"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
	"github.com/slucky31/mycomicsmanager-api/pkg/ocr"
	"github.com/slucky31/mycomicsmanager-api/pkg/version"
	"github.com/slucky31/mycomicsmanager-api/pkg/worker"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

type app struct {
	cfg            *config.Config
	db             *bun.DB
	ocr            *ocr.Client
	resolver       *libraries.Resolver
	libraryService *libraries.Service
	comicService   *comics.Service
	manager        *comics.Manager
}

func setup(ctx context.Context, log logger.Logger) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		return nil, err
	}
	if group.ID != 0 {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	resolver := libraries.NewResolver(cfg)
	if err := resolver.EnsureDirs(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:            cfg,
		db:             db,
		resolver:       resolver,
		libraryService: libraries.NewService(db, resolver),
		comicService:   comics.NewService(db),
	}

	var recognizer comics.Recognizer
	a.ocr, err = ocr.New(cfg.OCRLanguage)
	if err != nil {
		log.Warn("ocr unavailable", logger.Data{"error": err.Error()})
	} else {
		recognizer = a.ocr
	}
	a.manager = comics.NewManager(cfg, a.comicService, a.libraryService, resolver, recognizer)

	return a, nil
}

func (a *app) close() {
	if a.ocr != nil {
		a.ocr.Close()
	}
	a.db.Close()
}

func (a *app) comic(c *cli.Context) (*models.Comic, error) {
	id := c.Int("comic")
	return a.comicService.RetrieveComic(c.Context, comics.RetrieveComicOptions{ID: &id})
}

func (a *app) libraryByPath(c *cli.Context) (*models.Library, error) {
	rel := c.String("library")
	return a.libraryService.RetrieveLibrary(c.Context, libraries.RetrieveLibraryOptions{RelPath: &rel})
}

// metadataUpdate collects the metadata flags given on the command line.
func metadataUpdate(c *cli.Context) *comics.MetadataUpdate {
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	num := func(name string) *float64 {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Float64(name)
		return &v
	}

	u := &comics.MetadataUpdate{
		Title:       str("title"),
		Series:      str("series"),
		Writer:      str("writer"),
		Penciller:   str("penciller"),
		Colorist:    str("colorist"),
		Editor:      str("editor"),
		LanguageISO: str("language"),
		ISBN:        str("isbn"),
		URL:         str("url"),
		Price:       num("price"),
		Category:    str("category"),
		Review:      num("review"),
		CoverType:   str("cover-type"),
	}
	if c.IsSet("volume") {
		v := c.Int("volume")
		u.Volume = &v
	}
	if c.IsSet("published") {
		u.Published = c.Timestamp("published")
	}
	return u
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Println(string(b))
	return nil
}

func main() {
	log := logger.New()
	var a *app

	comicFlag := &cli.IntFlag{Name: "comic", Aliases: []string{"c"}, Usage: "comic ID", Required: true}
	libraryFlag := &cli.StringFlag{Name: "library", Aliases: []string{"l"}, Usage: "library path relative to the libraries root", Required: true}

	// withApp opens the configuration and database before running action.
	withApp := func(action cli.ActionFunc) cli.ActionFunc {
		return func(c *cli.Context) error {
			var err error
			a, err = setup(c.Context, log)
			if err != nil {
				return err
			}
			defer a.close()
			c.Context = log.WithContext(c.Context)
			return action(c)
		}
	}

	cliApp := &cli.App{
		Name:    "comics",
		Usage:   "manage comic libraries",
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:  "library",
				Usage: "manage libraries",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create a library",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringFlag{Name: "path", Usage: "directory relative to the libraries root", Required: true},
						},
						Action: withApp(func(c *cli.Context) error {
							library := &models.Library{Name: c.String("name"), RelPath: c.String("path")}
							if err := a.libraryService.CreateLibrary(c.Context, library); err != nil {
								return err
							}
							return printJSON(library)
						}),
					},
					{
						Name:  "delete",
						Usage: "delete a library with all its comics and their covers",
						Flags: []cli.Flag{libraryFlag},
						Action: withApp(func(c *cli.Context) error {
							library, err := a.libraryByPath(c)
							if err != nil {
								return err
							}
							return a.manager.DeleteLibrary(c.Context, library)
						}),
					},
					{
						Name:  "list",
						Usage: "list libraries",
						Action: withApp(func(c *cli.Context) error {
							list, err := a.libraryService.ListLibraries(c.Context, libraries.ListLibrariesOptions{})
							if err != nil {
								return err
							}
							return printJSON(list)
						}),
					},
				},
			},
			{
				Name:      "import",
				Usage:     "import comic files into a library",
				ArgsUsage: "<file>...",
				Flags:     []cli.Flag{libraryFlag},
				Action: withApp(func(c *cli.Context) error {
					library, err := a.libraryByPath(c)
					if err != nil {
						return err
					}
					for _, path := range c.Args().Slice() {
						abs, err := filepath.Abs(path)
						if err != nil {
							return errors.WithStack(err)
						}
						comic, err := a.manager.Import(c.Context, library, abs)
						if err != nil {
							return err
						}
						fmt.Printf("%d\t%s\n", comic.ID, comic.EbookPath)
					}
					return nil
				}),
			},
			{
				Name:      "normalize",
				Usage:     "convert a CBR, CBZ or PDF file into a canonical CBZ next to it",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "errors-dir", Usage: "quarantine directory, defaults to an errors directory next to the file"},
				},
				Action: func(c *cli.Context) error {
					src := c.Args().First()
					if src == "" {
						return errors.New("missing file argument")
					}
					errorsDir := c.String("errors-dir")
					if errorsDir == "" {
						errorsDir = filepath.Join(filepath.Dir(src), "errors")
					}

					ctx := log.WithContext(c.Context)
					dst, err := convert.NewNormalizer(fileutils.NewQuarantine(errorsDir), "").Normalize(ctx, src)
					if err != nil {
						return err
					}
					pages, err := archive.CountPages(dst)
					if err != nil {
						return err
					}
					fmt.Printf("%s\t%d pages\n", dst, pages)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "print a comic record",
				Flags: []cli.Flag{comicFlag},
				Action: withApp(func(c *cli.Context) error {
					comic, err := a.comic(c)
					if err != nil {
						return err
					}
					return printJSON(comic)
				}),
			},
			{
				Name:  "page",
				Usage: "extract one page, or the first or last pages into the ISBN covers directory",
				Flags: []cli.Flag{
					comicFlag,
					&cli.IntFlag{Name: "index", Aliases: []string{"i"}},
					&cli.IntFlag{Name: "first", Usage: "extract the first N pages"},
					&cli.IntFlag{Name: "last", Usage: "extract the last N pages"},
					&cli.StringFlag{Name: "dest", Usage: "destination directory for --index, defaults to the covers directory"},
				},
				Action: withApp(func(c *cli.Context) error {
					comic, err := a.comic(c)
					if err != nil {
						return err
					}

					var names []string
					switch {
					case c.IsSet("first"):
						names, err = a.manager.ExtractFirstImages(c.Context, comic, c.Int("first"))
					case c.IsSet("last"):
						names, err = a.manager.ExtractLastImages(c.Context, comic, c.Int("last"))
					case c.IsSet("index"):
						dest := c.String("dest")
						if dest == "" {
							dest = a.resolver.CoversDir()
						}
						extractor := cbzpages.NewExtractor(a.cfg.ReencodeQuality)
						path, err := extractor.ExtractPage(c.Context, a.resolver.ComicPath(comic.Library, comic), comic.ID, c.Int("index"), dest)
						if err != nil {
							return err
						}
						fmt.Println(path)
						return nil
					default:
						return errors.New("one of --index, --first or --last is required")
					}
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Println(filepath.Join(a.resolver.IsbnCoversDir(), name))
					}
					return nil
				}),
			},
			{
				Name:  "update",
				Usage: "edit the metadata of a comic, rename its file and rewrite its sidecar",
				Flags: []cli.Flag{
					comicFlag,
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "series"},
					&cli.IntFlag{Name: "volume"},
					&cli.StringFlag{Name: "writer"},
					&cli.StringFlag{Name: "penciller"},
					&cli.StringFlag{Name: "colorist"},
					&cli.StringFlag{Name: "editor"},
					&cli.StringFlag{Name: "language", Usage: "ISO language code"},
					&cli.StringFlag{Name: "isbn"},
					&cli.StringFlag{Name: "url"},
					&cli.Float64Flag{Name: "price"},
					&cli.TimestampFlag{Name: "published", Layout: "2006-01-02"},
					&cli.StringFlag{Name: "category"},
					&cli.Float64Flag{Name: "review"},
					&cli.StringFlag{Name: "cover-type", Usage: "portrait, landscape_left or landscape_right"},
				},
				Action: withApp(func(c *cli.Context) error {
					comic, err := a.comic(c)
					if err != nil {
						return err
					}
					if err := a.manager.Edit(c.Context, comic, metadataUpdate(c)); err != nil {
						return err
					}
					return printJSON(comic)
				}),
			},
			{
				Name:  "cover",
				Usage: "extract the cover of a comic",
				Flags: []cli.Flag{
					comicFlag,
					&cli.StringFlag{Name: "type", Usage: "portrait, landscape_left or landscape_right"},
				},
				Action: withApp(func(c *cli.Context) error {
					comic, err := a.comic(c)
					if err != nil {
						return err
					}
					if t := c.String("type"); t != "" {
						if err := comics.ValidateCoverType(t); err != nil {
							return err
						}
						comic.CoverType = t
					}
					if err := a.manager.SetCover(c.Context, comic); err != nil {
						return err
					}
					fmt.Println(filepath.Join(a.resolver.CoversDir(), *comic.CoverPath))
					return nil
				}),
			},
			{
				Name:  "isbn",
				Usage: "look for an ISBN on the first and last pages",
				Flags: []cli.Flag{
					comicFlag,
					&cli.IntFlag{Name: "pages", Usage: "pages read at each end, defaults to isbn_page_count"},
				},
				Action: withApp(func(c *cli.Context) error {
					comic, err := a.comic(c)
					if err != nil {
						return err
					}
					n := c.Int("pages")
					if n <= 0 {
						n = a.cfg.IsbnPageCount
					}
					found, err := a.manager.SearchISBN(c.Context, comic, n)
					if err != nil {
						return err
					}
					for _, v := range found {
						fmt.Println(v)
					}
					return nil
				}),
			},
			{
				Name:  "title",
				Usage: "read the text of the cover",
				Flags: []cli.Flag{comicFlag},
				Action: withApp(func(c *cli.Context) error {
					comic, err := a.comic(c)
					if err != nil {
						return err
					}
					title, err := a.manager.ExtractTitle(c.Context, comic)
					if err != nil {
						return err
					}
					fmt.Println(title)
					return nil
				}),
			},
			{
				Name:  "sidecar",
				Usage: "read or write the ComicInfo.xml of a comic",
				Subcommands: []*cli.Command{
					{
						Name:  "read",
						Flags: []cli.Flag{comicFlag},
						Action: withApp(func(c *cli.Context) error {
							comic, err := a.comic(c)
							if err != nil {
								return err
							}
							ci, err := cbz.ReadComicInfo(a.resolver.ComicPath(comic.Library, comic))
							if err != nil {
								return err
							}
							if ci == nil {
								fmt.Println("no sidecar")
								return nil
							}
							b, err := ci.Marshal()
							if err != nil {
								return err
							}
							fmt.Println(string(b))
							return nil
						}),
					},
					{
						Name:  "write",
						Usage: "rewrite the sidecar from the stored record",
						Flags: []cli.Flag{comicFlag},
						Action: withApp(func(c *cli.Context) error {
							comic, err := a.comic(c)
							if err != nil {
								return err
							}
							return cbz.WriteComicInfo(a.resolver.ComicPath(comic.Library, comic), cbz.FromComic(comic))
						}),
					},
				},
			},
			{
				Name:  "reencode",
				Usage: "convert the pages of every comic that is not WebP yet",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "library", Aliases: []string{"l"}, Usage: "only this library"},
				},
				Action: withApp(func(c *cli.Context) error {
					var libraryID *int
					if c.String("library") != "" {
						library, err := a.libraryByPath(c)
						if err != nil {
							return err
						}
						libraryID = &library.ID
					}

					ctx, cancel := context.WithCancel(c.Context)
					defer cancel()
					graceful := signals.Setup()
					go func() {
						select {
						case <-graceful:
							log.Info("stopping after the comics in progress")
							cancel()
						case <-ctx.Done():
						}
					}()

					result, err := worker.New(a.cfg, a.comicService, a.manager).ReencodeAll(ctx, libraryID)
					if err != nil {
						return err
					}
					return printJSON(result)
				}),
			},
			{
				Name:  "delete",
				Usage: "delete a comic, its file and its cover",
				Flags: []cli.Flag{comicFlag},
				Action: withApp(func(c *cli.Context) error {
					comic, err := a.comic(c)
					if err != nil {
						return err
					}
					return a.manager.Delete(c.Context, comic)
				}),
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}
