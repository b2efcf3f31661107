package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/slucky31/mycomicsmanager-api/pkg/comics"
	"github.com/slucky31/mycomicsmanager-api/pkg/config"
	"github.com/slucky31/mycomicsmanager-api/pkg/models"
)

// Reencoder converts one comic to WebP.
type Reencoder interface {
	Reencode(ctx context.Context, comic *models.Comic) error
}

// Result summarizes a batch run.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
	Cancelled int
}

// Worker re-encodes every comic that is not WebP formatted yet, running
// WorkerProcesses comics at a time. A comic is only ever handled by one
// goroutine.
type Worker struct {
	config *config.Config
	log    logger.Logger

	comicService *comics.Service
	reencoder    Reencoder
}

func New(cfg *config.Config, comicService *comics.Service, reencoder Reencoder) *Worker {
	return &Worker{
		config:       cfg,
		log:          logger.New(),
		comicService: comicService,
		reencoder:    reencoder,
	}
}

// ReencodeAll processes the pending comics of one library, or of every library
// when libraryID is nil. Per-comic failures are logged and counted; only a
// failure to list the comics is returned.
func (w *Worker) ReencodeAll(ctx context.Context, libraryID *int) (*Result, error) {
	formatted := false
	pending, err := w.comicService.ListComics(ctx, comics.ListComicsOptions{
		LibraryID:     libraryID,
		WebPFormatted: &formatted,
	})
	if err != nil {
		return nil, err
	}

	runID, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	log := w.log.ID(runID.String())
	log.Info("batch re-encode started", logger.Data{"comics": len(pending), "workers": w.config.WorkerProcesses})

	result := &Result{Total: len(pending)}
	var mu sync.Mutex
	record := func(fn func(r *Result)) {
		mu.Lock()
		defer mu.Unlock()
		fn(result)
	}

	queue := make(chan *models.Comic)
	var wg sync.WaitGroup
	for i := 0; i < w.config.WorkerProcesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for comic := range queue {
				w.process(ctx, log, comic, record)
			}
		}()
	}

feed:
	for i, comic := range pending {
		if ctx.Err() != nil {
			record(func(r *Result) { r.Cancelled += len(pending) - i })
			break
		}
		select {
		case <-ctx.Done():
			record(func(r *Result) { r.Cancelled += len(pending) - i })
			break feed
		case queue <- comic:
		}
	}
	close(queue)
	wg.Wait()

	log.Info("batch re-encode finished", logger.Data{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"cancelled": result.Cancelled,
	})
	return result, nil
}

func (w *Worker) process(ctx context.Context, log logger.Logger, comic *models.Comic, record func(func(r *Result))) {
	comicLog := log.Root(logger.Data{"comic_id": comic.ID, "path": comic.EbookPath})
	comicCtx := comicLog.WithContext(ctx)

	if err := w.reencoder.Reencode(comicCtx, comic); err != nil {
		comicLog.Err(err).Warn("skipping comic")
		record(func(r *Result) { r.Failed++ })
		return
	}
	record(func(r *Result) { r.Succeeded++ })
}
