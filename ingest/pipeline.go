package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/shenlehan/fashion-recommendation/ai"
	"github.com/shenlehan/fashion-recommendation/recommend"
	"github.com/shenlehan/fashion-recommendation/store"
)

// defaultWorkers bounds concurrent item creation per task.
const defaultWorkers = 4

// ItemInput is one garment to ingest. Attribute fields may be left
// empty when an image reference is given; the vision provider fills
// them in.
type ItemInput struct {
	Name     string
	Color    string
	Material string
	ImageRef string
	Category store.Category
	Seasons  []store.Season
}

// ProgressObserver is notified when the number of running tasks changes.
// Used to feed metrics.
type ProgressObserver func(running int)

// Pipeline runs batch ingestion. Item creation is the progress path;
// embedding generation runs afterwards so a slow or degraded embedding
// provider never stalls progress reporting. Cancellation rolls back the
// items created so far through idempotent deletes.
type Pipeline struct {
	store    *store.Store
	embedder *recommend.Embedder
	index    recommend.Index
	vision   ai.VisionService
	registry *Registry
	workers  int
	observer ProgressObserver
}

func NewPipeline(st *store.Store, embedder *recommend.Embedder, index recommend.Index, vision ai.VisionService, registry *Registry) *Pipeline {
	return &Pipeline{
		store:    st,
		embedder: embedder,
		index:    index,
		vision:   vision,
		registry: registry,
		workers:  defaultWorkers,
	}
}

// SetProgressObserver registers the running-task observer. Must be
// called before the first Start.
func (p *Pipeline) SetProgressObserver(observer ProgressObserver) {
	p.observer = observer
}

// Start launches a batch ingestion and returns its task ID immediately.
// Progress and outcome are reported through the registry.
func (p *Pipeline) Start(ctx context.Context, ownerID int32, inputs []ItemInput) string {
	// The task outlives the request; cancellation comes from the
	// registry, not the caller's context.
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	id := shortuuid.New()
	p.registry.add(id, ownerID, len(inputs), cancel)
	p.notifyRunning()

	go func() {
		defer cancel()
		p.run(taskCtx, id, ownerID, inputs)
		p.notifyRunning()
	}()
	return id
}

func (p *Pipeline) run(ctx context.Context, taskID string, ownerID int32, inputs []ItemInput) {
	var (
		mu      sync.Mutex
		created []*store.WardrobeItem
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)
	for _, input := range inputs {
		input := input
		group.Go(func() error {
			item, err := p.createItem(groupCtx, ownerID, input)
			if err != nil {
				return err
			}
			mu.Lock()
			created = append(created, item)
			mu.Unlock()
			p.registry.update(taskID, func(t *Task) { t.Processed++ })
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		p.rollback(created)
		status := TaskStatusFailed
		if ctx.Err() != nil {
			status = TaskStatusCanceled
		}
		p.registry.update(taskID, func(t *Task) {
			t.Status = status
			t.Error = err.Error()
		})
		slog.Warn("ingestion aborted", "task", taskID, "status", status, "error", err)
		return
	}

	// Embedding runs after all items exist, off the progress path. A
	// failure here leaves the item outside the index; retrieval then
	// widens to the full wardrobe, so it degrades rather than fails
	// the task.
	for _, item := range created {
		if ctx.Err() != nil {
			p.rollback(created)
			p.registry.update(taskID, func(t *Task) {
				t.Status = TaskStatusCanceled
				t.Error = ctx.Err().Error()
			})
			return
		}
		if err := p.embedItem(ctx, item); err != nil {
			slog.Warn("item left unembedded", "task", taskID, "item", item.ID, "error", err)
			continue
		}
		p.registry.update(taskID, func(t *Task) { t.Embedded++ })
	}

	p.registry.update(taskID, func(t *Task) { t.Status = TaskStatusCompleted })
}

func (p *Pipeline) createItem(ctx context.Context, ownerID int32, input ItemInput) (*store.WardrobeItem, error) {
	if input.Category == "" && input.ImageRef != "" && p.vision != nil {
		attrs, err := p.vision.LabelGarment(ctx, input.ImageRef)
		if err != nil {
			return nil, err
		}
		if input.Name == "" {
			input.Name = attrs.Name
		}
		if input.Color == "" {
			input.Color = attrs.Color
		}
		if input.Material == "" {
			input.Material = attrs.Material
		}
		input.Category = attrs.Category
		if len(input.Seasons) == 0 {
			input.Seasons = attrs.Seasons
		}
	}
	return p.store.CreateWardrobeItem(ctx, &store.WardrobeItem{
		Name:     input.Name,
		Color:    input.Color,
		Material: input.Material,
		ImageRef: input.ImageRef,
		Category: input.Category,
		Seasons:  input.Seasons,
		OwnerID:  ownerID,
	})
}

func (p *Pipeline) embedItem(ctx context.Context, item *store.WardrobeItem) error {
	vector, err := p.embedder.ItemVector(ctx, item)
	if err != nil {
		return err
	}
	return p.index.Add(ctx, &store.EmbeddingRecord{
		ItemID:   item.ID,
		OwnerID:  item.OwnerID,
		Color:    item.Color,
		Material: item.Material,
		Category: item.Category,
		Seasons:  item.Seasons,
		Vector:   vector,
	})
}

// rollback undoes the partial batch. Deletes are idempotent, so a retry
// after a mid-rollback crash converges to the same end state.
func (p *Pipeline) rollback(created []*store.WardrobeItem) {
	ctx := context.Background()
	for _, item := range created {
		if err := p.index.Delete(ctx, item.ID); err != nil {
			slog.Error("rollback: delete embedding failed", "item", item.ID, "error", err)
		}
		if err := p.store.DeleteWardrobeItem(ctx, &store.DeleteWardrobeItem{ID: item.ID}); err != nil {
			slog.Error("rollback: delete item failed", "item", item.ID, "error", err)
		}
	}
}

func (p *Pipeline) notifyRunning() {
	if p.observer != nil {
		p.observer(p.registry.Running())
	}
}
