package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/shenlehan/fashion-recommendation/ai"
	"github.com/shenlehan/fashion-recommendation/observability/metrics"
	"github.com/shenlehan/fashion-recommendation/session"
	"github.com/shenlehan/fashion-recommendation/store"
)

// Outfit is one recommendation result handed back to the caller.
type Outfit struct {
	Description string
	Items       []*store.WardrobeItem
	// Degraded marks results produced without the embedding index or
	// without the generation provider.
	Degraded bool
}

// Recommender is the facade over the retrieval core: it retrieves
// category-balanced candidates, drafts and adjusts outfits through the
// generation provider, and keeps the conversation session in step.
type Recommender struct {
	store     *store.Store
	retriever *Retriever
	generator ai.GenerationService
	sessions  *session.Service
	exporter  *metrics.Exporter
}

func NewRecommender(st *store.Store, retriever *Retriever, generator ai.GenerationService, sessions *session.Service, exporter *metrics.Exporter) *Recommender {
	return &Recommender{
		store:     st,
		retriever: retriever,
		generator: generator,
		sessions:  sessions,
		exporter:  exporter,
	}
}

// RetrieveCandidates returns the candidate pool for one situation. When
// retrieval finds no relevant subset, either because the index is empty
// for this owner or because the embedding provider is degraded, it
// widens to the owner's full wardrobe instead of failing. The degraded
// flag reports which path was taken.
func (r *Recommender) RetrieveCandidates(ctx context.Context, opts RetrieveOptions) ([]*store.WardrobeItem, bool, error) {
	start := time.Now()
	result, err := r.retriever.Retrieve(ctx, opts)
	if err != nil {
		r.observeRetrieval("filtered", start, false)
		return nil, false, err
	}

	if result.NoRelevantSubset {
		items, err := r.fullWardrobe(ctx, opts.OwnerID)
		if err != nil {
			r.observeRetrieval("fallback", start, false)
			return nil, false, err
		}
		if r.exporter != nil {
			r.exporter.RecordDegradedFallback()
		}
		r.observeRetrieval("fallback", start, true)
		return items, true, nil
	}

	items, err := r.itemsByIDs(ctx, result.ItemIDs)
	if err != nil {
		r.observeRetrieval("filtered", start, false)
		return nil, false, err
	}
	r.observeRetrieval("filtered", start, true)
	return items, false, nil
}

// Propose drafts an outfit for the situation and records it in the
// session as the working outfit. A generation provider failure degrades
// to a deterministic minimal outfit built from the candidates instead of
// surfacing an error.
func (r *Recommender) Propose(ctx context.Context, ownerID int32, sessionUID string, situation SituationContext) (*Outfit, error) {
	sess, err := r.sessions.Get(ctx, ownerID, sessionUID)
	if err != nil {
		return nil, err
	}

	candidates, degraded, err := r.RetrieveCandidates(ctx, RetrieveOptions{
		OwnerID: ownerID,
		Context: situation,
		Color:   sess.Preferences.Color,
	})
	if err != nil {
		return nil, err
	}

	outfit := r.generateProposal(ctx, situation, sess.Preferences, candidates)
	outfit.Degraded = outfit.Degraded || degraded

	if err := r.record(ctx, ownerID, sessionUID, outfit); err != nil {
		return nil, err
	}
	return outfit, nil
}

// Adjust applies a follow-up request against the session's working
// outfit. The provider's proposal passes through the merge policy so
// the result always covers shoes and the lower body.
func (r *Recommender) Adjust(ctx context.Context, ownerID int32, sessionUID string, requestText string, situation SituationContext) (*Outfit, error) {
	sess, err := r.sessions.Get(ctx, ownerID, sessionUID)
	if err != nil {
		return nil, err
	}

	candidates, degraded, err := r.RetrieveCandidates(ctx, RetrieveOptions{
		OwnerID: ownerID,
		Context: situation,
	})
	if err != nil {
		return nil, err
	}

	previous, err := r.itemsByIDs(ctx, sess.CurrentOutfit)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	proposal, genErr := r.generator.AdjustOutfit(ctx, &ai.AdjustmentRequest{
		RequestText:   requestText,
		Context:       situation.QueryDescription(),
		History:       sess.Turns,
		CurrentOutfit: sess.CurrentOutfit,
		Candidates:    candidates,
	})
	if r.exporter != nil {
		r.exporter.RecordGeneration("adjust", time.Since(start))
	}

	var outfit *Outfit
	if genErr != nil {
		slog.Warn("generation provider failed, degrading adjustment", "error", genErr)
		outfit = minimalOutfit(candidates)
		outfit.Items = MergeOutfit(previous, outfit.Items)
	} else {
		proposed, err := r.itemsByIDs(ctx, proposal.ItemIDs)
		if err != nil {
			return nil, err
		}
		outfit = &Outfit{
			Description: proposal.Description,
			Items:       MergeOutfit(previous, proposed),
		}
	}
	outfit.Degraded = outfit.Degraded || degraded

	if _, err := r.sessions.AddTurn(ctx, ownerID, sessionUID, store.Turn{
		Role:    store.TurnRoleUser,
		Content: requestText,
	}); err != nil {
		return nil, err
	}
	if err := r.record(ctx, ownerID, sessionUID, outfit); err != nil {
		return nil, err
	}
	return outfit, nil
}

// RecordSelection stores the outfit the user accepted: it becomes the
// session's working outfit and is appended to the history as an
// assistant turn carrying the selected item IDs.
func (r *Recommender) RecordSelection(ctx context.Context, ownerID int32, sessionUID string, itemIDs []int64, description string) error {
	items, err := r.itemsByIDs(ctx, itemIDs)
	if err != nil {
		return err
	}
	if len(items) != len(itemIDs) {
		return errors.Errorf("selection references %d unknown items", len(itemIDs)-len(items))
	}
	if description == "" {
		description = fmt.Sprintf("Selected an outfit of %d items.", len(items))
	}
	return r.record(ctx, ownerID, sessionUID, &Outfit{
		Description: description,
		Items:       items,
	})
}

func (r *Recommender) generateProposal(ctx context.Context, situation SituationContext, prefs store.Preferences, candidates []*store.WardrobeItem) *Outfit {
	start := time.Now()
	proposal, err := r.generator.ProposeOutfit(ctx, &ai.ProposalRequest{
		Context:     situation.QueryDescription(),
		Preferences: prefs,
		Candidates:  candidates,
	})
	if r.exporter != nil {
		r.exporter.RecordGeneration("propose", time.Since(start))
	}
	if err != nil {
		slog.Warn("generation provider failed, degrading proposal", "error", err)
		return minimalOutfit(candidates)
	}

	byID := make(map[int64]*store.WardrobeItem, len(candidates))
	for _, item := range candidates {
		byID[item.ID] = item
	}
	items := make([]*store.WardrobeItem, 0, len(proposal.ItemIDs))
	for _, id := range proposal.ItemIDs {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return minimalOutfit(candidates)
	}
	return &Outfit{Description: proposal.Description, Items: items}
}

// minimalOutfit is the deterministic degraded result used when the
// generation provider is unavailable: the first candidate of each
// composable category, in fixed category order, with a full-body pick
// standing in for the bottom.
func minimalOutfit(candidates []*store.WardrobeItem) *Outfit {
	var items []*store.WardrobeItem
	for _, category := range store.OutfitCategories {
		if category == store.CategoryFullBody && hasCategory(items, store.CategoryBottom) {
			continue
		}
		if item := firstOfCategory(candidates, category); item != nil {
			items = append(items, item)
		}
	}
	return &Outfit{
		Description: fmt.Sprintf("A simple outfit from %d wardrobe items.", len(items)),
		Items:       items,
		Degraded:    true,
	}
}

func (r *Recommender) record(ctx context.Context, ownerID int32, sessionUID string, outfit *Outfit) error {
	ids := make([]int64, 0, len(outfit.Items))
	for _, item := range outfit.Items {
		ids = append(ids, item.ID)
	}
	if _, err := r.sessions.AddTurn(ctx, ownerID, sessionUID, store.Turn{
		Role:    store.TurnRoleAssistant,
		Content: outfit.Description,
		ItemIDs: ids,
	}); err != nil {
		return err
	}
	_, err := r.sessions.SetCurrentOutfit(ctx, ownerID, sessionUID, ids)
	return err
}

func (r *Recommender) fullWardrobe(ctx context.Context, ownerID int32) ([]*store.WardrobeItem, error) {
	return r.store.ListWardrobeItems(ctx, &store.FindWardrobeItem{OwnerID: &ownerID})
}

// itemsByIDs resolves IDs to items, preserving input order and skipping
// IDs that no longer exist.
func (r *Recommender) itemsByIDs(ctx context.Context, ids []int64) ([]*store.WardrobeItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := r.store.ListWardrobeItems(ctx, &store.FindWardrobeItem{IDs: ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*store.WardrobeItem, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}
	items := make([]*store.WardrobeItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r *Recommender) observeRetrieval(mode string, start time.Time, success bool) {
	if r.exporter == nil {
		return
	}
	r.exporter.RecordRetrieval(mode, time.Since(start), success)
}
