package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/apperrors"
	"github.com/hapdco/catalog-engine/pkg/config"
	"github.com/hapdco/catalog-engine/pkg/llm"
	"github.com/hapdco/catalog-engine/pkg/models"
	"github.com/hapdco/catalog-engine/pkg/normalize"
	"github.com/hapdco/catalog-engine/pkg/repositories"
)

// tierThresholds are the minimum scores a candidate must clear on EITHER
// retrieval path to belong to a tier. Lexical and vector scores live on
// different scales, hence the separate floors.
type tierThresholds struct {
	lex float64
	vec float64
}

var (
	altaThresholds  = tierThresholds{lex: 0.55, vec: 0.87}
	mediaThresholds = tierThresholds{lex: 0.50, vec: 0.83}
	// brandThresholds are deliberately loose: brand enumeration answers "what
	// brands of X exist", where recall matters more than precision.
	brandThresholds = tierThresholds{lex: 0.30, vec: 0.75}
)

const (
	// Trigram similarity is noisy on very short strings, so short queries get
	// a stiffer lexical floor.
	shortQueryMaxRunes = 3
	shortQueryLexRaise = 0.15

	// Candidate lists this small are not worth a judge round-trip.
	judgeSkipMax = 3

	maxExamplesPerSupplier = 3
	maxPricesPerSupplier   = 3
)

// SearchService answers tiered product searches over the synced catalog,
// plus the follow-up lookups a conversation needs: "show more" suppliers,
// supplier contact details, and brand enumeration.
type SearchService interface {
	Search(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error)
	// ShowMore reveals the next page of suppliers hidden by a previous Search
	// with the same session, query and brand. Returns an empty nula result
	// when nothing is pending.
	ShowMore(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error)
	SupplierDetail(ctx context.Context, supplierID int64) (*models.SupplierDetail, error)
	// AvailableBrands lists the distinct brands of products matching query,
	// most relevant first.
	AvailableBrands(ctx context.Context, query string) ([]string, error)
}

type searchService struct {
	products  repositories.ProductRepository
	suppliers repositories.SupplierRepository
	embedder  llm.Embedder
	judge     llm.RelevanceJudge
	cache     SessionCache

	searchCfg config.SearchConfig
	aiCfg     config.AIConfig
	defaultCC string
	logger    *zap.Logger
}

// NewSearchService creates a new SearchService. embedder and judge may be
// nil: search then degrades to lexical-only retrieval with no relevance
// filtering rather than failing.
func NewSearchService(
	products repositories.ProductRepository,
	suppliers repositories.SupplierRepository,
	embedder llm.Embedder,
	judge llm.RelevanceJudge,
	cache SessionCache,
	searchCfg config.SearchConfig,
	aiCfg config.AIConfig,
	defaultCC string,
	logger *zap.Logger,
) SearchService {
	return &searchService{
		products:  products,
		suppliers: suppliers,
		embedder:  embedder,
		judge:     judge,
		cache:     cache,
		searchCfg: searchCfg,
		aiCfg:     aiCfg,
		defaultCC: defaultCC,
		logger:    logger.Named("search"),
	}
}

var _ SearchService = (*searchService)(nil)

// tryTier returns the candidates that clear a tier's thresholds on either
// retrieval path. Pure: no I/O, no state, so tier escalation is just calling
// it again with looser thresholds on the same retrieval set.
func tryTier(candidates []models.ProductCandidate, th tierThresholds, shortQuery bool) []models.ProductCandidate {
	lexMin := th.lex
	if shortQuery {
		lexMin += shortQueryLexRaise
	}
	var kept []models.ProductCandidate
	for _, c := range candidates {
		if c.LexScore >= lexMin || c.VecScore >= th.vec {
			kept = append(kept, c)
		}
	}
	return kept
}

func (s *searchService) Search(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error) {
	if query == "" {
		return &models.SearchResult{Tier: models.TierNula, Suppliers: []models.SupplierResult{}}, nil
	}

	candidates, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	if brand != "" {
		filtered := filterByBrand(candidates, brand)
		if len(filtered) == 0 {
			// The product matched but not under that brand: tell the caller
			// which brands the catalog does carry.
			return &models.SearchResult{
				Tier:            models.TierNula,
				Suppliers:       []models.SupplierResult{},
				AvailableBrands: enumerateBrands(candidates, isShortQuery(query)),
			}, nil
		}
		candidates = filtered
	}

	shortQuery := isShortQuery(query)
	tiers := []struct {
		tier models.Tier
		th   tierThresholds
	}{
		{models.TierAlta, altaThresholds},
		{models.TierMedia, mediaThresholds},
	}
	for _, tc := range tiers {
		members := tryTier(candidates, tc.th, shortQuery)
		if len(members) == 0 {
			continue
		}
		members = s.judgeCandidates(ctx, query, members)
		if len(members) == 0 {
			// The judge ruled out everything this tier let through. The next
			// tier admits a strictly larger set and gets its own judge pass;
			// only a wipeout at the loosest tier means the catalog has
			// nothing.
			continue
		}

		suppliers := s.aggregate(members)

		shown := suppliers
		var hidden []models.SupplierResult
		if len(suppliers) > s.searchCfg.ShownSupplier {
			shown = suppliers[:s.searchCfg.ShownSupplier]
			hidden = suppliers[s.searchCfg.ShownSupplier:]
		}
		if err := s.cache.Stash(ctx, sessionID, query, brand, &pendingResults{Tier: tc.tier, Suppliers: hidden}); err != nil {
			s.logger.Warn("failed to stash hidden suppliers", zap.Error(err))
		}

		return &models.SearchResult{
			Tier:        tc.tier,
			Suppliers:   shown,
			HiddenCount: len(hidden),
		}, nil
	}

	return &models.SearchResult{Tier: models.TierNula, Suppliers: []models.SupplierResult{}}, nil
}

func (s *searchService) ShowMore(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error) {
	pending, err := s.cache.Pop(ctx, sessionID, query, brand)
	if err != nil {
		s.logger.Warn("failed to pop pending suppliers", zap.Error(err))
	}
	if pending == nil || len(pending.Suppliers) == 0 {
		return &models.SearchResult{Tier: models.TierNula, Suppliers: []models.SupplierResult{}}, nil
	}

	shown := pending.Suppliers
	var hidden []models.SupplierResult
	if len(shown) > s.searchCfg.ShownSupplier {
		hidden = shown[s.searchCfg.ShownSupplier:]
		shown = shown[:s.searchCfg.ShownSupplier]
	}
	if err := s.cache.Stash(ctx, sessionID, query, brand, &pendingResults{Tier: pending.Tier, Suppliers: hidden}); err != nil {
		s.logger.Warn("failed to restash hidden suppliers", zap.Error(err))
	}

	return &models.SearchResult{
		Tier:        pending.Tier,
		Suppliers:   shown,
		HiddenCount: len(hidden),
	}, nil
}

func (s *searchService) SupplierDetail(ctx context.Context, supplierID int64) (*models.SupplierDetail, error) {
	supplier, err := s.suppliers.GetByID(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	numbers, links := normalize.SplitPhoneNumbers(supplier.PhoneField, s.defaultCC)
	return &models.SupplierDetail{
		SupplierID:   supplier.ID,
		Name:         supplier.Name,
		SalesContact: supplier.SalesContact,
		PhoneNumbers: numbers,
		PhoneLinks:   links,
		Website:      supplier.Website,
	}, nil
}

func (s *searchService) AvailableBrands(ctx context.Context, query string) ([]string, error) {
	if query == "" {
		return nil, nil
	}
	candidates, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	return enumerateBrands(candidates, isShortQuery(query)), nil
}

// retrieve runs hybrid retrieval once: embed the query under a deadline,
// then one round trip to the store. An embedding failure degrades to
// lexical-only; a store failure is the one error search cannot absorb.
func (s *searchService) retrieve(ctx context.Context, query string) ([]models.ProductCandidate, error) {
	var embedding []float32
	if s.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, s.aiCfg.EmbedTimeout)
		vec, err := s.embedder.Embed(embedCtx, query)
		cancel()
		if err != nil {
			s.logger.Warn("query embedding failed, lexical-only retrieval",
				zap.String("query", query), zap.Error(err))
		} else {
			embedding = vec
		}
	}

	candidates, err := s.products.SearchHybrid(ctx, query, embedding, s.searchCfg.CandidateCap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSearchUnavailable, err)
	}
	// Scores outside [0,1] would distort thresholding and fusion downstream.
	for i := range candidates {
		candidates[i].LexScore = clamp01(candidates[i].LexScore)
		candidates[i].VecScore = clamp01(candidates[i].VecScore)
	}
	return candidates, nil
}

// judgeCandidates narrows members through the relevance judge. Every failure
// path keeps the unjudged list: a broken judge must never turn a working
// search into an empty one. An empty slice comes back only when the judge
// explicitly ruled everything out.
func (s *searchService) judgeCandidates(ctx context.Context, query string, members []models.ProductCandidate) []models.ProductCandidate {
	if s.judge == nil || len(members) <= judgeSkipMax {
		return members
	}

	judgeCtx, cancel := context.WithTimeout(ctx, s.aiCfg.JudgeTimeout)
	defer cancel()
	verdict, err := s.judge.Judge(judgeCtx, query, members)
	if err != nil {
		s.logger.Warn("relevance judge failed, keeping unjudged candidates",
			zap.String("query", query), zap.Error(err))
		return members
	}
	if verdict.None {
		return nil
	}
	if len(verdict.SelectedIndices) == 0 {
		return members
	}
	kept := make([]models.ProductCandidate, 0, len(verdict.SelectedIndices))
	for _, idx := range verdict.SelectedIndices {
		kept = append(kept, members[idx])
	}
	return kept
}

// supplierAgg carries the sort keys that do not belong in the serialized
// result row.
type supplierAgg struct {
	result         models.SupplierResult
	rating         *float64
	membershipTier *float64
	matchCount     int
	exampleSeen    map[string]struct{}
}

// aggregate folds product candidates into one row per supplier and orders
// suppliers by membership tier, then rating, then best fused score, then
// match count.
func (s *searchService) aggregate(members []models.ProductCandidate) []models.SupplierResult {
	lexW, vecW := s.searchCfg.LexWeight, s.searchCfg.VecWeight

	byID := make(map[int64]*supplierAgg)
	var order []int64
	for _, c := range members {
		fused := lexW*c.LexScore + vecW*c.VecScore

		agg, ok := byID[c.SupplierID]
		if !ok {
			agg = &supplierAgg{
				result: models.SupplierResult{
					SupplierID: c.SupplierID,
					Name:       c.SupplierName,
				},
				rating:         c.SupplierRating,
				membershipTier: c.SupplierMembershipTier,
				exampleSeen:    make(map[string]struct{}, maxExamplesPerSupplier),
			}
			byID[c.SupplierID] = agg
			order = append(order, c.SupplierID)
		}

		// Contact fields come from the supplier join and should agree across
		// a supplier's candidates; first non-empty wins, phones are unioned.
		if agg.result.SalesContact == "" {
			agg.result.SalesContact = c.SupplierContact
		}
		if agg.result.Website == "" {
			agg.result.Website = c.SupplierWebsite
		}
		numbers, links := normalize.SplitPhoneNumbers(c.SupplierPhoneField, s.defaultCC)
		agg.result.PhoneNumbers, agg.result.PhoneLinks = normalize.MergePhoneNumbers(
			agg.result.PhoneNumbers, agg.result.PhoneLinks, numbers, links)

		agg.matchCount++
		agg.result.MatchCount = agg.matchCount
		if fused > agg.result.BestScore {
			agg.result.BestScore = fused
		}
		// Examples are distinct product names; the same product listed twice
		// (different presentations, say) must not repeat.
		if len(agg.result.Examples) < maxExamplesPerSupplier && c.Name != "" {
			key := normalize.Fold(c.Name)
			if _, dup := agg.exampleSeen[key]; !dup {
				agg.exampleSeen[key] = struct{}{}
				agg.result.Examples = append(agg.result.Examples, c.Name)
			}
		}
		if len(agg.result.PriceContext) < maxPricesPerSupplier && c.UnitPrice > 0 {
			agg.result.PriceContext = append(agg.result.PriceContext, models.PriceContext{
				Product:      c.Name,
				Brand:        c.Brand,
				Price:        c.UnitPrice,
				Presentation: c.Presentation,
				Unit:         c.Unit,
				Currency:     c.Currency,
			})
		}
	}

	aggs := make([]*supplierAgg, 0, len(order))
	for _, id := range order {
		aggs = append(aggs, byID[id])
	}
	sort.SliceStable(aggs, func(i, j int) bool {
		mi, mj := tierKey(aggs[i].membershipTier), tierKey(aggs[j].membershipTier)
		if mi != mj {
			return mi < mj
		}
		ri, rj := ratingKey(aggs[i].rating), ratingKey(aggs[j].rating)
		if ri != rj {
			return ri > rj
		}
		if aggs[i].result.BestScore != aggs[j].result.BestScore {
			return aggs[i].result.BestScore > aggs[j].result.BestScore
		}
		return aggs[i].result.MatchCount > aggs[j].result.MatchCount
	})

	results := make([]models.SupplierResult, len(aggs))
	for i, agg := range aggs {
		results[i] = agg.result
	}
	return results
}

// tierKey: lower membership tiers rank first, absent tier ranks last.
func tierKey(tier *float64) float64 {
	if tier == nil {
		return math.Inf(1)
	}
	return *tier
}

// ratingKey: absent rating sorts as zero.
func ratingKey(rating *float64) float64 {
	if rating == nil {
		return 0
	}
	return *rating
}

func isShortQuery(query string) bool {
	return utf8.RuneCountInString(query) <= shortQueryMaxRunes
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// filterByBrand keeps candidates whose brand matches exactly under
// case and accent folding. "luz" must not match "anclaluz"; substring
// matching is the retrieval layer's job, not the filter's.
func filterByBrand(candidates []models.ProductCandidate, brand string) []models.ProductCandidate {
	want := normalize.Fold(brand)
	var kept []models.ProductCandidate
	for _, c := range candidates {
		if normalize.Fold(c.Brand) == want {
			kept = append(kept, c)
		}
	}
	return kept
}

// enumerateBrands collects the distinct brands among candidates clearing the
// loose brand thresholds, in retrieval-relevance order.
func enumerateBrands(candidates []models.ProductCandidate, shortQuery bool) []string {
	seen := make(map[string]struct{})
	var brands []string
	for _, c := range tryTier(candidates, brandThresholds, shortQuery) {
		if c.Brand == "" {
			continue
		}
		key := normalize.Fold(c.Brand)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		brands = append(brands, c.Brand)
	}
	return brands
}
