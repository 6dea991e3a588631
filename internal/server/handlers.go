package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"lista-precios/internal/catalog"
	"lista-precios/internal/export"
	"lista-precios/internal/pricing"
	"lista-precios/internal/storage"
)

// productView is a catalog entry with its computed sale price, the shape
// the storefront table renders.
type productView struct {
	catalog.Product
	pricing.Quote
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load products")
		return
	}
	cfg, err := s.currentConfig(ctx)
	if err != nil {
		s.logger.Error("failed to load pricing config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load configuration")
		return
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, productView{Product: p, Quote: pricing.EffectivePrice(p, cfg)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.currentConfig(r.Context())
	if err != nil {
		s.logger.Error("failed to load pricing config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load configuration")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateConfig merges the supplied fields into the stored settings;
// omitted fields keep their value. A supplied rule list replaces the stored
// one wholesale and must uphold the no-duplicate invariant.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		ProfitMargin *float64              `json:"profitMargin"`
		ProfitRules  *[]pricing.ProfitRule `json:"profitRules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON, err.Error())
		return
	}

	settings, err := s.store.GetPricingSettings(ctx)
	if err != nil {
		s.logger.Error("failed to load pricing settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load configuration")
		return
	}

	if req.ProfitMargin != nil {
		if *req.ProfitMargin < -100 {
			writeError(w, http.StatusBadRequest, errValidation, "profitMargin below -100 would price products negative")
			return
		}
		settings.ProfitMargin = *req.ProfitMargin
	}
	if req.ProfitRules != nil {
		if err := pricing.ValidateRuleList(*req.ProfitRules); err != nil {
			var dup *pricing.DuplicateRuleError
			if errors.As(err, &dup) {
				writeRuleConflict(w, errDuplicateRule, err.Error(), dup.Existing)
				return
			}
			writeError(w, http.StatusBadRequest, errValidation, err.Error())
			return
		}
		settings.ProfitRules = *req.ProfitRules
	}

	if err := s.store.SavePricingSettings(ctx, settings); err != nil {
		s.logger.Error("failed to save pricing settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not save configuration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profitMargin": settings.ProfitMargin,
		"profitRules":  settings.ProfitRules,
	})
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name     string  `json:"name"`
		PriceUsd float64 `json:"priceUsd"`
		Category string  `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errValidation, "name is required")
		return
	}
	if req.PriceUsd < 0 {
		writeError(w, http.StatusBadRequest, errValidation, "priceUsd must be >= 0")
		return
	}
	if req.Category == "" {
		req.Category = catalog.DefaultCategory
	}

	maxID, err := s.store.MaxProductID(ctx)
	if err != nil {
		s.logger.Error("failed to get max product id", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not add product")
		return
	}

	p := catalog.Product{ID: maxID + 1, Name: req.Name, PriceUsd: req.PriceUsd, Category: req.Category}
	if err := s.store.AppendProducts(ctx, []catalog.Product{p}); err != nil {
		s.logger.Error("failed to append product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not add product")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errValidation, "invalid product id")
		return
	}

	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, errNotFound, fmt.Sprintf("product %d not found", id))
			return
		}
		s.logger.Error("failed to delete product", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not delete product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleDeleteAllProducts(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAllProducts(r.Context()); err != nil {
		s.logger.Error("failed to delete products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not delete products")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": "all"})
}

// handleImport parses a pasted supplier listing and appends every product
// it could read. The dollar rate is refreshed on demand first so freshly
// imported costs price against today's quotation; a refresh failure is
// non-fatal and the last known rate is used.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON, err.Error())
		return
	}
	if req.Data == "" {
		writeError(w, http.StatusBadRequest, errValidation, "data is required")
		return
	}

	if _, err := s.rates.Refresh(ctx); err != nil {
		s.logger.Warn("rate refresh before import failed, using last known rate", zap.Error(err))
	}

	maxID, err := s.store.MaxProductID(ctx)
	if err != nil {
		s.logger.Error("failed to get max product id", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not import products")
		return
	}

	products := s.importer.Parse(req.Data, maxID+1)
	if len(products) > 0 {
		if err := s.store.AppendProducts(ctx, products); err != nil {
			s.logger.Error("failed to append imported products", zap.Error(err))
			writeError(w, http.StatusInternalServerError, errPersistence, "could not import products")
			return
		}
	}

	all, err := s.store.ListProducts(ctx)
	if err != nil {
		s.logger.Warn("failed to count catalog after import", zap.Error(err))
	}
	if s.notifier != nil && len(products) > 0 {
		s.notifier.ImportCompleted(len(products), len(all))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(products),
		"products": products,
	})
}

type ruleResponse struct {
	Rule     pricing.ProfitRule   `json:"rule"`
	Adjusted bool                 `json:"adjusted"`
	Rules    []pricing.ProfitRule `json:"rules"`
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	s.upsertRule(w, r, 0)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errValidation, "invalid rule id")
		return
	}
	s.upsertRule(w, r, id)
}

// upsertRule runs the validate→commit→save pipeline shared by add and
// edit. Nothing is persisted (and nothing reported as saved) unless the
// store accepts the replacement list.
func (s *Server) upsertRule(w http.ResponseWriter, r *http.Request, editingID int64) {
	ctx := r.Context()

	var candidate pricing.ProfitRule
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSON, err.Error())
		return
	}

	settings, err := s.store.GetPricingSettings(ctx)
	if err != nil {
		s.logger.Error("failed to load pricing settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load configuration")
		return
	}

	if editingID != 0 && !ruleExists(settings.ProfitRules, editingID) {
		writeError(w, http.StatusNotFound, errNotFound, fmt.Sprintf("rule %d not found", editingID))
		return
	}

	adjusted, wasAdjusted, err := pricing.ValidateNewRule(candidate, settings.ProfitRules, editingID)
	if err != nil {
		var dup *pricing.DuplicateRuleError
		var overlap *pricing.OverlapRuleError
		switch {
		case errors.As(err, &dup):
			writeRuleConflict(w, errDuplicateRule, err.Error(), dup.Existing)
		case errors.As(err, &overlap):
			writeRuleConflict(w, errOverlappingRule, err.Error(), overlap.Existing)
		default:
			writeError(w, http.StatusBadRequest, errValidation, err.Error())
		}
		return
	}

	rules := pricing.AddOrUpdateRule(settings.ProfitRules, adjusted, editingID)
	settings.ProfitRules = rules
	if err := s.store.SavePricingSettings(ctx, settings); err != nil {
		s.logger.Error("failed to save rules", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not save rules")
		return
	}

	saved := rules[len(rules)-1]
	status := http.StatusCreated
	if editingID != 0 {
		status = http.StatusOK
		for _, rl := range rules {
			if rl.ID == editingID {
				saved = rl
				break
			}
		}
	}
	if wasAdjusted {
		s.logger.Info("rule threshold auto-adjusted to keep ranges disjoint",
			zap.Int64("id", saved.ID),
			zap.Float64("threshold", saved.PriceThreshold))
	}
	writeJSON(w, status, ruleResponse{Rule: saved, Adjusted: wasAdjusted, Rules: rules})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errValidation, "invalid rule id")
		return
	}

	settings, err := s.store.GetPricingSettings(ctx)
	if err != nil {
		s.logger.Error("failed to load pricing settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load configuration")
		return
	}
	if !ruleExists(settings.ProfitRules, id) {
		writeError(w, http.StatusNotFound, errNotFound, fmt.Sprintf("rule %d not found", id))
		return
	}

	settings.ProfitRules = pricing.DeleteRule(settings.ProfitRules, id)
	if err := s.store.SavePricingSettings(ctx, settings); err != nil {
		s.logger.Error("failed to save rules", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not save rules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": settings.ProfitRules})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load products")
		return
	}
	cfg, err := s.currentConfig(ctx)
	if err != nil {
		s.logger.Error("failed to load pricing config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not load configuration")
		return
	}

	f, err := export.PriceList(products, cfg)
	if err != nil {
		s.logger.Error("failed to build price list workbook", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errPersistence, "could not build export")
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("lista_precios_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		s.logger.Error("failed to stream export", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func ruleExists(rules []pricing.ProfitRule, id int64) bool {
	for _, r := range rules {
		if r.ID == id {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
