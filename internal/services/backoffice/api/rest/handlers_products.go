package rest

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/pricing"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metal, err := domain.ParseMetal(req.Metal)
	if err != nil {
		s.writeError(w, err)
		return
	}
	product, err := domain.CreateProduct(domain.CreateProductInput{
		SKU:        req.SKU,
		Name:       req.Name,
		Category:   category,
		Metal:      metal,
		WeightMg:   req.WeightMg,
		Size:       req.Size,
		SupplierID: req.SupplierID,
		Cost:       money.Amount(req.Cost),
		Price:      money.Amount(req.Price),
		StockQty:   req.StockQty,
		Notes:      req.Notes,
	}, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.PutProduct(r.Context(), product); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toProduct(product))
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathValue(r, "productID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	product, err := s.store.GetProduct(r.Context(), productID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toProduct(product))
}

// handleListProducts filters by status, category, metal, free-text
// query, and max_stock (for low-stock views).
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.ProductFilter{Query: query.Get("query"), MaxStock: -1}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := domain.ParseProductStatus(raw)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown product status %q", raw))
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("category")); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.Category = category
	}
	if raw := strings.TrimSpace(query.Get("metal")); raw != "" {
		metal, err := domain.ParseMetal(raw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.Metal = metal
	}
	if raw := strings.TrimSpace(query.Get("max_stock")); raw != "" {
		maxStock, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || maxStock < 0 {
			s.writeError(w, apperrors.New(apperrors.CodeBadRequest, "max_stock must be a non-negative integer"))
			return
		}
		filter.MaxStock = maxStock
	}

	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListProducts(r.Context(), filter, pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.ProductPage{
		Products:      make([]apitypes.Product, 0, len(page.Products)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Products {
		out.Products = append(out.Products, toProduct(product))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathValue(r, "productID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.UpdateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	product, err := s.store.GetProduct(r.Context(), productID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	merged := domain.CreateProductInput{
		SKU:        product.SKU,
		Name:       product.Name,
		Category:   product.Category,
		Metal:      product.Metal,
		WeightMg:   product.WeightMg,
		Size:       product.Size,
		SupplierID: product.SupplierID,
		Cost:       product.Cost,
		Price:      product.Price,
		StockQty:   product.StockQty,
		Notes:      product.Notes,
	}
	if req.Name != nil {
		merged.Name = *req.Name
	}
	if req.Category != nil {
		category, err := domain.ParseCategory(*req.Category)
		if err != nil {
			s.writeError(w, err)
			return
		}
		merged.Category = category
	}
	if req.Metal != nil {
		metal, err := domain.ParseMetal(*req.Metal)
		if err != nil {
			s.writeError(w, err)
			return
		}
		merged.Metal = metal
	}
	if req.WeightMg != nil {
		merged.WeightMg = *req.WeightMg
	}
	if req.Size != nil {
		merged.Size = *req.Size
	}
	if req.SupplierID != nil {
		merged.SupplierID = *req.SupplierID
	}
	if req.Cost != nil {
		merged.Cost = money.Amount(*req.Cost)
	}
	if req.Price != nil {
		merged.Price = money.Amount(*req.Price)
	}
	if req.StockQty != nil {
		merged.StockQty = *req.StockQty
	}
	if req.Notes != nil {
		merged.Notes = *req.Notes
	}
	normalized, err := domain.NormalizeCreateProductInput(merged)
	if err != nil {
		s.writeError(w, err)
		return
	}

	product.Name = normalized.Name
	product.Category = normalized.Category
	product.Metal = normalized.Metal
	product.WeightMg = normalized.WeightMg
	product.Size = normalized.Size
	product.SupplierID = normalized.SupplierID
	product.Cost = normalized.Cost
	product.Price = normalized.Price
	product.StockQty = normalized.StockQty
	product.Notes = normalized.Notes
	if req.Status != nil {
		status, err := domain.ParseProductStatus(*req.Status)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown product status %q", *req.Status))
			return
		}
		product.Status = status
	}
	product.UpdatedAt = s.now().UTC()
	if err := s.store.PutProduct(r.Context(), product); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toProduct(product))
}

// handlePriceSuggestion runs the pricing engine over one product. The
// active stored rule wins; a rule loaded from disk backs it up; with
// neither, the built-in cost-plus formula answers.
func (s *Server) handlePriceSuggestion(w http.ResponseWriter, r *http.Request) {
	productID, err := pathValue(r, "productID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	product, err := s.store.GetProduct(r.Context(), productID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := apitypes.PriceSuggestion{ProductID: product.ID}
	opts := []pricing.Option{pricing.WithLogf(s.logf)}
	rule, err := s.store.GetActivePricingRule(r.Context())
	switch {
	case err == nil:
		opts = append(opts, pricing.WithScript(rule.Source))
		out.RuleID = rule.ID
		out.RuleName = rule.Name
	case !apperrors.IsCode(err, apperrors.CodeNotFound):
		s.writeError(w, err)
		return
	case s.pricingScript != "":
		opts = append(opts, pricing.WithScript(s.pricingScript))
	}

	engine := pricing.NewEngine(opts...)
	suggested := engine.Suggest(pricing.Facts{
		Cost:     product.Cost,
		WeightMg: product.WeightMg,
		Metal:    product.Metal,
		Category: product.Category,
		StockQty: product.StockQty,
	})
	out.SuggestedPrice = int64(suggested)
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListPricingRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListPricingRules(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.PricingRuleList{Rules: make([]apitypes.PricingRule, 0, len(rules))}
	for _, rule := range rules {
		out.Rules = append(out.Rules, toPricingRule(rule))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutPricingRule(w http.ResponseWriter, r *http.Request) {
	var req apitypes.PutPricingRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	source := strings.TrimSpace(req.Source)
	if name == "" || source == "" {
		s.writeError(w, apperrors.New(apperrors.CodePricingRuleInvalid, "rule name and source are required"))
		return
	}

	now := s.now().UTC()
	rule := storage.PricingRule{
		ID:        strings.TrimSpace(req.ID),
		Name:      name,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rule.ID == "" {
		ruleID, err := s.newID()
		if err != nil {
			s.writeError(w, err)
			return
		}
		rule.ID = ruleID
	} else if existing, err := s.store.GetPricingRule(r.Context(), rule.ID); err == nil {
		rule.Active = existing.Active
		rule.CreatedAt = existing.CreatedAt
	}
	if err := s.store.PutPricingRule(r.Context(), rule); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPricingRule(rule))
}

func (s *Server) handleActivatePricingRule(w http.ResponseWriter, r *http.Request) {
	ruleID, err := pathValue(r, "ruleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SetActivePricingRule(r.Context(), ruleID); err != nil {
		s.writeError(w, err)
		return
	}
	rule, err := s.store.GetPricingRule(r.Context(), ruleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPricingRule(rule))
}
