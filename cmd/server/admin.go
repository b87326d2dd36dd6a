package main

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Simplici0/forma/internal/catalog"
	"github.com/Simplici0/forma/internal/checkout"
	"github.com/Simplici0/forma/internal/pricing"
	"github.com/Simplici0/forma/internal/receipt"
	"github.com/Simplici0/forma/web"
)

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
}

func flash(r *http.Request) baseViewData {
	return baseViewData{
		ErrorMessage:   r.URL.Query().Get("error"),
		SuccessMessage: r.URL.Query().Get("success"),
	}
}

type loginViewData struct {
	baseViewData
}

type materialsViewData struct {
	baseViewData
	Materials []catalog.Material
}

type printRateRow struct {
	Size    string
	MaxArea float64
	Prices  []float64
}

type printRatesViewData struct {
	baseViewData
	Buckets []pricing.Bucket
	Rows    []printRateRow
}

type addonsViewData struct {
	baseViewData
	Addons catalog.AddonRates
}

type designsViewData struct {
	baseViewData
	Designs []catalog.Design
}

type ordersViewData struct {
	baseViewData
	Orders []checkout.Order
}

func (s *server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.auth.isAuthenticated(r) {
		http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "login.html", loginViewData{})
}

func (s *server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	valid, err := s.auth.validateCredentials(r.Context(), email, r.FormValue("password"))
	if err != nil {
		s.log.Error("authentication error", zap.Error(err))
		http.Error(w, "authentication error", http.StatusInternalServerError)
		return
	}
	if !valid {
		s.log.Warn("failed admin login", zap.String("email", email))
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "login.html", loginViewData{baseViewData: baseViewData{ErrorMessage: "Invalid credentials. Try again."}})
		return
	}

	s.auth.setSessionCookie(w, email)
	http.Redirect(w, r, "/admin/orders", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *server) handleAdminMaterialsForm(w http.ResponseWriter, r *http.Request) {
	materials, err := s.catalog.ListMaterials(r.Context())
	if err != nil {
		s.log.Error("failed to load materials", zap.Error(err))
		http.Error(w, "failed to load materials", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_materials.html", materialsViewData{
		baseViewData: flash(r),
		Materials:    materials,
	})
}

func (s *server) handleAdminMaterialsCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	m, err := parseMaterialForm(r, strings.TrimSpace(r.FormValue("key")))
	if err != nil {
		redirectWithError(w, r, "/admin/materials", err)
		return
	}

	if err := s.catalog.SaveMaterial(r.Context(), m); err != nil {
		s.log.Error("failed to create material", zap.Error(err))
		http.Error(w, "failed to create material", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/materials?success=Material+created", http.StatusSeeOther)
}

func (s *server) handleAdminMaterialsUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	m, err := parseMaterialForm(r, chi.URLParam(r, "key"))
	if err != nil {
		redirectWithError(w, r, "/admin/materials", err)
		return
	}

	if err := s.catalog.SaveMaterial(r.Context(), m); err != nil {
		s.log.Error("failed to update material", zap.String("key", m.Key), zap.Error(err))
		http.Error(w, "failed to update material", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/materials?success=Material+updated", http.StatusSeeOther)
}

func (s *server) handleAdminPrintRatesForm(w http.ResponseWriter, r *http.Request) {
	s.renderPrintRates(w, r, flash(r))
}

func (s *server) renderPrintRates(w http.ResponseWriter, r *http.Request, base baseViewData) {
	ctx := r.Context()
	sizes, err := s.catalog.ListSizes(ctx)
	if err != nil {
		s.log.Error("failed to load sizes", zap.Error(err))
		http.Error(w, "failed to load print rates", http.StatusInternalServerError)
		return
	}
	rates, err := s.catalog.ListPrintRates(ctx)
	if err != nil {
		s.log.Error("failed to load print rates", zap.Error(err))
		http.Error(w, "failed to load print rates", http.StatusInternalServerError)
		return
	}

	prices := make(map[string]map[string]float64)
	for _, pr := range rates {
		if prices[pr.Size] == nil {
			prices[pr.Size] = make(map[string]float64)
		}
		prices[pr.Size][pr.Bucket] = pr.Price
	}

	rows := make([]printRateRow, 0, len(sizes))
	for _, sa := range sizes {
		row := printRateRow{Size: sa.Size, MaxArea: sa.MaxAreaSqIn}
		for _, b := range pricing.Buckets {
			row.Prices = append(row.Prices, prices[sa.Size][b.String()])
		}
		rows = append(rows, row)
	}

	s.renderTemplate(w, "admin_print_rates.html", printRatesViewData{
		baseViewData: base,
		Buckets:      pricing.Buckets,
		Rows:         rows,
	})
}

func (s *server) handleAdminPrintRatesSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sizes, err := s.catalog.ListSizes(r.Context())
	if err != nil {
		s.log.Error("failed to load sizes", zap.Error(err))
		http.Error(w, "failed to load sizes", http.StatusInternalServerError)
		return
	}

	areas, rates, err := parsePrintRatesForm(r, sizes)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderPrintRates(w, r, baseViewData{ErrorMessage: err.Error()})
		return
	}

	for _, sa := range areas {
		if err := s.catalog.SaveSize(r.Context(), sa); err != nil {
			s.log.Error("failed to save size area", zap.String("size", sa.Size), zap.Error(err))
			http.Error(w, "failed to save print rates", http.StatusInternalServerError)
			return
		}
	}
	for _, pr := range rates {
		if err := s.catalog.SavePrintRate(r.Context(), pr); err != nil {
			s.log.Error("failed to save print rate", zap.String("size", pr.Size), zap.String("bucket", pr.Bucket), zap.Error(err))
			http.Error(w, "failed to save print rates", http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, "/admin/print-rates?success=Print+rates+saved", http.StatusSeeOther)
}

func (s *server) handleAdminAddonsForm(w http.ResponseWriter, r *http.Request) {
	addons, err := s.catalog.AddonRates(r.Context())
	if err != nil {
		s.log.Error("failed to load addon rates", zap.Error(err))
		http.Error(w, "failed to load addon rates", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_addons.html", addonsViewData{baseViewData: flash(r), Addons: addons})
}

func (s *server) handleAdminAddonsSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	addons, validationErr := parseAddonForm(r)
	if validationErr != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderTemplate(w, "admin_addons.html", addonsViewData{
			baseViewData: baseViewData{ErrorMessage: validationErr.Error()},
			Addons:       addons,
		})
		return
	}

	if err := s.catalog.SaveAddonRates(r.Context(), addons); err != nil {
		s.log.Error("failed to save addon rates", zap.Error(err))
		http.Error(w, "failed to save addon rates", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_addons.html", addonsViewData{
		baseViewData: baseViewData{SuccessMessage: "Add-on rates saved."},
		Addons:       addons,
	})
}

func (s *server) handleAdminDesignsForm(w http.ResponseWriter, r *http.Request) {
	designs, err := s.catalog.ListAllDesigns(r.Context())
	if err != nil {
		s.log.Error("failed to load designs", zap.Error(err))
		http.Error(w, "failed to load designs", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_designs.html", designsViewData{baseViewData: flash(r), Designs: designs})
}

func (s *server) handleAdminDesignsCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	d, err := parseDesignForm(r, strings.TrimSpace(r.FormValue("id")))
	if err != nil {
		redirectWithError(w, r, "/admin/designs", err)
		return
	}
	if err := s.catalog.SaveDesign(r.Context(), d); err != nil {
		s.log.Error("failed to create design", zap.Error(err))
		http.Error(w, "failed to create design", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/designs?success=Design+created", http.StatusSeeOther)
}

func (s *server) handleAdminDesignsUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.catalog.Design(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.log.Error("failed to load design", zap.String("id", id), zap.Error(err))
		http.Error(w, "failed to update design", http.StatusInternalServerError)
		return
	}

	d, err := parseDesignForm(r, id)
	if err != nil {
		redirectWithError(w, r, "/admin/designs", err)
		return
	}
	if err := s.catalog.SaveDesign(r.Context(), d); err != nil {
		s.log.Error("failed to update design", zap.String("id", id), zap.Error(err))
		http.Error(w, "failed to update design", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/designs?success=Design+updated", http.StatusSeeOther)
}

func (s *server) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.checkout.ListOrders(r.Context(), 200)
	if err != nil {
		s.log.Error("failed to load orders", zap.Error(err))
		http.Error(w, "failed to load orders", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_orders.html", ordersViewData{baseViewData: flash(r), Orders: orders})
}

func (s *server) handleAdminOrdersExport(w http.ResponseWriter, r *http.Request) {
	orders, err := s.checkout.ListOrders(r.Context(), 10000)
	if err != nil {
		s.log.Error("failed to load orders", zap.Error(err))
		http.Error(w, "failed to load orders", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := receipt.WriteOrdersXLSX(&buf, orders); err != nil {
		s.log.Error("failed to export orders", zap.Error(err))
		http.Error(w, "failed to export orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func parseMaterialForm(r *http.Request, key string) (catalog.Material, error) {
	m := catalog.Material{
		Key:    key,
		Name:   strings.TrimSpace(r.FormValue("name")),
		Active: r.FormValue("active") == "1",
	}
	if m.Key == "" {
		return m, fmt.Errorf("key is required")
	}
	if m.Name == "" {
		return m, fmt.Errorf("name is required")
	}

	var err error
	if m.BaseCost, err = parseNonNegativeFloat(r.FormValue("base_cost"), "base_cost"); err != nil {
		return m, err
	}
	return m, nil
}

func parsePrintRatesForm(r *http.Request, sizes []catalog.SizeArea) ([]catalog.SizeArea, []catalog.PrintRate, error) {
	areas := make([]catalog.SizeArea, 0, len(sizes))
	rates := make([]catalog.PrintRate, 0, len(sizes)*len(pricing.Buckets))

	for _, sa := range sizes {
		field := "area_" + sa.Size
		area, err := parsePositiveFloat(r.FormValue(field), field)
		if err != nil {
			return nil, nil, err
		}
		sa.MaxAreaSqIn = area
		areas = append(areas, sa)

		for i, b := range pricing.Buckets {
			field := fmt.Sprintf("rate_%s_%d", sa.Size, i)
			price, err := parseNonNegativeFloat(r.FormValue(field), field)
			if err != nil {
				return nil, nil, err
			}
			rates = append(rates, catalog.PrintRate{Size: sa.Size, Bucket: b.String(), Price: price})
		}
	}
	return areas, rates, nil
}

func parseAddonForm(r *http.Request) (catalog.AddonRates, error) {
	addons := catalog.AddonRates{Currency: strings.ToUpper(strings.TrimSpace(r.FormValue("currency")))}
	if addons.Currency == "" {
		addons.Currency = "INR"
	}

	var err error
	if addons.FlatAddon, err = parseNonNegativeFloat(r.FormValue("flat_addon"), "flat_addon"); err != nil {
		return addons, err
	}
	if addons.LibraryAccess, err = parseNonNegativeFloat(r.FormValue("library_access"), "library_access"); err != nil {
		return addons, err
	}
	if addons.EmbroideryText, err = parseNonNegativeFloat(r.FormValue("embroidery_text"), "embroidery_text"); err != nil {
		return addons, err
	}
	if addons.EmbroideryDesign, err = parseNonNegativeFloat(r.FormValue("embroidery_design"), "embroidery_design"); err != nil {
		return addons, err
	}
	if addons.CanvasWidth, err = parsePositiveFloat(r.FormValue("canvas_width"), "canvas_width"); err != nil {
		return addons, err
	}
	if addons.CanvasHeight, err = parsePositiveFloat(r.FormValue("canvas_height"), "canvas_height"); err != nil {
		return addons, err
	}
	return addons, nil
}

func parseDesignForm(r *http.Request, id string) (catalog.Design, error) {
	d := catalog.Design{
		ID:        id,
		Name:      strings.TrimSpace(r.FormValue("name")),
		Category:  strings.TrimSpace(r.FormValue("category")),
		ImagePath: strings.TrimSpace(r.FormValue("image_path")),
		Active:    r.FormValue("active") == "1",
	}
	switch {
	case d.ID == "":
		return d, fmt.Errorf("id is required")
	case d.Name == "":
		return d, fmt.Errorf("name is required")
	case d.Category == "":
		return d, fmt.Errorf("category is required")
	case d.ImagePath == "":
		return d, fmt.Errorf("image_path is required")
	}

	var err error
	if d.Price, err = parseNonNegativeFloat(r.FormValue("price"), "price"); err != nil {
		return d, err
	}
	return d, nil
}

func parseNonNegativeFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must be greater than or equal to 0", field)
	}
	return value, nil
}

func parsePositiveFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric", field)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path string, err error) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	templates, err := template.ParseFS(web.Templates, "templates/layout.html", "templates/"+page)
	if err != nil {
		s.log.Error("failed to parse template", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		s.log.Error("failed to render template", zap.String("page", page), zap.Error(err))
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}
