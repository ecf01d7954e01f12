package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Mihailchik/TG-TimeChecker/internal/services"
	"github.com/Mihailchik/TG-TimeChecker/pkg/utils"
)

// GetSites returns the list of selectable work sites
func GetSites(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sites, err := controller.AvailableSites(r.Context())
		if err != nil {
			log.Printf("❌ Failed to load sites: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "Could not load sites")
			return
		}
		utils.RespondData(w, sites)
	}
}

// GetSiteDetails returns one site's coordinates and check-in radius
func GetSiteDetails(controller *services.ShiftController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			utils.RespondError(w, http.StatusBadRequest, "site name is required")
			return
		}

		site, err := controller.SiteDetails(r.Context(), name)
		if err != nil {
			log.Printf("❌ Failed to load site %q: %v", name, err)
			utils.RespondError(w, http.StatusInternalServerError, "Could not load site")
			return
		}
		if site == nil {
			utils.RespondError(w, http.StatusNotFound, "Unknown site")
			return
		}
		utils.RespondData(w, site)
	}
}
