package router

import (
	"github.com/go-chi/chi/v5"

	"bazaar-service/internal/delivery/handler"
	"bazaar-service/internal/infrastructure/metrics"
	"bazaar-service/internal/service"
	"bazaar-service/pkg/logger"
)

func SetupAdRoutes(adRouter *chi.Mux, adService service.AdService, loggers *logger.Loggers, metrics *metrics.HandlerMetrics) {
	adHandler := handler.NewAdHandler(adService, loggers, metrics)

	adRouter.Get("/ads", adHandler.GetAds)
	adRouter.Post("/ads", adHandler.CreateAd)
	adRouter.Post("/ads/cursor", adHandler.FetchAdsCursor)
	adRouter.Delete("/ads/cursor/{name}", adHandler.CloseAdsCursor)
	adRouter.Get("/ads/{id}", adHandler.GetAdByID)
	adRouter.Put("/ads/{id}", adHandler.UpdateAd)
	adRouter.Delete("/ads/{id}", adHandler.DeleteAd)
	adRouter.Get("/images/{id}", adHandler.GetImage)
}
