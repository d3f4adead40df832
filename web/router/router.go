package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"tombola/logger"
	"tombola/web/controller"
)

func InitRouter(controller *controller.Controller, metrics http.Handler, logger *logger.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(logger.LogRequest)

	router.HandleFunc("/api/status", controller.DeviceStatus).Methods(http.MethodGet)
	router.Handle("/metrics", metrics).Methods(http.MethodGet)

	recordingrouter := router.PathPrefix("/recording").Subrouter()
	recordingrouter.HandleFunc("/start", controller.StartRecording).Methods(http.MethodPost)
	recordingrouter.HandleFunc("/stop", controller.StopRecording).Methods(http.MethodPost)

	drumrouter := router.PathPrefix("/drum").Subrouter()
	drumrouter.HandleFunc("/rpm", controller.GetDrumSpeed).Methods(http.MethodGet)
	drumrouter.HandleFunc("/rpm", controller.SetDrumSpeed).Methods(http.MethodPut)

	router.HandleFunc("/settings", controller.ListSettings).Methods(http.MethodGet)
	router.HandleFunc("/settings", controller.ChangeSetting).Methods(http.MethodPut)

	return router
}
