package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/visionid/visionid/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	recognizeHandler := handlers.NewRecognizeHandler(deps.Recognition, deps.History)
	registerHandler := handlers.NewRegisterHandler(deps.Enroll, deps.Identities, deps.Lookalike)
	attendanceHandler := handlers.NewAttendanceHandler(deps.AttendanceMarker, deps.Attendance, deps.Identities)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/recognize/bulk", recognizeHandler.RecognizeBulk)
		r.Get("/recognize/history", recognizeHandler.History)

		// Registration
		r.Post("/register", registerHandler.Register)
		r.Get("/register/identities", registerHandler.List)
		r.Get("/register/identities/{id}", registerHandler.Get)
		r.Put("/register/identities/{id}", registerHandler.Update)
		r.Delete("/register/identities/{id}", registerHandler.Delete)
		r.Get("/register/identities/{id}/similar", registerHandler.Similar)

		// Attendance
		r.Post("/attendance/mark", attendanceHandler.Mark)
		r.Post("/attendance/manual", attendanceHandler.ManualMark)
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/attendance/report", attendanceHandler.Report)
		r.Get("/attendance/identity/{id}", attendanceHandler.ByIdentity)
		r.Get("/attendance/statistics", attendanceHandler.Statistics)
	})
}
