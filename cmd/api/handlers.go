package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"bankcore/pkg/auth"
	"bankcore/pkg/ledger"
	"bankcore/pkg/models"
	"bankcore/pkg/store"
)

// Server holds the ledger instance and the HTTP plumbing around it.
type Server struct {
	ledger   *ledger.Ledger
	storage  store.Storage // kept to close it and for login lookups
	auth     *auth.Auth
	validate *validator.Validate
	logger   *slog.Logger
}

func NewServer(s store.Storage, a *auth.Auth, logger *slog.Logger) *Server {
	return &Server{
		ledger:   ledger.New(s, logger),
		storage:  s,
		auth:     a,
		validate: validator.New(),
		logger:   logger,
	}
}

// Router wires every route. Everything except register/login sits
// behind the bearer-token middleware; role checks happen in the engines.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/auth/register", s.registerHandler).Methods("POST")
	router.HandleFunc("/auth/login", s.loginHandler).Methods("POST")

	api := router.PathPrefix("/").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("/auth/me", s.meHandler).Methods("GET")

	api.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/repay", s.repayLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/approve", s.approveLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/reject", s.rejectLoanHandler).Methods("POST")

	api.HandleFunc("/investments", s.listInvestmentsHandler).Methods("GET")
	api.HandleFunc("/investments", s.createInvestmentHandler).Methods("POST")
	api.HandleFunc("/investments/{id}/cancel", s.cancelInvestmentHandler).Methods("POST")

	api.HandleFunc("/payments", s.listPaymentsHandler).Methods("GET")
	api.HandleFunc("/payments/transfer", s.transferHandler).Methods("POST")

	api.HandleFunc("/admin/dashboard-stats", s.dashboardStatsHandler).Methods("GET")
	api.HandleFunc("/admin/users", s.listUsersHandler).Methods("GET")
	api.HandleFunc("/admin/users/{id}", s.deleteUserHandler).Methods("DELETE")
	api.HandleFunc("/admin/settings", s.listSettingsHandler).Methods("GET")
	api.HandleFunc("/admin/settings/{key}", s.putSettingHandler).Methods("PUT")
	api.HandleFunc("/admin/settings/{key}", s.deleteSettingHandler).Methods("DELETE")

	return router
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type response map[string]any

// respondError maps engine errors onto status codes and the uniform
// {success, message} body.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidTarget),
		errors.Is(err, ledger.ErrInsufficientFunds):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, ledger.ErrForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, ledger.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, ledger.ErrConflict):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, ledger.ErrStorageUnavailable):
		status, message = http.StatusServiceUnavailable, err.Error()
	default:
		s.logger.Error("request failed", "error", err)
	}
	respondJSON(w, status, response{"success": false, "message": message})
}

// decode unmarshals and validates a request body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondJSON(w, http.StatusBadRequest, response{"success": false, "message": "invalid request body"})
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		respondJSON(w, http.StatusBadRequest, response{"success": false, "message": err.Error()})
		return false
	}
	return true
}

func identity(r *http.Request) ledger.Identity {
	ident, _ := auth.IdentityFrom(r.Context())
	return ident
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

// --- auth ---

type registerRequest struct {
	Username       string  `json:"username" validate:"required,min=3"`
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=6"`
	InitialBalance float64 `json:"initial_balance" validate:"gte=0"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.ledger.Register(r.Context(), req.Username, req.Email, hash, models.RoleUser, decimal.NewFromFloat(req.InitialBalance))
	if err != nil {
		s.respondError(w, err)
		return
	}
	token, err := s.auth.GenerateToken(user)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, response{"success": true, "message": "Registration successful", "token": token, "user": user})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.storage.GetUserByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondJSON(w, http.StatusUnauthorized, response{"success": false, "message": "invalid credentials"})
		return
	}
	token, err := s.auth.GenerateToken(user)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Login successful", "token": token, "user": user})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	user, err := s.ledger.GetUser(r.Context(), ident.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	stats, err := s.ledger.UserStats(r.Context(), ident, ident.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "user": user, "stats": stats})
}

// --- loans ---

type createLoanRequest struct {
	LoanType     string  `json:"loan_type" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	TermMonths   int     `json:"term_months" validate:"required,gt=0"`
	InterestRate float64 `json:"interest_rate" validate:"gte=0"`
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if !s.decode(w, r, &req) {
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), identity(r), req.LoanType,
		decimal.NewFromFloat(req.Amount), req.TermMonths, decimal.NewFromFloat(req.InterestRate))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, response{"success": true, "message": "Loan created", "loan": loan})
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.ListLoans(r.Context(), identity(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "loans": loans})
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, response{"success": false, "message": "invalid loan id"})
		return
	}
	if err := s.ledger.ApproveLoan(r.Context(), identity(r), loanID); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Loan approved"})
}

func (s *Server) rejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, response{"success": false, "message": "invalid loan id"})
		return
	}
	if err := s.ledger.RejectLoan(r.Context(), identity(r), loanID); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Loan rejected"})
}

type repayLoanRequest struct {
	LoanID string  `json:"loan_id" validate:"required,uuid"`
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (s *Server) repayLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req repayLoanRequest
	if !s.decode(w, r, &req) {
		return
	}

	remaining, err := s.ledger.RepayLoan(r.Context(), identity(r), uuid.MustParse(req.LoanID), decimal.NewFromFloat(req.Amount))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Payment successful", "remaining": remaining})
}

// --- investments ---

type createInvestmentRequest struct {
	InvestmentType string  `json:"investment_type" validate:"required"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	Frequency      string  `json:"frequency"`
	DurationMonths int     `json:"duration_months" validate:"required,gt=0"`
	ExpectedReturn float64 `json:"expected_return" validate:"gte=0"`
}

func (s *Server) createInvestmentHandler(w http.ResponseWriter, r *http.Request) {
	var req createInvestmentRequest
	if !s.decode(w, r, &req) {
		return
	}

	inv, err := s.ledger.CreateInvestment(r.Context(), identity(r), req.InvestmentType,
		decimal.NewFromFloat(req.Amount), req.Frequency, req.DurationMonths, decimal.NewFromFloat(req.ExpectedReturn))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, response{"success": true, "message": "Investment created", "investment": inv})
}

func (s *Server) listInvestmentsHandler(w http.ResponseWriter, r *http.Request) {
	investments, err := s.ledger.ListInvestments(r.Context(), identity(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "investments": investments})
}

func (s *Server) cancelInvestmentHandler(w http.ResponseWriter, r *http.Request) {
	invID, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, response{"success": false, "message": "invalid investment id"})
		return
	}
	refund, err := s.ledger.CancelInvestment(r.Context(), identity(r), invID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Investment cancelled", "refund": refund})
}

// --- payments ---

type transferRequest struct {
	ReceiverID string  `json:"receiver_id" validate:"required,uuid"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Reason     string  `json:"reason"`
}

func (s *Server) transferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}

	payment, err := s.ledger.Transfer(r.Context(), identity(r), uuid.MustParse(req.ReceiverID), decimal.NewFromFloat(req.Amount), req.Reason)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Transfer successful", "payment": payment})
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, err := s.ledger.ListPayments(r.Context(), identity(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "payments": payments})
}

// --- admin ---

func (s *Server) dashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.DashboardStats(r.Context(), identity(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "stats": stats})
}

func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.ledger.ListUsers(r.Context(), identity(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "users": users, "total": len(users)})
}

func (s *Server) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, response{"success": false, "message": "invalid user id"})
		return
	}
	if err := s.ledger.DeleteUser(r.Context(), identity(r), userID); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "User deleted"})
}

func (s *Server) listSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := s.ledger.ListSettings(r.Context(), identity(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "settings": settings})
}

type putSettingRequest struct {
	Value       string `json:"value" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) putSettingHandler(w http.ResponseWriter, r *http.Request) {
	var req putSettingRequest
	if !s.decode(w, r, &req) {
		return
	}
	key := mux.Vars(r)["key"]
	if err := s.ledger.PutSetting(r.Context(), identity(r), key, req.Value, req.Description); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Setting saved"})
}

func (s *Server) deleteSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.ledger.DeleteSetting(r.Context(), identity(r), key); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, response{"success": true, "message": "Setting deleted"})
}
