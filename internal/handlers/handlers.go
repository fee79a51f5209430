package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/omegaop/backoffice/internal/auth"
	"github.com/omegaop/backoffice/internal/models"
	"github.com/omegaop/backoffice/internal/roles"
	"github.com/omegaop/backoffice/internal/store"
	appsync "github.com/omegaop/backoffice/internal/sync"
	"github.com/omegaop/backoffice/internal/ws"
)

type contextKey string

const sessionKey contextKey = "session"

// AuthService is the slice of the auth provider the handlers need.
type AuthService interface {
	SignUp(ctx context.Context, email, password, displayName string) (*auth.Session, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(session *auth.Session)
	SessionFromToken(token string) (*auth.Session, error)
}

// Handlers holds the dependencies required by HTTP handler functions.
type Handlers struct {
	Sync *appsync.Synchronizer
	Auth AuthService
	Hub  *ws.Hub

	log      *logrus.Entry
	validate *validator.Validate
}

// NewHandlers wires the handler set.
func NewHandlers(s *appsync.Synchronizer, a AuthService, hub *ws.Hub, log *logrus.Logger) *Handlers {
	return &Handlers{
		Sync:     s,
		Auth:     a,
		Hub:      hub,
		log:      log.WithField("component", "http"),
		validate: validator.New(),
	}
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes a JSON error response.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeValid decodes the request body and runs struct validation.
func (h *Handlers) decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return h.validate.Struct(dst)
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// AuthMiddleware resolves the bearer token to a session and injects it into
// the request context. All intent endpoints require it; authorization beyond
// "authenticated" is advisory and lives in the view layer.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		session, err := h.Auth.SessionFromToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getSession extracts the session from the request context.
func getSession(r *http.Request) *auth.Session {
	session, _ := r.Context().Value(sessionKey).(*auth.Session)
	return session
}

// rosterUser resolves the request's session to its roster entry.
func (h *Handlers) rosterUser(r *http.Request) *models.User {
	session := getSession(r)
	if session == nil {
		return nil
	}
	team := h.Sync.State().Team
	for i := range team {
		if team[i].AuthID != "" && team[i].AuthID == session.Subject {
			u := team[i]
			return &u
		}
	}
	for i := range team {
		if strings.EqualFold(team[i].Email, session.Email) {
			u := team[i]
			return &u
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Auth handlers
// ---------------------------------------------------------------------------

// SignUp handles POST /api/auth/signup.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required,min=6"`
		DisplayName string `json:"displayName"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.Auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if errors.Is(err, auth.ErrEmailTaken) {
		respondError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("sign-up failed")
		respondError(w, http.StatusInternalServerError, "sign-up failed")
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// SignIn handles POST /api/auth/signin.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.Auth.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("sign-in failed")
		respondError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// SignOut handles POST /api/auth/signout.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if session, err := h.Auth.SessionFromToken(bearerToken(r)); err == nil {
		h.Auth.SignOut(session)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// GetSession handles GET /api/auth/session: the "current session" lookup
// plus the roster-reconciled identity.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.Auth.SessionFromToken(bearerToken(r))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "no active session")
		return
	}
	user, err := h.Sync.Reconcile(r.Context(), session)
	if err != nil {
		h.log.WithError(err).Warn("reconciliation write failed")
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": session, "user": user})
}

// ---------------------------------------------------------------------------
// State handlers
// ---------------------------------------------------------------------------

// GetState handles GET /api/state.
func (h *Handlers) GetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"documentId": store.DocumentID,
		"status":     h.Sync.Status(),
		"state":      h.Sync.State(),
	})
}

// CreateMonth handles POST /api/months. Months also materialize lazily on
// first write; this endpoint lets the dashboard open an empty month up front.
func (h *Handlers) CreateMonth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Month string `json:"month" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Sync.EnsureMonth(req.Month)
	respondJSON(w, http.StatusCreated, map[string]string{"month": req.Month})
}

// ---------------------------------------------------------------------------
// Client handlers
// ---------------------------------------------------------------------------

// AddClient handles POST /api/months/{month}/clients.
func (h *Handlers) AddClient(w http.ResponseWriter, r *http.Request) {
	var req models.Client
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "client name is required")
		return
	}
	client := h.Sync.AddClient(mux.Vars(r)["month"], req)
	respondJSON(w, http.StatusCreated, client)
}

// UpdateClient handles PUT /api/months/{month}/clients/{id}.
func (h *Handlers) UpdateClient(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req models.Client
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ID = vars["id"]
	if err := h.Sync.UpdateClient(vars["month"], req); err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// RemoveClient handles DELETE /api/months/{month}/clients/{id}.
func (h *Handlers) RemoveClient(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.Sync.RemoveClient(vars["month"], vars["id"])
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// AssignUsers handles PUT /api/months/{month}/clients/{id}/assignees.
func (h *Handlers) AssignUsers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		UserIDs []string `json:"userIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Sync.AssignUsers(vars["month"], vars["id"], req.UserIDs); err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// SetClientPaused handles PUT /api/months/{month}/clients/{id}/paused.
func (h *Handlers) SetClientPaused(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Sync.SetClientPaused(vars["month"], vars["id"], req.Paused); err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// UpdateClientFolder handles PUT /api/months/{month}/clients/{id}/folder.
func (h *Handlers) UpdateClientFolder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req appsync.ClientFolder
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Sync.UpdateClientFolder(vars["month"], vars["id"], req); err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SetPlanItems handles PUT /api/months/{month}/clients/{id}/plan.
func (h *Handlers) SetPlanItems(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		Items []string `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Sync.SetPlanItems(vars["month"], vars["id"], req.Items); err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ---------------------------------------------------------------------------
// Task handlers
// ---------------------------------------------------------------------------

// AddTask handles POST /api/months/{month}/tasks.
func (h *Handlers) AddTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string `json:"title" validate:"required"`
		AssignedTo string `json:"assignedTo" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	task := h.Sync.AddTask(mux.Vars(r)["month"], req.Title, req.AssignedTo)
	respondJSON(w, http.StatusCreated, task)
}

// ToggleTask handles POST /api/months/{month}/tasks/{id}/toggle.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.Sync.ToggleTask(vars["month"], vars["id"])
	respondJSON(w, http.StatusOK, map[string]string{"status": "toggled"})
}

// RemoveTask handles DELETE /api/months/{month}/tasks/{id}.
func (h *Handlers) RemoveTask(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.Sync.RemoveTask(vars["month"], vars["id"])
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ---------------------------------------------------------------------------
// Sales handlers
// ---------------------------------------------------------------------------

// UpdateSalesGoal handles PUT /api/months/{month}/goal.
func (h *Handlers) UpdateSalesGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target      float64 `json:"target"`
		SuperTarget float64 `json:"superTarget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.Sync.UpdateSalesGoal(mux.Vars(r)["month"], req.Target, req.SuperTarget)
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RegisterSale handles POST /api/months/{month}/sales. The seller is the
// authenticated session's roster entry.
func (h *Handlers) RegisterSale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientName  string  `json:"clientName" validate:"required"`
		Value       float64 `json:"value" validate:"gt=0"`
		ServiceType string  `json:"serviceType"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	seller := h.rosterUser(r)
	if seller == nil {
		respondError(w, http.StatusForbidden, "session has no roster entry")
		return
	}

	client, err := h.Sync.RegisterSale(r.Context(), mux.Vars(r)["month"], req.ClientName, req.Value, seller.ID, req.ServiceType)
	if err != nil {
		// The sale is applied in memory; the failed write is surfaced as
		// connectivity status and retried on the next cycle.
		h.log.WithError(err).Warn("sale registered locally, save failed")
	}
	respondJSON(w, http.StatusCreated, client)
}

// ---------------------------------------------------------------------------
// Chat and squad handlers
// ---------------------------------------------------------------------------

// PostChatMessage handles POST /api/months/{month}/chat.
func (h *Handlers) PostChatMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	author := h.rosterUser(r)
	if author == nil {
		respondError(w, http.StatusForbidden, "session has no roster entry")
		return
	}
	msg := h.Sync.PostChatMessage(mux.Vars(r)["month"], author.ID, req.Text)
	respondJSON(w, http.StatusCreated, msg)
}

// CreateSquad handles POST /api/months/{month}/squads.
func (h *Handlers) CreateSquad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string   `json:"name" validate:"required"`
		MemberIDs []string `json:"memberIds"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	squad := h.Sync.CreateSquad(mux.Vars(r)["month"], req.Name, req.MemberIDs)
	respondJSON(w, http.StatusCreated, squad)
}

// SetSquadMembers handles PUT /api/months/{month}/squads/{id}/members.
func (h *Handlers) SetSquadMembers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		MemberIDs []string `json:"memberIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Sync.SetSquadMembers(vars["month"], vars["id"], req.MemberIDs); err != nil {
		respondError(w, http.StatusNotFound, "squad not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// PostSquadMessage handles POST /api/months/{month}/squads/{id}/messages.
func (h *Handlers) PostSquadMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		Text string `json:"text" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	author := h.rosterUser(r)
	if author == nil {
		respondError(w, http.StatusForbidden, "session has no roster entry")
		return
	}
	msg, err := h.Sync.PostSquadMessage(vars["month"], vars["id"], author.ID, req.Text)
	if err != nil {
		respondError(w, http.StatusNotFound, "squad not found")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// ---------------------------------------------------------------------------
// Drive and wiki handlers
// ---------------------------------------------------------------------------

func sectionFromVars(vars map[string]string) (appsync.Section, bool) {
	switch vars["section"] {
	case "drive":
		return appsync.SectionDrive, true
	case "wiki":
		return appsync.SectionWiki, true
	}
	return "", false
}

// CreateDriveItem handles POST /api/months/{month}/{section}/items.
func (h *Handlers) CreateDriveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	section, ok := sectionFromVars(vars)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown section")
		return
	}
	var req struct {
		ParentID string `json:"parentId"`
		Kind     string `json:"kind" validate:"required,oneof=FOLDER FILE"`
		Name     string `json:"name" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := h.Sync.CreateDriveItem(vars["month"], section, req.ParentID, models.DriveItemKind(req.Kind), req.Name)
	respondJSON(w, http.StatusCreated, item)
}

// RenameDriveItem handles PUT /api/months/{month}/{section}/items/{id}/name.
func (h *Handlers) RenameDriveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	section, ok := sectionFromVars(vars)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown section")
		return
	}
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Sync.RenameDriveItem(vars["month"], section, vars["id"], req.Name); err != nil {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// SetDriveItemContent handles PUT /api/months/{month}/{section}/items/{id}/content.
func (h *Handlers) SetDriveItemContent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	section, ok := sectionFromVars(vars)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown section")
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Sync.SetDriveItemContent(vars["month"], section, vars["id"], req.Content); err != nil {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GetDriveItemPayload handles GET /api/months/{month}/{section}/items/{id}/payload.
// Malformed embedded JSON decodes to an empty payload, never an error.
func (h *Handlers) GetDriveItemPayload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	section, ok := sectionFromVars(vars)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown section")
		return
	}
	bucket, found := h.Sync.State().DB[vars["month"]]
	if !found {
		respondError(w, http.StatusNotFound, "month not found")
		return
	}
	items := bucket.Drive
	if section == appsync.SectionWiki {
		items = bucket.Wiki
	}
	item := models.FindItem(items, vars["id"])
	if item == nil {
		respondError(w, http.StatusNotFound, "item not found")
		return
	}
	respondJSON(w, http.StatusOK, models.FilePayload(*item))
}

// DeleteDriveItem handles DELETE /api/months/{month}/{section}/items/{id}.
func (h *Handlers) DeleteDriveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	section, ok := sectionFromVars(vars)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown section")
		return
	}
	h.Sync.DeleteDriveItem(vars["month"], section, vars["id"])
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ---------------------------------------------------------------------------
// Role and team handlers
// ---------------------------------------------------------------------------

// RegisterRole handles POST /api/roles.
func (h *Handlers) RegisterRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Sync.RegisterRole(req.Name); err != nil {
		if errors.Is(err, roles.ErrDuplicate) {
			respondError(w, http.StatusConflict, "role already registered")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

// SetDisplayName handles PUT /api/team/{id}/name.
func (h *Handlers) SetDisplayName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Sync.SetDisplayName(r.Context(), mux.Vars(r)["id"], req.Name); err != nil {
		if errors.Is(err, appsync.ErrNotInRoster) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		h.log.WithError(err).Warn("rename applied locally, save failed")
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// SetUserRole handles PUT /api/team/{id}/role.
func (h *Handlers) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role" validate:"required"`
	}
	if err := h.decodeValid(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Sync.SetUserRole(mux.Vars(r)["id"], req.Role); err != nil {
		if errors.Is(err, roles.ErrUnknown) {
			respondError(w, http.StatusBadRequest, "unknown role")
			return
		}
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ApproveUser handles POST /api/team/{id}/approve.
func (h *Handlers) ApproveUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Sync.ApproveUser(mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// SetUserActive handles PUT /api/team/{id}/active.
func (h *Handlers) SetUserActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Sync.SetUserActive(mux.Vars(r)["id"], req.Active); err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RemoveUser handles DELETE /api/team/{id}.
func (h *Handlers) RemoveUser(w http.ResponseWriter, r *http.Request) {
	h.Sync.RemoveUser(mux.Vars(r)["id"])
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ---------------------------------------------------------------------------
// Health and websocket
// ---------------------------------------------------------------------------

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"sync":   h.Sync.Status(),
	})
}

// HandleWebSocket handles GET /ws.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.ServeWs(h.Hub, w, r)
}
