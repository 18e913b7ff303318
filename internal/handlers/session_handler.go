package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/services"
	"github.com/ahmetcoskunkizilkaya/unified-identity/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SessionHandler struct {
	auth     *services.AuthService
	accounts *services.AccountService
	guard    *session.Guard
}

func NewSessionHandler(auth *services.AuthService, accounts *services.AccountService, guard *session.Guard) *SessionHandler {
	return &SessionHandler{auth: auth, accounts: accounts, guard: guard}
}

// Reconcile handles GET /api/session/reconcile. The client reports what it
// believes in X-Local-Auth; the bearer token, if any, decides the verdict.
func (h *SessionHandler) Reconcile(c *fiber.Ctx) error {
	local := session.ParseState(c.Get("X-Local-Auth"))

	verdict := session.Unauthenticated
	var root uuid.UUID
	if sub, err := h.auth.SessionSubject(c.Get(fiber.HeaderAuthorization)); err == nil {
		root, err = h.accounts.ResolveCaller(c.UserContext(), sub)
		switch {
		case err == nil:
			verdict = session.Authenticated
		case !errors.Is(err, services.ErrUserNotFound):
			return respondError(c, err, "session_reconcile")
		}
	}

	decision := h.guard.Decide(local, verdict)
	resp := fiber.Map{
		"action":               decision.Action,
		"refresh_local_belief": decision.RefreshLocalBelief,
		"authenticated":        bool(verdict),
	}
	if decision.RedirectTo != "" {
		resp["redirect_to"] = decision.RedirectTo
	}
	if decision.Message != "" {
		resp["message"] = decision.Message
	}
	if verdict == session.Authenticated {
		resp["unified_user_id"] = root
	}
	return c.JSON(resp)
}
