package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/formwise/authcore"
	"github.com/formwise/authcore/cache"
	"github.com/formwise/authcore/internal/respond"
	"github.com/formwise/authcore/middleware"
)

type handler struct {
	engine *authcore.Engine
	cache  cache.Store
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type hashRequest struct {
	Hash string `json:"hash"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Hash     string `json:"hash"`
	Password string `json:"password"`
}

type accessCheckRequest struct {
	Permission string `json:"permission"`
}

type accessCheckResponse struct {
	Allowed     bool     `json:"allowed"`
	Permissions []string `json:"permissions"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "logged in", res)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req authcore.RegisterInput
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	user, err := h.engine.Register(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "registered, check your inbox", user)
}

func (h *handler) confirmEmail(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.engine.ConfirmEmail(r.Context(), req.Hash); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "email confirmed", nil)
}

func (h *handler) confirmNewEmail(w http.ResponseWriter, r *http.Request) {
	var req hashRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.engine.ConfirmNewEmail(r.Context(), req.Hash); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "email changed", nil)
}

func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.engine.ForgotPassword(r.Context(), req.Email); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "if the address is registered, a reset link is on its way", nil)
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if err := h.engine.ResetPassword(r.Context(), req.Hash, req.Password); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "password reset", nil)
}

// refresh takes the refresh token as a bearer credential.
func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		respond.Error(w, r, authcore.ErrUnauthorized)
		return
	}
	pair, err := h.engine.RefreshToken(r.Context(), token)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "refreshed", pair)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	if err := h.engine.Logout(r.Context(), res.SessionID); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "logged out", nil)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	user, err := h.engine.Me(r.Context(), res.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "", user)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req authcore.UpdateUserInput
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	res, _ := middleware.AuthResultFromContext(r.Context())
	user, err := h.engine.UpdateMe(r.Context(), res.Caller(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "profile updated", user)
}

func (h *handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.engine.ListRoles(r.Context())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "", roles)
}

func (h *handler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.engine.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "", role)
}

func (h *handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req authcore.RoleInput
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	role, err := h.engine.CreateRole(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	h.invalidateRoleList(r)
	respond.JSON(w, http.StatusCreated, "role created", role)
}

func (h *handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req authcore.RoleInput
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	role, err := h.engine.UpdateRole(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	h.invalidateRoleList(r)
	respond.JSON(w, http.StatusOK, "role updated", role)
}

func (h *handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteRole(r.Context(), chi.URLParam(r, "id")); err != nil {
		respond.Error(w, r, err)
		return
	}
	h.invalidateRoleList(r)
	respond.JSON(w, http.StatusOK, "role deleted", nil)
}

func (h *handler) accessCheck(w http.ResponseWriter, r *http.Request) {
	var req accessCheckRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if req.Permission == "" {
		respond.Error(w, r, authcore.Unprocessable("", authcore.FieldError{
			Code: "required", Path: "permission", Message: "permission is required",
		}))
		return
	}
	res, _ := middleware.AuthResultFromContext(r.Context())
	respond.JSON(w, http.StatusOK, "", accessCheckResponse{
		Allowed:     h.engine.HasPermission(res.Roles, req.Permission),
		Permissions: h.engine.Permissions(res.Roles),
	})
}

func (h *handler) invalidateRoleList(r *http.Request) {
	if err := h.cache.Del(r.Context(), rolesListCacheKey); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("roles cache invalidation failed")
	}
}
