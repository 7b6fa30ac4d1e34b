package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"device-activation/internal/domain"
	"device-activation/internal/usecase"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginHandler(adminUC usecase.AdminUseCase, auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
			return
		}

		acc, err := adminUC.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrInvalidArgument) {
				writeJSON(w, http.StatusUnauthorized, errorResponse("invalid username or password"))
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse("login failed"))
			return
		}

		if _, err := auth.Mint(w, acc.Username); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse("failed to create session"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "login successful"})
	}
}

func logoutHandler(auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth.Clear(w)
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "logged out"})
	}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func changePasswordHandler(adminUC usecase.AdminUseCase, auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := auth.ParseFromRequest(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse("authentication required"))
			return
		}

		var req changePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
			return
		}

		err = adminUC.ChangePassword(r.Context(), claims.Subject, req.OldPassword, req.NewPassword)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "password changed"})
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, errorResponse("old password is incorrect"))
		case errors.Is(err, domain.ErrInvalidArgument):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse("failed to change password"))
		}
	}
}

type configSetRequest struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

type configView struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// systemConfigHandler serves GET (all entries) and PUT (upsert one entry).
func systemConfigHandler(configUC usecase.ConfigUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodGet:
			entries, err := configUC.All(ctx)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResponse("failed to load configuration"))
				return
			}
			views := make([]configView, 0, len(entries))
			for _, e := range entries {
				views = append(views, configView{Key: e.Key, Value: e.Value, Description: e.Description, UpdatedAt: e.UpdatedAt})
			}
			writeJSON(w, http.StatusOK, struct {
				Success bool         `json:"success"`
				Configs []configView `json:"configs"`
			}{true, views})
		case http.MethodPut:
			var req configSetRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
				return
			}
			if err := configUC.Set(ctx, req.Key, req.Value, req.Description); err != nil {
				if errors.Is(err, domain.ErrInvalidArgument) {
					writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
					return
				}
				writeJSON(w, http.StatusInternalServerError, errorResponse("failed to store configuration"))
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "configuration updated"})
		default:
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
		}
	}
}
