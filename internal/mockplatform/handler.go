package mockplatform

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wyecare/calendar-gateway/internal/config"
	"github.com/wyecare/calendar-gateway/internal/domain"
	"github.com/wyecare/calendar-gateway/internal/push"
	"github.com/wyecare/calendar-gateway/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const userIDCtxKey contextKey = "userID"

// Handler 对外提供和真实平台一致的接口形状，响应统一用 {success, message, data} 包装
type Handler struct {
	cfg         *config.Config
	store       *Store
	pushChannel *amqp.Channel // 为 nil 时跳过推送，方便纯本地运行

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, store *Store, pushChannel *amqp.Channel) *Handler {
	h := &Handler{
		cfg:         cfg,
		store:       store,
		pushChannel: pushChannel,

		Mux: chi.NewRouter(),
	}
	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.Mux.Post("/auth/login", h.Login)

	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/employee", func(r chi.Router) {
			r.Get("/availability", h.ListAvailability)
			r.Post("/availability", h.UpdateAvailability)
			r.Post("/availability/bulk", h.UpdateAvailabilityBulk)
			r.Get("/shift-assignments", h.ListShiftAssignments)
		})
	})

	// 本地联调用：模拟另一台设备改动数据并推送变更事件
	h.Mux.Post("/dev/external-change", h.ExternalChange)
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("写入响应失败", "error", err)
	}
}

func (h *Handler) success(w http.ResponseWriter, msg string, data any) {
	h.writeJSON(w, http.StatusOK, response{Success: true, Message: msg, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusOK, response{Success: false, Message: msg, Data: nil})
}

// Login 校验用户名密码并通过 http-only cookie 返回会话令牌
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "请求格式错误")
		return
	}

	user := h.store.GetUser(req.Username)
	if user == nil {
		h.fail(w, "用户名不存在或密码错误")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.fail(w, "用户名不存在或密码错误")
		return
	}

	expiration := time.Now().Add(time.Duration(h.cfg.JWT.Expiration) * time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiration),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		NotBefore: jwt.NewNumericDate(time.Now()),
		Subject:   strconv.FormatInt(user.ID, 10),
	})
	ss, err := token.SignedString([]byte(h.cfg.JWT.Secret))
	if err != nil {
		h.fail(w, "无法签发令牌")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     domain.SessionCookieName,
		Value:    ss,
		Expires:  expiration,
		Path:     "/",
		HttpOnly: true,
	})

	h.success(w, "登录成功", user)
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(domain.SessionCookieName)
		if err != nil {
			h.fail(w, "用户未登录")
			return
		}

		claims := &jwt.RegisteredClaims{}
		if _, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(h.cfg.JWT.Secret), nil
		}); err != nil {
			h.fail(w, "无效的令牌")
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			h.fail(w, "无效的令牌")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDCtxKey, userID)))
	})
}

func (h *Handler) parseRange(r *http.Request) (domain.DateRange, error) {
	from, err := domain.NormalizeDate(r.URL.Query().Get("from"))
	if err != nil {
		return domain.DateRange{}, err
	}
	to, err := domain.NormalizeDate(r.URL.Query().Get("to"))
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.NewDateRange(from, to)
}

func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDCtxKey).(int64)

	rng, err := h.parseRange(r)
	if err != nil {
		h.fail(w, err.Error())
		return
	}

	h.success(w, "获取可用时段成功", h.store.ListAvailability(userID, rng))
}

func (h *Handler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDCtxKey).(int64)

	var req domain.AvailabilityUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "请求格式错误")
		return
	}

	key, err := domain.NormalizeDate(string(req.Date))
	if err != nil {
		h.fail(w, err.Error())
		return
	}

	h.store.UpsertAvailability(userID, key, req.Period)
	h.success(w, "更新可用时段成功", nil)
}

func (h *Handler) UpdateAvailabilityBulk(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDCtxKey).(int64)

	var req struct {
		Entries []domain.AvailabilityUpdate `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "请求格式错误")
		return
	}

	if err := utils.ValidateUpdates(req.Entries); err != nil {
		h.fail(w, err.Error())
		return
	}

	for _, update := range req.Entries {
		key, err := domain.NormalizeDate(string(update.Date))
		if err != nil {
			h.fail(w, err.Error())
			return
		}
		h.store.UpsertAvailability(userID, key, update.Period)
	}

	h.success(w, "批量更新可用时段成功", nil)
}

func (h *Handler) ListShiftAssignments(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(userIDCtxKey).(int64)

	rng, err := h.parseRange(r)
	if err != nil {
		h.fail(w, err.Error())
		return
	}

	h.success(w, "获取排班成功", h.store.ListShiftAssignments(userID, rng))
}

// ExternalChange 模拟另一台设备修改某个用户的某一天，然后推送变更事件
// 网关收到事件后应该重新拉取并整体重建，而不是应用增量
func (h *Handler) ExternalChange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64  `json:"userID"`
		Date   string `json:"date"`
		Period string `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "请求格式错误")
		return
	}

	key, err := domain.NormalizeDate(req.Date)
	if err != nil {
		h.fail(w, err.Error())
		return
	}
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		h.fail(w, err.Error())
		return
	}

	h.store.UpsertAvailability(req.UserID, key, period.Wire())

	if h.pushChannel != nil {
		event, err := json.Marshal(domain.PushEvent{UserID: req.UserID, Kind: domain.PushKindAvailability})
		if err != nil {
			h.fail(w, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.cfg.RabbitMQ.PublishTimeout)*time.Second)
		defer cancel()

		if err := h.pushChannel.PublishWithContext(
			ctx,
			"",
			push.QueueName,
			true,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        event,
			},
		); err != nil {
			h.fail(w, "推送变更事件失败")
			return
		}
	}

	h.success(w, "已模拟外部修改", nil)
}
