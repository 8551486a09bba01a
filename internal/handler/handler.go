package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/wyecare/calendar-gateway/internal/cache"
	"github.com/wyecare/calendar-gateway/internal/config"
	"github.com/wyecare/calendar-gateway/internal/upstream"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	translator ut.Translator
	upstream   *upstream.Client
	cache      *cache.Cache
	sessions   *Sessions

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, client *upstream.Client, c *cache.Cache) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		translator: trans,
		upstream:   client,
		cache:      c,
		sessions:   NewSessions(cfg, client, c),

		Mux: chi.NewRouter(),
	}, nil
}

// Sessions 暴露会话注册表，推送消费者需要用它触发重新拉取
func (h *Handler) SessionRegistry() *Sessions {
	return h.sessions
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 日历相关接口都要求携带平台会话令牌
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/calendar", func(r chi.Router) {
			r.Route("/availability", func(r chi.Router) {
				r.Get("/", h.GetAvailabilityCalendar)
				r.Post("/confirm", h.ConfirmAvailability)
				r.Post("/refresh", h.RefreshAvailability)
				r.Post("/{date}/toggle", h.ToggleAvailability)
			})
			r.Get("/shifts", h.GetShiftCalendar)
			r.Get("/notifications", h.GetNotifications)
		})
	})
}
