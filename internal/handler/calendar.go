package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wyecare/calendar-gateway/internal/calendar"
	"github.com/wyecare/calendar-gateway/internal/domain"
	"github.com/wyecare/calendar-gateway/internal/upstream"
	"github.com/wyecare/calendar-gateway/internal/utils"
)

func (h *Handler) session(r *http.Request) *userSession {
	userID := r.Context().Value(UserIDCtxKey).(int64)
	token := r.Context().Value(TokenCtxKey).(string)
	return h.sessions.For(userID, token)
}

// parseWindow 解析 from/to 查询参数，缺省时取当前月份
func (h *Handler) parseWindow(r *http.Request) (domain.DateRange, error) {
	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")

	if fromParam == "" && toParam == "" {
		return domain.MonthRange(time.Now()), nil
	}

	from, err := domain.NormalizeDate(fromParam)
	if err != nil {
		return domain.DateRange{}, err
	}
	to, err := domain.NormalizeDate(toParam)
	if err != nil {
		return domain.DateRange{}, err
	}

	window, err := domain.NewDateRange(from, to)
	if err != nil {
		return domain.DateRange{}, err
	}

	if err := utils.ValidateWindow(window, h.config.Calendar.MaxRangeDays); err != nil {
		return domain.DateRange{}, err
	}
	return window, nil
}

func (h *Handler) GetAvailabilityCalendar(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseWindow(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	sess := h.session(r)
	if err := sess.availability.SetWindow(r.Context(), window); err != nil {
		// 加载失败整块呈现错误状态，重试由用户再次请求发起，不做自动重试
		h.errorResponse(w, r, "无法获取可用时段数据，请稍后重试")
		return
	}

	h.successResponse(w, r, "获取可用时段日历成功", sess.availability.View())
}

func (h *Handler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	dateParam := chi.URLParam(r, "date")
	key, err := domain.NormalizeDate(dateParam)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	var req struct {
		SubPeriod string `json:"subPeriod" validate:"required,oneof=day night"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	sub, err := domain.ParseSubPeriod(req.SubPeriod)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	sess := h.session(r)
	period, err := sess.availability.Apply(r.Context(), key, sub)
	if err != nil {
		switch {
		case errors.Is(err, calendar.ErrDateUpdating):
			h.errorResponse(w, r, "该日期正在更新中，请稍候再试")
		default:
			// 乐观修改已经回滚，把回滚后的权威值一并返回
			var platformErr *upstream.PlatformError
			if errors.As(err, &platformErr) {
				h.writeJSON(w, r, http.StatusOK, Response{
					Success: false,
					Message: "更新失败，已恢复为服务器数据",
					Data:    calendar.DayView{Date: key, Period: period},
				})
				return
			}
			h.errorResponse(w, r, "更新失败，已恢复为服务器数据")
		}
		return
	}

	h.successResponse(w, r, "更新可用时段成功", calendar.DayView{Date: key, Period: period})
}

func (h *Handler) ConfirmAvailability(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if err := sess.availability.ApplyAll(r.Context()); err != nil {
		h.errorResponse(w, r, "批量确认失败，已恢复为服务器数据")
		return
	}

	h.successResponse(w, r, "批量确认可用时段成功", sess.availability.View())
}

func (h *Handler) RefreshAvailability(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if err := sess.availability.Refresh(r.Context()); err != nil {
		h.errorResponse(w, r, "刷新可用时段数据失败，请稍后重试")
		return
	}

	h.successResponse(w, r, "刷新可用时段数据成功", sess.availability.View())
}

func (h *Handler) GetShiftCalendar(w http.ResponseWriter, r *http.Request) {
	window, err := h.parseWindow(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	sess := h.session(r)
	if err := sess.shifts.SetWindow(r.Context(), window); err != nil {
		h.errorResponse(w, r, "无法获取排班数据，请稍后重试")
		return
	}

	h.successResponse(w, r, "获取排班日历成功", sess.shifts.View())
}

func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	h.successResponse(w, r, "获取通知成功", sess.notices.Drain())
}
