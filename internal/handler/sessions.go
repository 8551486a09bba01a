package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wyecare/calendar-gateway/internal/cache"
	"github.com/wyecare/calendar-gateway/internal/calendar"
	"github.com/wyecare/calendar-gateway/internal/config"
	"github.com/wyecare/calendar-gateway/internal/domain"
	"github.com/wyecare/calendar-gateway/internal/upstream"
)

// noticeBoard 收集某个用户的非阻塞提示，读取一次即清空
type noticeBoard struct {
	mu      sync.Mutex
	notices []domain.Notification
}

func (b *noticeBoard) Notify(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, domain.Notification{
		Message:   message,
		CreatedAt: time.Now(),
	})
}

func (b *noticeBoard) Drain() []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.notices
	b.notices = nil
	if drained == nil {
		drained = []domain.Notification{}
	}
	return drained
}

// userSession 是某个登录用户的全部日历状态
// 桶由各自的日历会话持有，不存在跨用户共享，也没有全局单例
type userSession struct {
	fetcher      *upstream.SessionFetcher
	availability *calendar.Session
	shifts       *calendar.ShiftCalendar
	notices      *noticeBoard
}

// Sessions 维护用户 ID 到日历会话的注册表
type Sessions struct {
	cfg    *config.Config
	client *upstream.Client
	cache  *cache.Cache

	mu     sync.Mutex
	byUser map[int64]*userSession
}

func NewSessions(cfg *config.Config, client *upstream.Client, c *cache.Cache) *Sessions {
	return &Sessions{
		cfg:    cfg,
		client: client,
		cache:  c,
		byUser: make(map[int64]*userSession),
	}
}

// For 返回某个用户的日历会话，第一次访问时创建
// 令牌每次都更新，保证上游请求总是带着该用户最新的会话令牌
func (s *Sessions) For(userID int64, token string) *userSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.byUser[userID]; exists {
		sess.fetcher.SetToken(token)
		return sess
	}

	fetcher := upstream.NewSessionFetcher(s.client, s.cache, userID, token)
	notices := &noticeBoard{}
	sess := &userSession{
		fetcher:      fetcher,
		availability: calendar.NewSession(fetcher, fetcher, notices, s.cfg.Calendar.BufferDays),
		shifts:       calendar.NewShiftCalendar(fetcher, s.cfg.Calendar.BufferDays),
		notices:      notices,
	}
	s.byUser[userID] = sess
	return sess
}

// RefreshUser 响应平台的推送事件：先让缓存失效，再强制重建对应的日历
// 用户还没有会话时只失效缓存即可，下次加载自然拿到新数据
func (s *Sessions) RefreshUser(ctx context.Context, userID int64, kind string) {
	s.mu.Lock()
	sess, exists := s.byUser[userID]
	s.mu.Unlock()

	if s.cache != nil {
		tag := upstream.AvailabilityTag(userID)
		if kind == domain.PushKindShifts {
			tag = upstream.ShiftsTag(userID)
		}
		if err := s.cache.InvalidateTag(ctx, tag); err != nil {
			slog.Warn("推送事件触发缓存失效失败", "userID", userID, "error", err)
		}
	}

	if !exists {
		return
	}

	switch kind {
	case domain.PushKindShifts:
		if err := sess.shifts.Refresh(ctx); err != nil {
			slog.Warn("推送事件触发排班重建失败", "userID", userID, "error", err)
		}
	default:
		if err := sess.availability.Refresh(ctx); err != nil {
			slog.Warn("推送事件触发可用时段重建失败", "userID", userID, "error", err)
		}
	}
}
