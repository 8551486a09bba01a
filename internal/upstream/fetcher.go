package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wyecare/calendar-gateway/internal/cache"
	"github.com/wyecare/calendar-gateway/internal/domain"
)

// AvailabilityTag 返回某个用户可用时段缓存的标签名
func AvailabilityTag(userID int64) string {
	return fmt.Sprintf("availability_%d", userID)
}

// ShiftsTag 返回某个用户排班缓存的标签名
func ShiftsTag(userID int64) string {
	return fmt.Sprintf("shifts_%d", userID)
}

// SessionFetcher 按用户会话组合上游客户端和 redis 缓存，
// 实现日历会话需要的拉取与更新接口
//
// Fetch 优先读缓存；Refetch 绕过缓存并用新结果覆盖；
// 缓存本身故障时退化为直接拉取，绝不因为缓存问题让日历加载失败
type SessionFetcher struct {
	client *Client
	cache  *cache.Cache
	userID int64

	mu    sync.Mutex
	token string
}

func NewSessionFetcher(client *Client, c *cache.Cache, userID int64, token string) *SessionFetcher {
	return &SessionFetcher{
		client: client,
		cache:  c,
		userID: userID,
		token:  token,
	}
}

// SetToken 替换转发给上游的会话令牌
// 用户带着新签发的令牌再次访问时必须调用，否则旧令牌过期后所有上游请求都会失败
func (f *SessionFetcher) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *SessionFetcher) sessionToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *SessionFetcher) availabilityKey(rng domain.DateRange) string {
	return fmt.Sprintf("availability_%d_%s_%s", f.userID, rng.From, rng.To)
}

func (f *SessionFetcher) shiftsKey(rng domain.DateRange) string {
	return fmt.Sprintf("shifts_%d_%s_%s", f.userID, rng.From, rng.To)
}

func (f *SessionFetcher) FetchAvailability(ctx context.Context, rng domain.DateRange) ([]domain.AvailabilityRecord, error) {
	records := make([]domain.AvailabilityRecord, 0)

	if f.cache != nil {
		hit, err := f.cache.Get(ctx, f.availabilityKey(rng), &records)
		if err != nil {
			slog.Warn("读取可用时段缓存失败，改为直接拉取", "error", err)
		} else if hit {
			return records, nil
		}
	}

	return f.RefetchAvailability(ctx, rng)
}

// RefetchAvailability 绕过缓存强制拉取，并用权威结果覆盖缓存
func (f *SessionFetcher) RefetchAvailability(ctx context.Context, rng domain.DateRange) ([]domain.AvailabilityRecord, error) {
	records, err := f.client.FetchAvailability(ctx, f.sessionToken(), rng)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, AvailabilityTag(f.userID), f.availabilityKey(rng), records); err != nil {
			slog.Warn("写入可用时段缓存失败", "error", err)
		}
	}
	return records, nil
}

func (f *SessionFetcher) FetchShiftAssignments(ctx context.Context, rng domain.DateRange) ([]domain.ShiftAssignmentRecord, error) {
	records := make([]domain.ShiftAssignmentRecord, 0)

	if f.cache != nil {
		hit, err := f.cache.Get(ctx, f.shiftsKey(rng), &records)
		if err != nil {
			slog.Warn("读取排班缓存失败，改为直接拉取", "error", err)
		} else if hit {
			return records, nil
		}
	}

	return f.RefetchShiftAssignments(ctx, rng)
}

func (f *SessionFetcher) RefetchShiftAssignments(ctx context.Context, rng domain.DateRange) ([]domain.ShiftAssignmentRecord, error) {
	records, err := f.client.FetchShiftAssignments(ctx, f.sessionToken(), rng)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, ShiftsTag(f.userID), f.shiftsKey(rng), records); err != nil {
			slog.Warn("写入排班缓存失败", "error", err)
		}
	}
	return records, nil
}

// UpdateSingleDate 提交单日更新，成功后让该用户的可用时段缓存整体失效
func (f *SessionFetcher) UpdateSingleDate(ctx context.Context, update domain.AvailabilityUpdate) error {
	if err := f.client.UpdateSingleDate(ctx, f.sessionToken(), update); err != nil {
		return err
	}

	f.invalidateAvailability(ctx)
	return nil
}

// UpdateBulk 批量提交更新，成功后同样让可用时段缓存失效
func (f *SessionFetcher) UpdateBulk(ctx context.Context, updates []domain.AvailabilityUpdate) error {
	if err := f.client.UpdateBulk(ctx, f.sessionToken(), updates); err != nil {
		return err
	}

	f.invalidateAvailability(ctx)
	return nil
}

func (f *SessionFetcher) invalidateAvailability(ctx context.Context) {
	if f.cache == nil {
		return
	}
	if err := f.cache.InvalidateTag(ctx, AvailabilityTag(f.userID)); err != nil {
		slog.Warn("按标签失效可用时段缓存失败", "error", err)
	}
}
