package calendar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wyecare/calendar-gateway/internal/domain"
)

// 同一日期的更新尚未结束时，再次点选该日期会收到这个错误
var ErrDateUpdating = errors.New("该日期的更新还未完成")

// AvailabilityFetcher 抽象平台的可用时段拉取接口
// Refetch 必须绕过任何缓存拿到权威数据，失败回滚路径依赖这一点
type AvailabilityFetcher interface {
	FetchAvailability(ctx context.Context, rng domain.DateRange) ([]domain.AvailabilityRecord, error)
	RefetchAvailability(ctx context.Context, rng domain.DateRange) ([]domain.AvailabilityRecord, error)
}

// AvailabilityUpdater 抽象平台的可用时段更新接口
// 平台保证对同一 (date, period) 的重复提交是幂等的
type AvailabilityUpdater interface {
	UpdateSingleDate(ctx context.Context, update domain.AvailabilityUpdate) error
	UpdateBulk(ctx context.Context, updates []domain.AvailabilityUpdate) error
}

// Notifier 用来向用户发出非阻塞提示（更新失败后的回滚说明等）
type Notifier interface {
	Notify(message string)
}

// DayView 是渲染方需要的单日视图
type DayView struct {
	Date     domain.DateKey     `json:"date"`
	Period   domain.PeriodValue `json:"period"`
	Updating bool               `json:"updating"`
}

// Session 持有单个用户的可用时段日历状态
// 桶只属于这个会话，不存在跨会话共享，也没有全局单例；
// 重建时整体替换桶，避免重建和乐观修改交错时出现半新半旧的状态
type Session struct {
	fetcher    AvailabilityFetcher
	updater    AvailabilityUpdater
	notifier   Notifier
	bufferDays int

	mu       sync.Mutex
	window   domain.DateRange // 当前可见窗口
	fetched  domain.DateRange // 实际已拉取的范围（可见窗口加缓冲）
	loaded   bool
	bucket   *Bucket[domain.AvailabilityEntry]
	updating map[domain.DateKey]bool
}

func NewSession(fetcher AvailabilityFetcher, updater AvailabilityUpdater, notifier Notifier, bufferDays int) *Session {
	return &Session{
		fetcher:    fetcher,
		updater:    updater,
		notifier:   notifier,
		bufferDays: bufferDays,
		bucket:     newBucket[domain.AvailabilityEntry](),
		updating:   make(map[domain.DateKey]bool),
	}
}

// SetWindow 切换可见窗口
// 新窗口仍落在已拉取的缓冲范围内时不会触发网络请求，
// 缓冲的意义就是让用户前后翻一页不用等待重新拉取
func (s *Session) SetWindow(ctx context.Context, window domain.DateRange) error {
	s.mu.Lock()
	if s.loaded && s.fetched.Contains(window) {
		s.window = window
		s.mu.Unlock()
		return nil
	}
	s.window = window
	s.mu.Unlock()

	return s.Load(ctx)
}

// Load 拉取当前窗口（含缓冲）的权威数据并重建桶
// 拉取失败直接上抛，由调用方整块呈现错误状态，重试只能由用户手动发起
func (s *Session) Load(ctx context.Context) error {
	rng := s.fetchRange()
	records, err := s.fetcher.FetchAvailability(ctx, rng)
	if err != nil {
		return err
	}

	s.applyDataset(rng, records)
	return nil
}

// Refresh 绕过缓存强制重新拉取，回滚路径和平台推送事件都走这里
func (s *Session) Refresh(ctx context.Context) error {
	rng := s.fetchRange()
	records, err := s.fetcher.RefetchAvailability(ctx, rng)
	if err != nil {
		return err
	}

	s.applyDataset(rng, records)
	return nil
}

func (s *Session) fetchRange() domain.DateRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	// 从未设置过窗口时（比如推送事件或刷新请求先于首次加载到达）默认取当前月份
	if s.window == (domain.DateRange{}) {
		s.window = domain.MonthRange(time.Now())
	}
	return s.window.Buffered(s.bufferDays)
}

// applyDataset 用新数据集整体重建桶
// 仍在等待服务端确认的日期保留本地乐观值（包括「已清空」这种没有条目的状态），
// 等对应的更新结束后再由成功路径或回滚路径收敛
func (s *Session) applyDataset(rng domain.DateRange, records []domain.AvailabilityRecord) {
	fresh := RebuildAvailability(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.updating {
		fresh.set(key, s.bucket.Get(key))
	}
	s.bucket = fresh
	s.fetched = rng
	s.loaded = true
}

// Apply 处理一次 day/night 点选：先让本地桶立刻生效，再发起网络更新
// 同一日期同一时刻最多只有一个在途更新，期间对该日期的再次点选直接拒绝；
// 不同日期之间互不影响，可以同时有各自的在途更新
func (s *Session) Apply(ctx context.Context, key domain.DateKey, sub domain.SubPeriod) (domain.PeriodValue, error) {
	next, err := s.beginToggle(key, sub)
	if err != nil {
		return next, err
	}

	if err := s.submit(ctx, key, next); err != nil {
		// 回滚不做本地逆操作：其他端可能已经并发改过数据，本地的前像未必还有效，
		// 所以直接重新拉取权威数据整体重建
		s.notifier.Notify("更新 " + string(key) + " 的可用时段失败，已恢复为服务器数据")
		if rerr := s.Refresh(ctx); rerr != nil {
			slog.Error("回滚时重新拉取权威数据失败", "date", key, "error", rerr)
		}
		return s.Current(key), err
	}

	return next, nil
}

// beginToggle 计算下一个时段值并立刻改写本地桶，同时给日期打上在途标记
func (s *Session) beginToggle(key domain.DateKey, sub domain.SubPeriod) (domain.PeriodValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updating[key] {
		return CurrentPeriod(s.bucket, key), ErrDateUpdating
	}

	next := NextPeriod(CurrentPeriod(s.bucket, key), sub)
	s.updating[key] = true

	if next == domain.PeriodNone {
		s.bucket.remove(key)
	} else {
		s.bucket.set(key, []domain.AvailabilityEntry{{Date: key, Period: next}})
	}

	return next, nil
}

// submit 发起网络更新；无论成败都要解除在途标记，日历绝不能卡死在更新状态
func (s *Session) submit(ctx context.Context, key domain.DateKey, next domain.PeriodValue) error {
	defer s.clearUpdating(key)
	return s.updater.UpdateSingleDate(ctx, domain.AvailabilityUpdate{Date: key, Period: next.Wire()})
}

func (s *Session) clearUpdating(key domain.DateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.updating, key)
}

// ApplyAll 把可见窗口内的全部条目一次性提交给平台（「确认全部改动」场景）
// 缓冲区里的日期不在用户确认的范围内，不随批量提交
// 成功时本地状态即为权威状态；失败时不做部分回滚，同样整体重新拉取
func (s *Session) ApplyAll(ctx context.Context) error {
	s.mu.Lock()
	updates := make([]domain.AvailabilityUpdate, 0)
	for _, key := range s.bucket.Keys() {
		if key < s.window.From || key > s.window.To {
			continue
		}
		period := CurrentPeriod(s.bucket, key)
		updates = append(updates, domain.AvailabilityUpdate{Date: key, Period: period.Wire()})
	}
	s.mu.Unlock()

	if err := s.updater.UpdateBulk(ctx, updates); err != nil {
		s.notifier.Notify("批量确认可用时段失败，已恢复为服务器数据")
		if rerr := s.Refresh(ctx); rerr != nil {
			slog.Error("批量确认回滚时重新拉取权威数据失败", "error", rerr)
		}
		return err
	}

	return nil
}

// Current 返回某一天当前合并后的时段值
func (s *Session) Current(key domain.DateKey) domain.PeriodValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CurrentPeriod(s.bucket, key)
}

// AvailableFor 判断某个半天时段当前是否被标记
func (s *Session) AvailableFor(key domain.DateKey, sub domain.SubPeriod) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return IsAvailableFor(s.bucket, key, sub)
}

// IsUpdating 判断某一天是否有在途更新，驱动渲染方的单格加载指示
func (s *Session) IsUpdating(key domain.DateKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updating[key]
}

// View 按当前可见窗口展开逐日视图
func (s *Session) View() []DayView {
	s.mu.Lock()
	defer s.mu.Unlock()

	days := s.window.Days()
	view := make([]DayView, 0, len(days))
	for _, key := range days {
		view = append(view, DayView{
			Date:     key,
			Period:   CurrentPeriod(s.bucket, key),
			Updating: s.updating[key],
		})
	}
	return view
}
