package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/wyecare/calendar-gateway/internal/domain"
)

// ShiftFetcher 抽象平台的排班拉取接口
type ShiftFetcher interface {
	FetchShiftAssignments(ctx context.Context, rng domain.DateRange) ([]domain.ShiftAssignmentRecord, error)
	RefetchShiftAssignments(ctx context.Context, rng domain.DateRange) ([]domain.ShiftAssignmentRecord, error)
}

// ShiftDayView 是排班日历的单日视图，Status 每次从桶里现算，不缓存
type ShiftDayView struct {
	Date    domain.DateKey                `json:"date"`
	Entries []domain.ShiftAssignmentEntry `json:"entries"`
	Status  domain.DayShiftStatus         `json:"status"`
}

// ShiftCalendar 是排班日历会话
// 排班记录对网关完全只读，没有乐观修改，也就没有在途标记和回滚路径
type ShiftCalendar struct {
	fetcher    ShiftFetcher
	bufferDays int

	mu      sync.Mutex
	window  domain.DateRange
	fetched domain.DateRange
	loaded  bool
	bucket  *Bucket[domain.ShiftAssignmentEntry]
}

func NewShiftCalendar(fetcher ShiftFetcher, bufferDays int) *ShiftCalendar {
	return &ShiftCalendar{
		fetcher:    fetcher,
		bufferDays: bufferDays,
		bucket:     newBucket[domain.ShiftAssignmentEntry](),
	}
}

// SetWindow 切换可见窗口，窗口仍在已拉取缓冲范围内时不触发网络请求
func (c *ShiftCalendar) SetWindow(ctx context.Context, window domain.DateRange) error {
	c.mu.Lock()
	if c.loaded && c.fetched.Contains(window) {
		c.window = window
		c.mu.Unlock()
		return nil
	}
	c.window = window
	c.mu.Unlock()

	return c.Load(ctx)
}

func (c *ShiftCalendar) Load(ctx context.Context) error {
	rng := c.fetchRange()
	records, err := c.fetcher.FetchShiftAssignments(ctx, rng)
	if err != nil {
		return err
	}

	c.applyDataset(rng, records)
	return nil
}

// Refresh 绕过缓存强制重新拉取，平台推送排班变更时走这里
func (c *ShiftCalendar) Refresh(ctx context.Context) error {
	rng := c.fetchRange()
	records, err := c.fetcher.RefetchShiftAssignments(ctx, rng)
	if err != nil {
		return err
	}

	c.applyDataset(rng, records)
	return nil
}

func (c *ShiftCalendar) fetchRange() domain.DateRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 和可用时段会话一样，窗口从未设置时默认取当前月份
	if c.window == (domain.DateRange{}) {
		c.window = domain.MonthRange(time.Now())
	}
	return c.window.Buffered(c.bufferDays)
}

func (c *ShiftCalendar) applyDataset(rng domain.DateRange, records []domain.ShiftAssignmentRecord) {
	fresh := RebuildShiftAssignments(records)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bucket = fresh
	c.fetched = rng
	c.loaded = true
}

// Get 返回某一天的全部排班条目
func (c *ShiftCalendar) Get(key domain.DateKey) []domain.ShiftAssignmentEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bucket.Get(key)
}

// View 按当前可见窗口展开逐日视图，只包含有排班的日期
func (c *ShiftCalendar) View() []ShiftDayView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := make([]ShiftDayView, 0)
	for _, key := range c.window.Days() {
		entries := c.bucket.Get(key)
		if len(entries) == 0 {
			continue
		}
		view = append(view, ShiftDayView{
			Date:    key,
			Entries: entries,
			Status:  domain.AggregateDayStatus(entries),
		})
	}
	return view
}
