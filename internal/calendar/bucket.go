package calendar

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/wyecare/calendar-gateway/internal/domain"
)

// 解析函数返回该错误时表示记录本身没问题，只是不需要进桶（比如时段为 none 的记录）
var errSkipRecord = errors.New("记录无需进桶")

// Bucket 把一段日期范围内的条目按 DateKey 分桶
// 桶总是从平台返回的完整数据集整体重建，从不做增量修补
type Bucket[E any] struct {
	entries map[domain.DateKey][]E
}

func newBucket[E any]() *Bucket[E] {
	return &Bucket[E]{entries: make(map[domain.DateKey][]E)}
}

// rebuild 从平台返回的完整记录列表重建一个新桶
// 结果只取决于输入列表：同一份输入重复重建得到完全一致的桶，
// 且同一天内的条目保持输入顺序，保证多条记录的展示顺序稳定
// 个别解析失败的脏记录直接丢弃并记一条日志，不能让整个日历渲染不出来
func rebuild[R any, E any](records []R, parse func(R) (domain.DateKey, E, error)) *Bucket[E] {
	b := newBucket[E]()
	for _, record := range records {
		key, entry, err := parse(record)
		if err != nil {
			if !errors.Is(err, errSkipRecord) {
				slog.Warn("忽略无法解析的日历记录", "error", err)
			}
			continue
		}
		b.entries[key] = append(b.entries[key], entry)
	}
	return b
}

// Get 返回某一天的全部条目
// 没有数据时返回空切片而不是 nil，调用方不需要区分「没有数据」和「空」
func (b *Bucket[E]) Get(key domain.DateKey) []E {
	if b == nil {
		return []E{}
	}
	entries, exists := b.entries[key]
	if !exists {
		return []E{}
	}
	return entries
}

// Keys 返回桶中所有有条目的日期，升序排列
func (b *Bucket[E]) Keys() []domain.DateKey {
	if b == nil {
		return []domain.DateKey{}
	}
	keys := make([]domain.DateKey, 0, len(b.entries))
	for key := range b.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (b *Bucket[E]) set(key domain.DateKey, entries []E) {
	if len(entries) == 0 {
		delete(b.entries, key)
		return
	}
	b.entries[key] = entries
}

func (b *Bucket[E]) remove(key domain.DateKey) {
	delete(b.entries, key)
}

// RebuildAvailability 把可用时段原始记录分桶
// period 为空（平台用 null 表示 none）的记录不会产生条目
func RebuildAvailability(records []domain.AvailabilityRecord) *Bucket[domain.AvailabilityEntry] {
	return rebuild(records, func(record domain.AvailabilityRecord) (domain.DateKey, domain.AvailabilityEntry, error) {
		key, err := domain.NormalizeDate(record.Date)
		if err != nil {
			return "", domain.AvailabilityEntry{}, err
		}
		period, err := domain.ParsePeriod(record.Period)
		if err != nil {
			return "", domain.AvailabilityEntry{}, err
		}
		if period == domain.PeriodNone {
			// 时段被清空的日期不保留条目
			return "", domain.AvailabilityEntry{}, errSkipRecord
		}
		return key, domain.AvailabilityEntry{Date: key, Period: period, RecordID: record.ID}, nil
	})
}

// RebuildShiftAssignments 把排班原始记录分桶
func RebuildShiftAssignments(records []domain.ShiftAssignmentRecord) *Bucket[domain.ShiftAssignmentEntry] {
	return rebuild(records, func(record domain.ShiftAssignmentRecord) (domain.DateKey, domain.ShiftAssignmentEntry, error) {
		key, err := domain.NormalizeDate(record.Date)
		if err != nil {
			return "", domain.ShiftAssignmentEntry{}, err
		}
		return key, domain.ShiftAssignmentEntry{
			Date:         key,
			Status:       domain.ShiftStatus(record.Status),
			IsNightShift: record.IsNightShift,
			Raw:          record.Raw,
		}, nil
	})
}
