package domain

import (
	"fmt"
	"time"
)

// DateKey 是规范化后的日历日期（YYYY-MM-DD），作为分桶的唯一键
// 规范化时丢弃时分秒和时区偏移：同一个本地日历日的两个时间戳必须得到相同的键
type DateKey string

const dateKeyLayout = "2006-01-02"

// NormalizeDate 把原始记录中的 date 字段规范化为 DateKey
// 纯日期字符串不做任何时区转换；带时间部分的先转换到本地时区再取日期
func NormalizeDate(raw string) (DateKey, error) {
	if t, err := time.Parse(dateKeyLayout, raw); err == nil {
		return DateKey(t.Format(dateKeyLayout)), nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "", fmt.Errorf("无法解析日期 %q", raw)
	}

	return DateKey(t.In(time.Local).Format(dateKeyLayout)), nil
}

// DateKeyOf 取某个时间点对应的本地日历日期
func DateKeyOf(t time.Time) DateKey {
	return DateKey(t.In(time.Local).Format(dateKeyLayout))
}

// Time 把 DateKey 解析回当天零点（无时区含义，统一用 UTC 表示）
func (k DateKey) Time() (time.Time, error) {
	t, err := time.Parse(dateKeyLayout, string(k))
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的日期键 %q", string(k))
	}
	return t, nil
}

// DateRange 表示一段闭区间的日历日期范围
type DateRange struct {
	From DateKey `json:"from"`
	To   DateKey `json:"to"`
}

func NewDateRange(from, to DateKey) (DateRange, error) {
	fromTime, err := from.Time()
	if err != nil {
		return DateRange{}, err
	}
	toTime, err := to.Time()
	if err != nil {
		return DateRange{}, err
	}
	if fromTime.After(toTime) {
		return DateRange{}, fmt.Errorf("起始日期 %s 不能晚于结束日期 %s", from, to)
	}

	return DateRange{From: from, To: to}, nil
}

// MonthRange 返回某个时间点所在月份的完整范围
func MonthRange(t time.Time) DateRange {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DateRange{From: DateKey(first.Format(dateKeyLayout)), To: DateKey(last.Format(dateKeyLayout))}
}

// Buffered 把范围向前后各扩展 days 天
func (r DateRange) Buffered(days int) DateRange {
	fromTime, err := r.From.Time()
	if err != nil {
		return r
	}
	toTime, err := r.To.Time()
	if err != nil {
		return r
	}

	return DateRange{
		From: DateKey(fromTime.AddDate(0, 0, -days).Format(dateKeyLayout)),
		To:   DateKey(toTime.AddDate(0, 0, days).Format(dateKeyLayout)),
	}
}

// Contains 判断 other 是否完全落在当前范围内
func (r DateRange) Contains(other DateRange) bool {
	return r.From <= other.From && other.To <= r.To
}

// Days 按顺序展开范围内的每一天
func (r DateRange) Days() []DateKey {
	fromTime, err := r.From.Time()
	if err != nil {
		return []DateKey{}
	}
	toTime, err := r.To.Time()
	if err != nil {
		return []DateKey{}
	}

	days := make([]DateKey, 0)
	for t := fromTime; !t.After(toTime); t = t.AddDate(0, 0, 1) {
		days = append(days, DateKey(t.Format(dateKeyLayout)))
	}
	return days
}

// LenDays 返回范围覆盖的天数，范围非法时返回 0
func (r DateRange) LenDays() int {
	fromTime, err := r.From.Time()
	if err != nil {
		return 0
	}
	toTime, err := r.To.Time()
	if err != nil {
		return 0
	}
	return int(toTime.Sub(fromTime).Hours()/24) + 1
}
