package domain

import "fmt"

// PeriodValue 表示一天中被标记的时段：白班、夜班、全天或者没有标记
// both 等价于 day 和 night 的并集，不存在「比 both 更多」的状态
type PeriodValue string

const (
	PeriodNone  PeriodValue = "none"
	PeriodDay   PeriodValue = "day"
	PeriodNight PeriodValue = "night"
	PeriodBoth  PeriodValue = "both"
)

// SubPeriod 是用户能够单独点选的半天时段，只有 day 和 night 两种
type SubPeriod string

const (
	SubPeriodDay   SubPeriod = "day"
	SubPeriodNight SubPeriod = "night"
)

// ParsePeriod 解析平台记录中的时段值，空字符串视为 none
func ParsePeriod(raw string) (PeriodValue, error) {
	switch PeriodValue(raw) {
	case PeriodDay, PeriodNight, PeriodBoth:
		return PeriodValue(raw), nil
	case PeriodNone, "":
		return PeriodNone, nil
	default:
		return "", fmt.Errorf("无效的时段值 %q", raw)
	}
}

func ParseSubPeriod(raw string) (SubPeriod, error) {
	switch SubPeriod(raw) {
	case SubPeriodDay, SubPeriodNight:
		return SubPeriod(raw), nil
	default:
		return "", fmt.Errorf("无效的半天时段 %q", raw)
	}
}

// Wire 返回提交给平台的时段值，none 在平台侧用 null 表示
func (p PeriodValue) Wire() *PeriodValue {
	if p == PeriodNone {
		return nil
	}
	v := p
	return &v
}
