package calendar

import "github.com/wyecare/calendar-gateway/internal/domain"

// CurrentPeriod 返回某一天当前合并后的时段值，没有条目时为 none
func CurrentPeriod(b *Bucket[domain.AvailabilityEntry], key domain.DateKey) domain.PeriodValue {
	entries := b.Get(key)
	if len(entries) == 0 {
		return domain.PeriodNone
	}
	return entries[0].Period
}

// NextPeriod 是 day/night 点选的状态机，纯函数，不做任何 I/O，
// 这样状态转移逻辑可以脱离网络和异步路径单独测试
//
//	当前    点 day  点 night
//	none  → day     night
//	day   → none    both
//	night → both    none
//	both  → night   day
//
// 注意再次点击已激活的单个时段是清空（点选即取消），不是切到 both
func NextPeriod(current domain.PeriodValue, toggled domain.SubPeriod) domain.PeriodValue {
	switch current {
	case domain.PeriodNone:
		if toggled == domain.SubPeriodDay {
			return domain.PeriodDay
		}
		return domain.PeriodNight
	case domain.PeriodDay:
		if toggled == domain.SubPeriodDay {
			return domain.PeriodNone
		}
		return domain.PeriodBoth
	case domain.PeriodNight:
		if toggled == domain.SubPeriodDay {
			return domain.PeriodBoth
		}
		return domain.PeriodNone
	case domain.PeriodBoth:
		if toggled == domain.SubPeriodDay {
			return domain.PeriodNight
		}
		return domain.PeriodDay
	default:
		return domain.PeriodNone
	}
}

// IsAvailableFor 判断某个半天时段当前是否被标记
func IsAvailableFor(b *Bucket[domain.AvailabilityEntry], key domain.DateKey, sub domain.SubPeriod) bool {
	current := CurrentPeriod(b, key)
	return current == domain.PeriodValue(sub) || current == domain.PeriodBoth
}
