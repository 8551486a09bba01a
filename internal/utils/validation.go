package utils

import (
	"fmt"

	"github.com/wyecare/calendar-gateway/internal/domain"
)

// ValidateWindow 检查可见窗口是否超出允许的最大天数
func ValidateWindow(window domain.DateRange, maxDays int) error {
	days := window.LenDays()
	if days == 0 {
		return fmt.Errorf("无效的日期范围 %s ~ %s", window.From, window.To)
	}
	if days > maxDays {
		return fmt.Errorf("日期范围最多允许 %d 天，当前请求了 %d 天", maxDays, days)
	}
	return nil
}

// ValidateUpdates 检查批量提交的更新是否存在重复日期
// 平台的幂等保证针对单个 (date, period)，同一日期出现两次会让结果不可预期
func ValidateUpdates(updates []domain.AvailabilityUpdate) error {
	seen := make(map[domain.DateKey]bool)
	for _, update := range updates {
		if seen[update.Date] {
			return fmt.Errorf("日期 %s 在提交中出现了多次", update.Date)
		}
		seen[update.Date] = true
	}
	return nil
}
