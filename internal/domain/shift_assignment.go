package domain

import "encoding/json"

type ShiftStatus string

const (
	ShiftStatusPending   ShiftStatus = "pending"
	ShiftStatusApproved  ShiftStatus = "approved"
	ShiftStatusRejected  ShiftStatus = "rejected"
	ShiftStatusCompleted ShiftStatus = "completed"
)

// ShiftAssignmentRecord 是平台排班接口返回的原始记录
// Raw 保留整条服务端记录，渲染方按需透传使用，网关不理解其内容
type ShiftAssignmentRecord struct {
	ID           int64           `json:"id"`
	Date         string          `json:"date"`
	Status       string          `json:"status"`
	IsNightShift bool            `json:"isNightShift"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// ShiftAssignmentEntry 是桶中的排班条目，对网关而言完全只读，从不做乐观修改
type ShiftAssignmentEntry struct {
	Date         DateKey         `json:"date"`
	Status       ShiftStatus     `json:"status"`
	IsNightShift bool            `json:"isNightShift"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// DayShiftStatus 是某一天所有排班的聚合状态
type DayShiftStatus string

const (
	DayShiftCompleted DayShiftStatus = "completed"
	DayShiftPending   DayShiftStatus = "pending"
	DayShiftMixed     DayShiftStatus = "mixed"
)

// AggregateDayStatus 计算某一天排班的聚合状态：
// 全部完成为 completed，一个都没完成为 pending，其余情况为 mixed
// 该值在每次重建桶之后重新计算，不单独缓存，避免和桶内数据脱节
func AggregateDayStatus(entries []ShiftAssignmentEntry) DayShiftStatus {
	completed := 0
	for _, entry := range entries {
		if entry.Status == ShiftStatusCompleted {
			completed++
		}
	}

	switch {
	case len(entries) > 0 && completed == len(entries):
		return DayShiftCompleted
	case completed == 0:
		return DayShiftPending
	default:
		return DayShiftMixed
	}
}
