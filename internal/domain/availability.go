package domain

// AvailabilityRecord 是平台可用时段接口返回的原始记录
// date 字段可能是纯日期，也可能带时间部分，分桶前统一规范化为 DateKey
type AvailabilityRecord struct {
	ID     int64  `json:"id,omitempty"`
	Date   string `json:"date"`
	Period string `json:"period"`
}

// AvailabilityEntry 是桶中的可用时段条目
// 时段被清空为 none 时条目直接删除，不会以 none 的形式存下来
type AvailabilityEntry struct {
	Date     DateKey     `json:"date"`
	Period   PeriodValue `json:"period"`
	RecordID int64       `json:"recordID,omitempty"`
}

// AvailabilityUpdate 是提交给平台的单日更新，Period 为 nil 表示清空该日
type AvailabilityUpdate struct {
	Date   DateKey      `json:"date"`
	Period *PeriodValue `json:"period"`
}
