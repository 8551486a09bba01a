package domain

import "time"

// 平台会话 cookie 的名字，网关校验后原样转发给上游
const SessionCookieName = "__wyecare_session_token"

const (
	PushKindAvailability = "availability"
	PushKindShifts       = "shifts"
)

// PushEvent 是平台推送的日历变更事件
// 事件只作为重新拉取权威数据的触发信号，从不携带增量数据，
// 这样就不需要在推送更新和本地乐观状态之间做合并
type PushEvent struct {
	UserID int64  `json:"userID"`
	Kind   string `json:"kind"`
}

// Notification 是呈现给用户的非阻塞提示，比如某次更新失败后的回滚说明
type Notification struct {
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
