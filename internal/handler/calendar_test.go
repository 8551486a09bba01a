package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wyecare/calendar-gateway/internal/calendar"
	"github.com/wyecare/calendar-gateway/internal/config"
	"github.com/wyecare/calendar-gateway/internal/domain"
	"github.com/wyecare/calendar-gateway/internal/mockplatform"
	"github.com/wyecare/calendar-gateway/internal/upstream"
)

// testEnv 把模拟平台和网关串起来做端到端测试，不依赖 redis 和 rabbitmq
type testEnv struct {
	cfg      *config.Config
	store    *mockplatform.Store
	platform *httptest.Server
	handler  *Handler
	token    string

	mu             sync.Mutex
	upstreamTokens []string // 平台侧按顺序看到的会话令牌
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Upstream.RequestTimeout = 5
	cfg.Upstream.RetryMax = 1
	cfg.Calendar.BufferDays = 7
	cfg.Calendar.MaxRangeDays = 93
	cfg.JWT.Secret = "测试密钥"
	cfg.JWT.Expiration = 3600

	env := &testEnv{cfg: cfg, store: mockplatform.NewStore()}

	platformMux := mockplatform.NewHandler(cfg, env.store, nil).Mux
	env.platform = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(domain.SessionCookieName); err == nil {
			env.mu.Lock()
			env.upstreamTokens = append(env.upstreamTokens, cookie.Value)
			env.mu.Unlock()
		}
		platformMux.ServeHTTP(w, r)
	}))
	t.Cleanup(env.platform.Close)
	cfg.Upstream.BaseURL = env.platform.URL

	h, err := NewHandler(cfg, upstream.NewClient(cfg), nil)
	if err != nil {
		t.Fatalf("构造网关失败: %v", err)
	}
	h.RegisterRoutes()

	env.handler = h
	env.token = mintToken(t, cfg, 1)
	return env
}

func (e *testEnv) lastUpstreamToken(t *testing.T) string {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.upstreamTokens) == 0 {
		t.Fatal("平台侧还没有收到任何请求")
	}
	return e.upstreamTokens[len(e.upstreamTokens)-1]
}

func mintToken(t *testing.T, cfg *config.Config, userID int64) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Subject:   strconv.FormatInt(userID, 10),
	})
	ss, err := token.SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		t.Fatalf("签发测试令牌失败: %v", err)
	}
	return ss
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do 向网关发一次请求并解码统一响应包，token 为空时不带 cookie
func (e *testEnv) do(t *testing.T, method, target, body, token string) envelope {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: domain.SessionCookieName, Value: token})
	}

	rec := httptest.NewRecorder()
	e.handler.Mux.ServeHTTP(rec, req)

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解码响应失败: %v (body=%s)", err, rec.Body.String())
	}
	return resp
}

func dayViews(t *testing.T, data json.RawMessage) map[domain.DateKey]calendar.DayView {
	t.Helper()

	var views []calendar.DayView
	if err := json.Unmarshal(data, &views); err != nil {
		t.Fatalf("解码逐日视图失败: %v", err)
	}
	byDate := make(map[domain.DateKey]calendar.DayView, len(views))
	for _, v := range views {
		byDate[v.Date] = v
	}
	return byDate
}

func shiftViews(t *testing.T, data json.RawMessage) []calendar.ShiftDayView {
	t.Helper()

	var views []calendar.ShiftDayView
	if err := json.Unmarshal(data, &views); err != nil {
		t.Fatalf("解码排班视图失败: %v", err)
	}
	return views
}

func TestGateway_GetAndToggleAvailability(t *testing.T) {
	env := newTestEnv(t)
	day := domain.PeriodDay
	env.store.UpsertAvailability(1, "2024-06-10", &day)

	// 初次加载
	resp := env.do(t, http.MethodGet, "/calendar/availability?from=2024-06-01&to=2024-06-30", "", env.token)
	if !resp.Success {
		t.Fatalf("加载日历失败: %s", resp.Message)
	}
	views := dayViews(t, resp.Data)
	if len(views) != 30 {
		t.Fatalf("期望 30 天的视图, 实际 %d 天", len(views))
	}
	if views["2024-06-10"].Period != domain.PeriodDay {
		t.Fatalf("期望 2024-06-10 是 day, 实际 %s", views["2024-06-10"].Period)
	}
	if views["2024-06-11"].Period != domain.PeriodNone {
		t.Fatal("没有记录的日期应该是 none")
	}

	// day 上点选 night 变成 both，且平台侧同步更新
	resp = env.do(t, http.MethodPost, "/calendar/availability/2024-06-10/toggle", `{"subPeriod":"night"}`, env.token)
	if !resp.Success {
		t.Fatalf("点选失败: %s", resp.Message)
	}
	var view calendar.DayView
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("解码单日视图失败: %v", err)
	}
	if view.Period != domain.PeriodBoth {
		t.Fatalf("期望 both, 实际 %s", view.Period)
	}

	rng := domain.DateRange{From: "2024-06-01", To: "2024-06-30"}
	records := env.store.ListAvailability(1, rng)
	if len(records) != 1 || records[0].Period != "both" {
		t.Fatalf("平台侧的记录没有同步成 both: %+v", records)
	}

	// both 上点选 both 不存在，再点 day 应该剩下 night
	resp = env.do(t, http.MethodPost, "/calendar/availability/2024-06-10/toggle", `{"subPeriod":"day"}`, env.token)
	if !resp.Success {
		t.Fatalf("点选失败: %s", resp.Message)
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("解码单日视图失败: %v", err)
	}
	if view.Period != domain.PeriodNight {
		t.Fatalf("期望 night, 实际 %s", view.Period)
	}

	// night 上再点 night 清空，平台侧记录被删除
	resp = env.do(t, http.MethodPost, "/calendar/availability/2024-06-10/toggle", `{"subPeriod":"night"}`, env.token)
	if !resp.Success {
		t.Fatalf("点选失败: %s", resp.Message)
	}
	if records := env.store.ListAvailability(1, rng); len(records) != 0 {
		t.Fatalf("清空后平台侧不应该还有记录: %+v", records)
	}
}

func TestGateway_AuthAndValidation(t *testing.T) {
	env := newTestEnv(t)

	// 未登录
	resp := env.do(t, http.MethodGet, "/calendar/availability?from=2024-06-01&to=2024-06-30", "", "")
	if resp.Success || resp.Message != "用户未登录" {
		t.Fatalf("期望未登录被拒绝, 实际 %+v", resp)
	}

	// 无效令牌
	resp = env.do(t, http.MethodGet, "/calendar/availability?from=2024-06-01&to=2024-06-30", "", "垃圾令牌")
	if resp.Success || resp.Message != "无效的令牌" {
		t.Fatalf("期望无效令牌被拒绝, 实际 %+v", resp)
	}

	// 非法的半天时段
	resp = env.do(t, http.MethodPost, "/calendar/availability/2024-06-10/toggle", `{"subPeriod":"afternoon"}`, env.token)
	if resp.Success {
		t.Fatal("非法的半天时段应该被拒绝")
	}

	// 非法的日期
	resp = env.do(t, http.MethodPost, "/calendar/availability/垃圾/toggle", `{"subPeriod":"day"}`, env.token)
	if resp.Success {
		t.Fatal("非法的日期应该被拒绝")
	}

	// 超出最大天数的窗口
	resp = env.do(t, http.MethodGet, "/calendar/availability?from=2024-01-01&to=2024-12-31", "", env.token)
	if resp.Success {
		t.Fatal("超出最大天数的窗口应该被拒绝")
	}
}

func TestGateway_RefreshPicksUpExternalChange(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/calendar/availability?from=2024-06-01&to=2024-06-30", "", env.token)
	if !resp.Success {
		t.Fatalf("加载日历失败: %s", resp.Message)
	}
	if dayViews(t, resp.Data)["2024-06-15"].Period != domain.PeriodNone {
		t.Fatal("初始状态 2024-06-15 应该是 none")
	}

	// 模拟另一台设备在平台侧改动数据
	night := domain.PeriodNight
	env.store.UpsertAvailability(1, "2024-06-15", &night)

	// 强制刷新后整体重建，新值出现在视图里
	resp = env.do(t, http.MethodPost, "/calendar/availability/refresh", "", env.token)
	if !resp.Success {
		t.Fatalf("刷新失败: %s", resp.Message)
	}
	if dayViews(t, resp.Data)["2024-06-15"].Period != domain.PeriodNight {
		t.Fatal("刷新后应该看到外部改动的 night")
	}
}

func TestGateway_RefreshBeforeLoad(t *testing.T) {
	env := newTestEnv(t)

	// 会话还没加载过任何窗口时刷新应该默认当前月份，而不是用空范围请求上游
	resp := env.do(t, http.MethodPost, "/calendar/availability/refresh", "", env.token)
	if !resp.Success {
		t.Fatalf("首次请求就刷新应该成功: %s", resp.Message)
	}
	views := dayViews(t, resp.Data)
	if len(views) != domain.MonthRange(time.Now()).LenDays() {
		t.Fatalf("默认窗口应该覆盖当前月份, 实际 %d 天", len(views))
	}
}

func TestGateway_ConfirmAvailability(t *testing.T) {
	env := newTestEnv(t)
	day := domain.PeriodDay
	env.store.UpsertAvailability(1, "2024-06-10", &day)

	resp := env.do(t, http.MethodGet, "/calendar/availability?from=2024-06-01&to=2024-06-30", "", env.token)
	if !resp.Success {
		t.Fatalf("加载日历失败: %s", resp.Message)
	}

	resp = env.do(t, http.MethodPost, "/calendar/availability/confirm", "", env.token)
	if !resp.Success {
		t.Fatalf("批量确认失败: %s", resp.Message)
	}
	if dayViews(t, resp.Data)["2024-06-10"].Period != domain.PeriodDay {
		t.Fatal("批量确认后视图应该保持不变")
	}
}

func TestGateway_ShiftCalendar(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetShiftAssignments(1, []domain.ShiftAssignmentRecord{
		{ID: 1, Date: "2024-06-10", Status: "completed"},
		{ID: 2, Date: "2024-06-10", Status: "pending", IsNightShift: true},
		{ID: 3, Date: "2024-06-12", Status: "completed"},
	})

	resp := env.do(t, http.MethodGet, "/calendar/shifts?from=2024-06-01&to=2024-06-30", "", env.token)
	if !resp.Success {
		t.Fatalf("加载排班日历失败: %s", resp.Message)
	}

	var views []calendar.ShiftDayView
	if err := json.Unmarshal(resp.Data, &views); err != nil {
		t.Fatalf("解码排班视图失败: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("期望 2 天有排班, 实际 %d 天", len(views))
	}
	if views[0].Date != "2024-06-10" || views[0].Status != domain.DayShiftMixed {
		t.Fatalf("2024-06-10 的聚合状态不对: %+v", views[0])
	}
	if views[1].Status != domain.DayShiftCompleted {
		t.Fatalf("2024-06-12 的聚合状态不对: %+v", views[1])
	}
}

func TestGateway_FailedToggleLeavesNotification(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/calendar/availability?from=2024-06-01&to=2024-06-30", "", env.token)
	if !resp.Success {
		t.Fatalf("加载日历失败: %s", resp.Message)
	}

	// 平台下线后更新必然失败，网关应该回滚并留下一条提示
	env.platform.Close()

	resp = env.do(t, http.MethodPost, "/calendar/availability/2024-06-10/toggle", `{"subPeriod":"day"}`, env.token)
	if resp.Success {
		t.Fatal("平台不可达时点选不应该成功")
	}

	resp = env.do(t, http.MethodGet, "/calendar/notifications", "", env.token)
	if !resp.Success {
		t.Fatalf("获取通知失败: %s", resp.Message)
	}
	var notices []domain.Notification
	if err := json.Unmarshal(resp.Data, &notices); err != nil {
		t.Fatalf("解码通知失败: %v", err)
	}
	if len(notices) != 1 {
		t.Fatalf("期望 1 条回滚提示, 实际 %d 条", len(notices))
	}

	// 通知读取一次即清空
	resp = env.do(t, http.MethodGet, "/calendar/notifications", "", env.token)
	if err := json.Unmarshal(resp.Data, &notices); err != nil {
		t.Fatalf("解码通知失败: %v", err)
	}
	if len(notices) != 0 {
		t.Fatalf("第二次读取应该为空, 实际 %d 条", len(notices))
	}
}
