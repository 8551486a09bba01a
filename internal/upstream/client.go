package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/wyecare/calendar-gateway/internal/config"
	"github.com/wyecare/calendar-gateway/internal/domain"
)

// PlatformError 表示平台明确拒绝了请求（响应包 success 为 false）
// 和传输层错误区分开：业务拒绝不会被重试，由调用方走回滚路径
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("平台拒绝了请求: %s", e.Message)
}

// Client 是排班平台 REST 接口的 HTTP 客户端
// 传输层失败会自动重试；平台保证更新接口对同一 (date, period) 幂等，
// 所以重试不会产生重复记录。业务层面的拒绝（success=false）从不重试
type Client struct {
	cfg  *config.Config
	http *retryablehttp.Client
}

func NewClient(cfg *config.Config) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.Upstream.RetryMax
	rc.HTTPClient.Timeout = time.Duration(cfg.Upstream.RequestTimeout) * time.Second
	// 重试日志统一走 slog，关掉 retryablehttp 自带的输出
	rc.Logger = nil

	return &Client{
		cfg:  cfg,
		http: rc,
	}
}

// do 发送请求并解码平台统一的 {success, message, data} 响应包
func (c *Client) do(ctx context.Context, token string, method string, path string, body any, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(raw)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.cfg.Upstream.BaseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: domain.SessionCookieName, Value: token})

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("无法解码平台响应: %w", err)
	}

	if !envelope.Success {
		return &PlatformError{Message: envelope.Message}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("无法解码平台响应数据: %w", err)
		}
	}
	return nil
}

func rangeQuery(rng domain.DateRange) string {
	q := url.Values{}
	q.Set("from", string(rng.From))
	q.Set("to", string(rng.To))
	return q.Encode()
}

// FetchAvailability 拉取指定范围（已含缓冲）的可用时段记录
func (c *Client) FetchAvailability(ctx context.Context, token string, rng domain.DateRange) ([]domain.AvailabilityRecord, error) {
	records := make([]domain.AvailabilityRecord, 0)
	if err := c.do(ctx, token, http.MethodGet, "/employee/availability?"+rangeQuery(rng), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FetchShiftAssignments 拉取指定范围的排班记录
func (c *Client) FetchShiftAssignments(ctx context.Context, token string, rng domain.DateRange) ([]domain.ShiftAssignmentRecord, error) {
	records := make([]domain.ShiftAssignmentRecord, 0)
	if err := c.do(ctx, token, http.MethodGet, "/employee/shift-assignments?"+rangeQuery(rng), nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateSingleDate 提交单日可用时段，period 为 null 表示清空该日
func (c *Client) UpdateSingleDate(ctx context.Context, token string, update domain.AvailabilityUpdate) error {
	return c.do(ctx, token, http.MethodPost, "/employee/availability", update, nil)
}

// UpdateBulk 一次性提交一批日期的可用时段
func (c *Client) UpdateBulk(ctx context.Context, token string, updates []domain.AvailabilityUpdate) error {
	body := struct {
		Entries []domain.AvailabilityUpdate `json:"entries"`
	}{Entries: updates}
	return c.do(ctx, token, http.MethodPost, "/employee/availability/bulk", body, nil)
}
