package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"brainly-monitor/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RiskRequest 霉菌风险预测请求
// 送入外部模型的是时间窗内的温湿度序列和设备的临界湿度阈值
type RiskRequest struct {
	DeviceID    string    `json:"device_id"`
	Temperature []float64 `json:"temperature"`
	Humidity    []float64 `json:"humidity"`
	CriticalRH  *float64  `json:"critical_rh,omitempty"`
}

// riskResponse 风险预测服务响应
type riskResponse struct {
	Status int                  `json:"status"`
	Msg    string               `json:"msg"`
	Data   *models.RiskForecast `json:"data"`
}

// RiskClient 霉菌风险预测服务客户端
// 模型本身是外部黑盒，这里只负责调用并解包结果
type RiskClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewRiskClient 创建风险预测客户端
func NewRiskClient(baseURL, apiKey string, logger *zap.Logger) *RiskClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &RiskClient{
		httpClient: client,
		logger:     logger,
	}
}

// ForecastMoldRisk 获取当前及 24/48/72 小时霉菌生长风险预测
func (c *RiskClient) ForecastMoldRisk(ctx context.Context, req *RiskRequest) (*models.RiskForecast, error) {
	c.logger.Debug("Calling mold risk forecast API",
		zap.String("device_id", req.DeviceID),
		zap.Int("sample_count", len(req.Humidity)),
	)

	var response riskResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&response).
		Post("/v1/mold-risk/forecast")

	if err != nil {
		c.logger.Error("Mold risk API call failed",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to call mold risk API: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("mold risk API returned HTTP %d", resp.StatusCode())
	}

	if response.Status != 0 {
		c.logger.Error("Mold risk API returned error",
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return nil, fmt.Errorf("mold risk API error: %s (status: %d)", response.Msg, response.Status)
	}

	if response.Data == nil {
		return nil, fmt.Errorf("mold risk API returned empty forecast")
	}

	return response.Data, nil
}
