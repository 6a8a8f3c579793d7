package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// AlertEmail 告警邮件参数
type AlertEmail struct {
	To          string
	DriverName  string
	PlateNumber string
	Message     string
	DriverState string
	EventID     string
	DeviceID    string

	// 关键级额外字段
	MapLink        string
	SpeedKmh       float64
	DriverImageURL string
	RoadImageURL   string
}

// EmailClient 告警邮件客户端
type EmailClient interface {
	SendHighAlert(ctx context.Context, email AlertEmail) error
	SendCriticalAlert(ctx context.Context, email AlertEmail) error
}

// 邮件模板名
const (
	templateHighAlert     = "safety-high-alert"
	templateCriticalAlert = "safety-critical-alert"
)

// RestEmailClient 通过邮件投递 HTTP API 发送模板邮件
type RestEmailClient struct {
	client *resty.Client
	sender string
	logger *zap.Logger
}

// NewRestEmailClient 创建邮件客户端
func NewRestEmailClient(baseURL, token, sender string, logger *zap.Logger) *RestEmailClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2)
	if token != "" {
		client.SetAuthToken(token)
	}

	return &RestEmailClient{
		client: client,
		sender: sender,
		logger: logger,
	}
}

func (c *RestEmailClient) SendHighAlert(ctx context.Context, email AlertEmail) error {
	return c.send(ctx, templateHighAlert, email.To, map[string]interface{}{
		"driver_name":  email.DriverName,
		"plate_number": email.PlateNumber,
		"message":      email.Message,
		"driver_state": email.DriverState,
		"event_id":     email.EventID,
		"device_id":    email.DeviceID,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *RestEmailClient) SendCriticalAlert(ctx context.Context, email AlertEmail) error {
	return c.send(ctx, templateCriticalAlert, email.To, map[string]interface{}{
		"driver_name":      email.DriverName,
		"plate_number":     email.PlateNumber,
		"message":          email.Message,
		"driver_state":     email.DriverState,
		"event_id":         email.EventID,
		"device_id":        email.DeviceID,
		"map_link":         email.MapLink,
		"speed_kmh":        email.SpeedKmh,
		"driver_image_url": email.DriverImageURL,
		"road_image_url":   email.RoadImageURL,
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *RestEmailClient) send(ctx context.Context, template, to string, data map[string]interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"from":     c.sender,
			"to":       to,
			"template": template,
			"data":     data,
		}).
		Post("/v1/messages")
	if err != nil {
		return fmt.Errorf("failed to call mail API: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mail API returned %s", resp.Status())
	}

	c.logger.Debug("Alert email accepted",
		zap.String("template", template),
		zap.String("to", to),
	)
	return nil
}
