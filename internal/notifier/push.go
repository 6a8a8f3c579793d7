package notifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"aegis-safety/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// PushClient 实时推送客户端
type PushClient interface {
	// PushAlert 向公司组或个人组推送告警
	PushAlert(group string, alert models.AlertNotification) error
	// PushTelemetry 向公司组或个人组推送遥测更新
	PushTelemetry(group string, update models.VehicleTelemetryUpdate) error
}

// CompanyGroup 公司维度的推送组名，如 "company_5"
func CompanyGroup(companyID int64) string {
	return fmt.Sprintf("company_%d", companyID)
}

// UserGroup 个人车主维度的推送组名，如 "user_0ded8209-..."
func UserGroup(ownerUserID string) string {
	return "user_" + strings.ToLower(ownerUserID)
}

// AlertGroup 根据车辆归属选择推送组：公司车辆进公司组，否则进车主个人组。
// 两者都没有时返回空串（无人订阅）。
func AlertGroup(companyID *int64, ownerUserID string) string {
	if companyID != nil {
		return CompanyGroup(*companyID)
	}
	if ownerUserID != "" {
		return UserGroup(ownerUserID)
	}
	return ""
}

// MQTTPushClient 基于 MQTT 主题的推送实现，仪表盘按组名订阅
type MQTTPushClient struct {
	client mqtt.Client
	qos    byte
	logger *zap.Logger
}

// NewMQTTPushClient 创建 MQTT 推送客户端
func NewMQTTPushClient(broker, clientID, username, password string, qos byte, logger *zap.Logger) (*MQTTPushClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTPushClient{
		client: client,
		qos:    qos,
		logger: logger,
	}, nil
}

func (c *MQTTPushClient) PushAlert(group string, alert models.AlertNotification) error {
	return c.publishJSON("fleet/alerts/"+group, alert)
}

func (c *MQTTPushClient) PushTelemetry(group string, update models.VehicleTelemetryUpdate) error {
	return c.publishJSON("fleet/telemetry/"+group, update)
}

func (c *MQTTPushClient) publishJSON(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	token := c.client.Publish(topic, c.qos, false, data)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Close 断开 MQTT 连接
func (c *MQTTPushClient) Close() {
	c.client.Disconnect(250)
}
