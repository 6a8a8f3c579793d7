package models

import "time"

// eventTimestampLayout 设备端时间戳格式，如 "Dec06_2025_04h03m11s"
const eventTimestampLayout = "Jan02_2006_15h04m05s"

// RoadStatusInfo 队列消息中的路况信息
type RoadStatusInfo struct {
	HasHazard             bool    `json:"has_hazard"`
	VehicleCount          int     `json:"vehicle_count"`
	PedestrianCount       int     `json:"pedestrian_count"`
	ClosestObjectDistance float64 `json:"closest_object_distance"`
}

// EventMessage 安全事件队列消息体（两条严重级别队列共用同一结构）
type EventMessage struct {
	EventID     string `json:"event_id"`
	Timestamp   string `json:"timestamp"`
	DeviceID    string `json:"device_id"`
	VehicleID   int64  `json:"vehicle_id"`
	DriverState string `json:"state"`
	AlertLevel  string `json:"alert_level"`
	Message     string `json:"message"`

	// 指标字段可选，缺省时保持 nil（落库为 NULL 而非 0）
	EarValue *float64 `json:"ear"`
	MarValue *float64 `json:"mar"`
	HeadYaw  *float64 `json:"head_yaw"`

	DriverImagePath string          `json:"driver_image"`
	RoadImagePath   string          `json:"road_image"`
	RoadStatus      *RoadStatusInfo `json:"road_status"`
}

// ParsedTimestamp 解析设备端时间戳，解析失败时回退到当前时间
func (m *EventMessage) ParsedTimestamp() time.Time {
	return parseDeviceTimestamp(m.Timestamp)
}

// TelemetryMessage 遥测队列消息体
type TelemetryMessage struct {
	DeviceID  string  `json:"device_id"`
	Timestamp string  `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SpeedKmh  float64 `json:"speed_kmh"`
	EventType string  `json:"event_type"`
}

// ParsedTimestamp 解析设备端时间戳，解析失败时回退到当前时间
func (m *TelemetryMessage) ParsedTimestamp() time.Time {
	return parseDeviceTimestamp(m.Timestamp)
}

func parseDeviceTimestamp(value string) time.Time {
	if ts, err := time.Parse(eventTimestampLayout, value); err == nil {
		return ts
	}
	return time.Now().UTC()
}
