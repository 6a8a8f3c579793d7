package models

import "time"

// AlertNotification 实时告警推送载荷
// 关键级与高/中级共用结构，关键级额外携带证据图链接
type AlertNotification struct {
	EventID        string    `json:"event_id"`
	PlateNumber    string    `json:"plate_number"`
	DriverState    string    `json:"driver_state"`
	AlertLevel     string    `json:"alert_level"`
	Message        string    `json:"message"`
	MapLink        string    `json:"map_link"`
	SpeedKmh       float64   `json:"speed_kmh"`
	Timestamp      time.Time `json:"timestamp"`
	DriverImageURL string    `json:"driver_image_url,omitempty"`
	RoadImageURL   string    `json:"road_image_url,omitempty"`
}

// VehicleTelemetryUpdate 车辆遥测实时推送载荷
type VehicleTelemetryUpdate struct {
	VehicleID   int64     `json:"vehicle_id"`
	PlateNumber string    `json:"plate_number"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	SpeedKmh    float64   `json:"speed_kmh"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}
