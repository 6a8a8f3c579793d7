package models

import "time"

// SafetyEvent 安全事件（不可变日志记录，event_id 全局唯一）
type SafetyEvent struct {
	EventID     string
	Message     string
	EarValue    *float64
	MarValue    *float64
	HeadYaw     *float64
	DriverState DriverState
	AlertLevel  AlertLevel

	DriverImagePath *string
	RoadImagePath   *string

	// 路况快照（扁平化存储）
	RoadHasHazard       bool
	RoadVehicleCount    int
	RoadPedestrianCount int
	RoadClosestDistance *float64

	Timestamp time.Time

	DeviceID  string
	VehicleID int64
	DriverID  *int64
	CompanyID *int64
	TripID    *string

	// 事件发生时的 GPS/车速快照
	Latitude  float64
	Longitude float64
	SpeedKmh  float64

	CreatedAt time.Time
}

// TripEventStats 行程内安全事件统计
type TripEventStats struct {
	CriticalCount    int
	HighCount        int
	MediumCount      int
	DrowsinessCount  int
	DistractionCount int
}

// TelemetryPoint 车辆遥测点
type TelemetryPoint struct {
	DeviceID  string
	VehicleID int64
	Latitude  float64
	Longitude float64
	SpeedKmh  float64
	EventType string
	Timestamp time.Time
}
