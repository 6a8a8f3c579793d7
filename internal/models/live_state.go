package models

import "time"

// LiveVehicleState 车辆实时状态（vehicle:{id}:live 哈希的投影）
type LiveVehicleState struct {
	VehicleID     int64     `json:"vehicle_id"`
	PlateNumber   string    `json:"plate_number"`
	Status        string    `json:"status"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	SpeedKmh      float64   `json:"speed_kmh"`
	LastUpdateUtc time.Time `json:"last_update_utc"`
}

// Pagination 分页元数据（总数不受缓存状态影响）
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
}

// FleetLiveStatePage 车队实时状态分页结果
type FleetLiveStatePage struct {
	Items      []LiveVehicleState `json:"items"`
	Pagination Pagination         `json:"pagination"`
}
