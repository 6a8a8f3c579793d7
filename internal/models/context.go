package models

// DeviceContext 设备上下文缓存投影（device → vehicle 映射，TTL 约 1 小时）
type DeviceContext struct {
	VehicleID   int64  `json:"vehicle_id"`
	CompanyID   *int64 `json:"company_id,omitempty"`
	OwnerUserID string `json:"owner_user_id,omitempty"`
	PlateNumber string `json:"plate_number"`
	Status      string `json:"status"`
}

// VehicleDetails 车辆详情缓存投影
type VehicleDetails struct {
	VehicleID       int64  `json:"vehicle_id"`
	PlateNumber     string `json:"plate_number"`
	Model           string `json:"model,omitempty"`
	Status          string `json:"status"`
	CurrentDriverID *int64 `json:"current_driver_id,omitempty"`
	CompanyID       *int64 `json:"company_id,omitempty"`
	OwnerUserID     string `json:"owner_user_id,omitempty"`
}

// FamilyMember 驾驶员家属（按告警级别订阅通知）
type FamilyMember struct {
	FullName         string
	Email            string
	Relationship     string
	NotifyOnCritical bool
	NotifyOnHigh     bool
}

// DriverProfile 驾驶员档案（含公司负责人邮箱与家属列表）
type DriverProfile struct {
	DriverID                 int64
	FullName                 string
	Email                    string
	SafetyScore              int
	CompanyID                *int64
	CompanyName              string
	CompanyRepresentativeEmail string
	FamilyMembers            []FamilyMember
}
