package storage

import (
	"fmt"
	"strconv"
	"time"
)

// 存储目录结构常量
const (
	FleetsRoot      = "fleets"
	IndividualsRoot = "individuals"
	EventsFolder    = "events"
)

// EventPath 生成安全事件证据的结构化存储路径。
// 公司车辆归入 fleets/{companyId}，个人车辆归入 individuals/{driverId}，
// 按日期分目录避免单目录文件数失控。
// 例: "fleets/5/events/2025/11/26"
func EventPath(companyID *int64, driverID int64, eventDate time.Time) string {
	var root string
	if companyID != nil {
		root = FleetsRoot + "/" + strconv.FormatInt(*companyID, 10)
	} else {
		root = IndividualsRoot + "/" + strconv.FormatInt(driverID, 10)
	}
	return fmt.Sprintf("%s/%s/%s", root, EventsFolder, eventDate.Format("2006/01/02"))
}

// MapsLink 生成坐标对应的 Google Maps 链接
func MapsLink(latitude, longitude float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s",
		strconv.FormatFloat(latitude, 'f', -1, 64),
		strconv.FormatFloat(longitude, 'f', -1, 64),
	)
}
