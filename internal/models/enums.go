package models

import "strings"

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelNone     AlertLevel = "NONE"
	AlertLevelLow      AlertLevel = "LOW"
	AlertLevelMedium   AlertLevel = "MEDIUM"
	AlertLevelHigh     AlertLevel = "HIGH"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

// ParseAlertLevel 解析告警级别字符串（大小写不敏感）
func ParseAlertLevel(s string) (AlertLevel, bool) {
	switch AlertLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case AlertLevelNone:
		return AlertLevelNone, true
	case AlertLevelLow:
		return AlertLevelLow, true
	case AlertLevelMedium:
		return AlertLevelMedium, true
	case AlertLevelHigh:
		return AlertLevelHigh, true
	case AlertLevelCritical:
		return AlertLevelCritical, true
	}
	return AlertLevelNone, false
}

// Valid 是否为合法枚举值
func (l AlertLevel) Valid() bool {
	_, ok := ParseAlertLevel(string(l))
	return ok
}

// ScoreDeduction 安全评分扣分表
func (l AlertLevel) ScoreDeduction() int {
	switch l {
	case AlertLevelCritical:
		return 10
	case AlertLevelHigh:
		return 5
	case AlertLevelMedium:
		return 2
	default:
		return 0
	}
}

func (l AlertLevel) String() string { return string(l) }

// DriverState 驾驶员状态
type DriverState string

const (
	DriverStateAlert            DriverState = "ALERT"
	DriverStateDrowsy           DriverState = "DROWSY"
	DriverStateYawning          DriverState = "YAWNING"
	DriverStateDrowsyYawning    DriverState = "DROWSY_YAWNING"
	DriverStateDistracted       DriverState = "DISTRACTED"
	DriverStateDrowsyDistracted DriverState = "DROWSY_DISTRACTED"
	DriverStateNoFaceDetected   DriverState = "NO_FACE_DETECTED"
)

// ParseDriverState 解析驾驶员状态字符串（大小写不敏感）
func ParseDriverState(s string) (DriverState, bool) {
	switch DriverState(strings.ToUpper(strings.TrimSpace(s))) {
	case DriverStateAlert:
		return DriverStateAlert, true
	case DriverStateDrowsy:
		return DriverStateDrowsy, true
	case DriverStateYawning:
		return DriverStateYawning, true
	case DriverStateDrowsyYawning:
		return DriverStateDrowsyYawning, true
	case DriverStateDistracted:
		return DriverStateDistracted, true
	case DriverStateDrowsyDistracted:
		return DriverStateDrowsyDistracted, true
	case DriverStateNoFaceDetected:
		return DriverStateNoFaceDetected, true
	}
	return DriverStateAlert, false
}

// Valid 是否为合法枚举值
func (s DriverState) Valid() bool {
	_, ok := ParseDriverState(string(s))
	return ok
}

// IsDrowsiness 是否属于疲劳类状态（DROWSY_DISTRACTED 同时计入两类）
func (s DriverState) IsDrowsiness() bool {
	switch s {
	case DriverStateDrowsy, DriverStateYawning, DriverStateDrowsyYawning, DriverStateDrowsyDistracted:
		return true
	}
	return false
}

// IsDistraction 是否属于分心类状态
func (s DriverState) IsDistraction() bool {
	switch s {
	case DriverStateDistracted, DriverStateNoFaceDetected, DriverStateDrowsyDistracted:
		return true
	}
	return false
}

func (s DriverState) String() string { return string(s) }
