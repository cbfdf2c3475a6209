package model

import "time"

// Schedule は列車の運行時刻表レコードを表す。
// DepartureTimeとArrivalTimeの前後関係は検証しない。
type Schedule struct {
	ID               string
	TrainNumber      string
	DepartureStation string
	ArrivalStation   string
	DepartureTime    time.Time
	ArrivalTime      time.Time
	Platform         string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
