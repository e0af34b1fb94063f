package domain

import (
	"time"

	"freightflow/internal/geo"
)

// PodEvent is one proof-of-delivery submission: photo reference, GPS fix
// and device-reported capture time, plus the fraud verdict.
type PodEvent struct {
	ID          string    `json:"id"`
	ShipmentID  string    `json:"shipment_id"`
	DriverID    string    `json:"driver_id"`
	ImageURL    string    `json:"image_url"`
	GPS         geo.Point `json:"gps"`
	DeviceTime  time.Time `json:"device_time"`
	FraudScore  int       `json:"fraud_score"`
	FraudReason string    `json:"fraud_reason"`
	OCRText     string    `json:"ocr_text"`
	IsApproved  bool      `json:"is_approved"`
	CreatedAt   time.Time `json:"created_at"`
}

type SubmitPodInput struct {
	ShipmentID string
	DriverID   string
	ImageURL   string
	GPS        geo.Point
	DeviceTime time.Time
}

// VisionResult is the vision collaborator's verdict on a POD photo.
type VisionResult struct {
	FraudScore    int    `json:"fraud_score"`
	Reason        string `json:"reason"`
	ExtractedText string `json:"extracted_text"`
}
