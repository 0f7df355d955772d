package models

import "time"

// Order statuses as they appear in the raw dataset
const (
	OrderStatusDelivered   = "delivered"
	OrderStatusShipped     = "shipped"
	OrderStatusProcessing  = "processing"
	OrderStatusCanceled    = "canceled"
	OrderStatusUnavailable = "unavailable"
)

// StatusCategory is the coarse bucket an order status is reported under.
type StatusCategory string

const (
	StatusCompleted  StatusCategory = "Completed"
	StatusInProgress StatusCategory = "In Progress"
	StatusCanceled   StatusCategory = "Canceled"
	StatusOther      StatusCategory = "Other"
)

// Sentinels written for derived values that could not be measured.
const (
	NotYetOccurred = -1.0
	NoDelayKnown   = 0.0
)

// CategorizeStatus maps a raw order status to its category. Matching is exact
// and case-sensitive.
func CategorizeStatus(status string) StatusCategory {
	switch status {
	case OrderStatusDelivered:
		return StatusCompleted
	case OrderStatusShipped, OrderStatusProcessing:
		return StatusInProgress
	case OrderStatusCanceled, OrderStatusUnavailable:
		return StatusCanceled
	default:
		return StatusOther
	}
}

// OrderTimeline holds the parsed order timestamps. A nil field means the raw
// value was missing or unparseable.
type OrderTimeline struct {
	PurchasedAt         *time.Time
	ApprovedAt          *time.Time
	DeliveredCarrierAt  *time.Time
	DeliveredCustomerAt *time.Time
	EstimatedDeliveryAt *time.Time
}

// OrderMetrics are the derived durations before sentinel filling. A nil
// field is unset.
type OrderMetrics struct {
	ProcessingTimeHours   *float64
	ShippingTimeDays      *float64
	DeliveryDelayDays     *float64
	TotalDeliveryTimeDays *float64
}

// OrderFeatures are the derived columns written for an order.
type OrderFeatures struct {
	ProcessingTimeHours   float64
	ShippingTimeDays      float64
	DeliveryDelayDays     float64
	IsLateDelivery        bool
	StatusCategory        StatusCategory
	TotalDeliveryTimeDays float64
}

// DeriveOrderMetrics computes every duration whose inputs are present and
// leaves the rest unset.
func DeriveOrderMetrics(tl OrderTimeline) OrderMetrics {
	var m OrderMetrics
	if tl.ApprovedAt != nil {
		m.ProcessingTimeHours = between(tl.PurchasedAt, tl.ApprovedAt, time.Hour)
	}
	if tl.DeliveredCarrierAt != nil && tl.DeliveredCustomerAt != nil {
		m.ShippingTimeDays = between(tl.DeliveredCarrierAt, tl.DeliveredCustomerAt, 24*time.Hour)
	}
	if tl.DeliveredCustomerAt != nil {
		m.DeliveryDelayDays = between(tl.EstimatedDeliveryAt, tl.DeliveredCustomerAt, 24*time.Hour)
		m.TotalDeliveryTimeDays = between(tl.PurchasedAt, tl.DeliveredCustomerAt, 24*time.Hour)
	}
	return m
}

// between returns (to - from) in units, or nil when either end is missing.
func between(from, to *time.Time, unit time.Duration) *float64 {
	if from == nil || to == nil {
		return nil
	}
	v := to.Sub(*from).Seconds() / unit.Seconds()
	return &v
}

// Resolve replaces unset metrics with their sentinels and derives the
// lateness flag from the filled delay.
func (m OrderMetrics) Resolve(status string) OrderFeatures {
	f := OrderFeatures{
		ProcessingTimeHours:   valueOr(m.ProcessingTimeHours, NotYetOccurred),
		ShippingTimeDays:      valueOr(m.ShippingTimeDays, NotYetOccurred),
		DeliveryDelayDays:     valueOr(m.DeliveryDelayDays, NoDelayKnown),
		StatusCategory:        CategorizeStatus(status),
		TotalDeliveryTimeDays: valueOr(m.TotalDeliveryTimeDays, NotYetOccurred),
	}
	f.IsLateDelivery = f.DeliveryDelayDays > 0
	return f
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
