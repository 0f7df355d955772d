package cleaning

import (
	"time"

	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// Order columns read from the input
const (
	ColOrderStatus         = "order_status"
	ColPurchaseTimestamp   = "order_purchase_timestamp"
	ColApprovedAt          = "order_approved_at"
	ColDeliveredCarrier    = "order_delivered_carrier_date"
	ColDeliveredCustomer   = "order_delivered_customer_date"
	ColEstimatedDelivery   = "order_estimated_delivery_date"
	ColProcessingTimeHours = "processing_time_hours"
	ColShippingTimeDays    = "shipping_time_days"
	ColDeliveryDelayDays   = "delivery_delay_days"
	ColIsLateDelivery      = "is_late_delivery"
	ColStatusCategory      = "status_category"
	ColTotalDeliveryDays   = "total_delivery_time_days"
)

// OrderDateColumns are parsed as timestamps.
var OrderDateColumns = []string{
	ColPurchaseTimestamp,
	ColApprovedAt,
	ColDeliveredCarrier,
	ColDeliveredCustomer,
	ColEstimatedDelivery,
}

// OrderReport summarizes an order enrichment pass.
type OrderReport struct {
	// UnparseableDates counts non-null cells per date column that did not parse.
	UnparseableDates map[string]int
	// MissingEstimate counts delivered orders with no estimated delivery date.
	MissingEstimate int
	Late            int
	Categories      map[models.StatusCategory]int
}

// EnrichOrders normalizes the date columns and appends the derived duration,
// lateness and status category columns.
func EnrichOrders(orders *table.Table) (OrderReport, error) {
	report := OrderReport{
		UnparseableDates: make(map[string]int, len(OrderDateColumns)),
		Categories:       make(map[models.StatusCategory]int),
	}

	if err := requireColumns(orders, append([]string{ColOrderStatus}, OrderDateColumns...)...); err != nil {
		return report, err
	}
	statuses, err := orders.Column(ColOrderStatus)
	if err != nil {
		return report, err
	}

	parsed := make(map[string][]*time.Time, len(OrderDateColumns))
	for _, col := range OrderDateColumns {
		cells, err := orders.Column(col)
		if err != nil {
			return report, err
		}
		stamps := make([]*time.Time, len(cells))
		for i, c := range cells {
			ts, ok := table.ParseTimestamp(c)
			if ok {
				stamps[i] = &ts
			} else if !table.IsNull(c) {
				report.UnparseableDates[col]++
			}
		}
		parsed[col] = stamps
		if err := orders.SetColumn(col, table.FormatTimestampColumn(stamps)); err != nil {
			return report, err
		}
	}

	n := orders.Len()
	derived := map[string][]string{
		ColProcessingTimeHours: make([]string, n),
		ColShippingTimeDays:    make([]string, n),
		ColDeliveryDelayDays:   make([]string, n),
		ColIsLateDelivery:      make([]string, n),
		ColStatusCategory:      make([]string, n),
		ColTotalDeliveryDays:   make([]string, n),
	}
	for i := 0; i < n; i++ {
		tl := models.OrderTimeline{
			PurchasedAt:         parsed[ColPurchaseTimestamp][i],
			ApprovedAt:          parsed[ColApprovedAt][i],
			DeliveredCarrierAt:  parsed[ColDeliveredCarrier][i],
			DeliveredCustomerAt: parsed[ColDeliveredCustomer][i],
			EstimatedDeliveryAt: parsed[ColEstimatedDelivery][i],
		}
		if tl.DeliveredCustomerAt != nil && tl.EstimatedDeliveryAt == nil {
			report.MissingEstimate++
		}

		f := models.DeriveOrderMetrics(tl).Resolve(statuses[i])
		if f.IsLateDelivery {
			report.Late++
		}
		report.Categories[f.StatusCategory]++

		derived[ColProcessingTimeHours][i] = table.FormatFloat(f.ProcessingTimeHours)
		derived[ColShippingTimeDays][i] = table.FormatFloat(f.ShippingTimeDays)
		derived[ColDeliveryDelayDays][i] = table.FormatFloat(f.DeliveryDelayDays)
		derived[ColIsLateDelivery][i] = table.FormatBool(f.IsLateDelivery)
		derived[ColStatusCategory][i] = string(f.StatusCategory)
		derived[ColTotalDeliveryDays][i] = table.FormatFloat(f.TotalDeliveryTimeDays)
	}

	for _, col := range []string{
		ColProcessingTimeHours,
		ColShippingTimeDays,
		ColDeliveryDelayDays,
		ColIsLateDelivery,
		ColStatusCategory,
		ColTotalDeliveryDays,
	} {
		if err := orders.SetColumn(col, derived[col]); err != nil {
			return report, err
		}
	}
	return report, nil
}
